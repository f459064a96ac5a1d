package messaging

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"meetsync/models"
	"meetsync/services/negotiation"
	"meetsync/utils"
)

// SlackClient is the subset of the Slack API the messenger uses.
type SlackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
	GetUserByEmailContext(ctx context.Context, email string) (*slack.User, error)
}

// SlackMessenger posts negotiation messages into Slack threads and resolves
// mentions to calendar identities through the workspace directory.
//
// Thread IDs have the form "<channelID>:<threadTS>".
type SlackMessenger struct {
	client SlackClient
}

func NewSlackMessenger(botToken string) *SlackMessenger {
	return &SlackMessenger{client: slack.New(botToken)}
}

func NewSlackMessengerWithClient(client SlackClient) *SlackMessenger {
	return &SlackMessenger{client: client}
}

func (m *SlackMessenger) PostOptions(ctx context.Context, threadID string, candidates []models.Candidate, noPerfectMatch bool) (string, error) {
	return m.PostMessage(ctx, threadID, negotiation.FormatOptions(candidates, noPerfectMatch))
}

func (m *SlackMessenger) PostMessage(ctx context.Context, threadID, text string) (string, error) {
	channelID, threadTS, err := SplitThreadID(threadID)
	if err != nil {
		return "", err
	}

	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}

	_, ts, err := m.client.PostMessageContext(ctx, channelID, opts...)
	if err != nil {
		return "", fmt.Errorf("slack post to %s failed: %w", channelID, err)
	}
	return ts, nil
}

// mentionPattern matches Slack's escaped user mention format <@U12345>.
var mentionPattern = regexp.MustCompile(`^<@([A-Z0-9]+)>$`)

// ResolveParticipants maps mentions to directory identities. Raw user IDs,
// escaped mentions, and plain email addresses are all accepted; anything else
// is reported through UnresolvedParticipantError alongside whatever did
// resolve.
func (m *SlackMessenger) ResolveParticipants(ctx context.Context, mentions []string, _ string) ([]models.Participant, error) {
	logger := utils.GetLogger()

	var resolved []models.Participant
	var missing []string
	for _, mention := range mentions {
		p, err := m.resolveOne(ctx, mention)
		if err != nil {
			logger.Warn("failed to resolve mention",
				zap.String("mention", mention), zap.Error(err))
			missing = append(missing, mention)
			continue
		}
		resolved = append(resolved, p)
	}
	if len(missing) > 0 {
		return resolved, &negotiation.UnresolvedParticipantError{Mentions: missing}
	}
	return resolved, nil
}

func (m *SlackMessenger) resolveOne(ctx context.Context, mention string) (models.Participant, error) {
	trimmed := strings.TrimSpace(mention)

	if strings.Contains(trimmed, "@") && strings.Contains(trimmed, ".") && !strings.HasPrefix(trimmed, "<@") && !strings.HasPrefix(trimmed, "@") {
		user, err := m.client.GetUserByEmailContext(ctx, trimmed)
		if err != nil {
			return models.Participant{}, err
		}
		return participantFromUser(user), nil
	}

	userID := trimmed
	if match := mentionPattern.FindStringSubmatch(trimmed); match != nil {
		userID = match[1]
	}
	user, err := m.client.GetUserInfoContext(ctx, userID)
	if err != nil {
		return models.Participant{}, err
	}
	if user.Profile.Email == "" {
		return models.Participant{}, fmt.Errorf("user %s has no email in profile", userID)
	}
	return participantFromUser(user), nil
}

func participantFromUser(user *slack.User) models.Participant {
	return models.Participant{
		ID:    user.ID,
		Email: user.Profile.Email,
		Name:  user.RealName,
	}
}

// SplitThreadID splits "<channelID>:<threadTS>" into its parts. The thread
// timestamp may be empty for the first message in a channel.
func SplitThreadID(threadID string) (channelID, threadTS string, err error) {
	parts := strings.SplitN(threadID, ":", 2)
	if parts[0] == "" {
		return "", "", fmt.Errorf("malformed thread id %q", threadID)
	}
	if len(parts) == 2 {
		return parts[0], parts[1], nil
	}
	return parts[0], "", nil
}

// JoinThreadID builds the thread id for a channel message.
func JoinThreadID(channelID, threadTS string) string {
	return channelID + ":" + threadTS
}
