package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetsync/models"
	"meetsync/services/negotiation"
)

type fakeSlackClient struct {
	users    map[string]*slack.User
	byEmail  map[string]*slack.User
	posted   []string
	threadTS []string
}

func (f *fakeSlackClient) PostMessageContext(_ context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	f.posted = append(f.posted, channelID)
	return channelID, "1700000000.000100", nil
}

func (f *fakeSlackClient) GetUserInfoContext(_ context.Context, user string) (*slack.User, error) {
	if u, ok := f.users[user]; ok {
		return u, nil
	}
	return nil, errors.New("user_not_found")
}

func (f *fakeSlackClient) GetUserByEmailContext(_ context.Context, email string) (*slack.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, errors.New("users_not_found")
}

func slackUser(id, email, name string) *slack.User {
	u := &slack.User{ID: id, RealName: name}
	u.Profile.Email = email
	return u
}

func TestSplitThreadID(t *testing.T) {
	ch, ts, err := SplitThreadID("C123:1700000000.000100")
	require.NoError(t, err)
	assert.Equal(t, "C123", ch)
	assert.Equal(t, "1700000000.000100", ts)

	ch, ts, err = SplitThreadID("C123")
	require.NoError(t, err)
	assert.Equal(t, "C123", ch)
	assert.Empty(t, ts)

	_, _, err = SplitThreadID(":123")
	assert.Error(t, err)
}

func TestResolveParticipants(t *testing.T) {
	client := &fakeSlackClient{
		users: map[string]*slack.User{
			"U1": slackUser("U1", "alice@example.com", "Alice"),
		},
		byEmail: map[string]*slack.User{
			"bob@example.com": slackUser("U2", "bob@example.com", "Bob"),
		},
	}
	m := NewSlackMessengerWithClient(client)

	resolved, err := m.ResolveParticipants(context.Background(), []string{"<@U1>", "bob@example.com"}, "C1")
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Equal(t, "alice@example.com", resolved[0].Email)
	assert.Equal(t, models.Participant{ID: "U2", Email: "bob@example.com", Name: "Bob"}, resolved[1])
}

func TestResolveParticipantsReportsMisses(t *testing.T) {
	client := &fakeSlackClient{
		users: map[string]*slack.User{
			"U1": slackUser("U1", "alice@example.com", "Alice"),
		},
	}
	m := NewSlackMessengerWithClient(client)

	resolved, err := m.ResolveParticipants(context.Background(), []string{"<@U1>", "<@U9>"}, "C1")
	var unresolved *negotiation.UnresolvedParticipantError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, []string{"<@U9>"}, unresolved.Mentions)
	// Partial resolution still comes back so the caller can keep it.
	require.Len(t, resolved, 1)
	assert.Equal(t, "alice@example.com", resolved[0].Email)
}

func TestPostMessageThreads(t *testing.T) {
	client := &fakeSlackClient{}
	m := NewSlackMessengerWithClient(client)

	ts, err := m.PostMessage(context.Background(), "C123:1700000000.000100", "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, ts)
	assert.Equal(t, []string{"C123"}, client.posted)
}
