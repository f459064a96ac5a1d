package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack/slackevents"
	"go.uber.org/zap"

	"meetsync/models"
	"meetsync/services/messaging"
	"meetsync/services/negotiation"
	"meetsync/utils"
)

// EventsHandler receives the Slack Events API webhook, acknowledges within
// Slack's deadline, and hands the event to the dispatcher asynchronously.
type EventsHandler struct {
	Dispatcher *negotiation.Dispatcher
	BotUserID  string

	// HandleTimeout bounds one background processing step.
	HandleTimeout time.Duration
}

func NewEventsHandler(dispatcher *negotiation.Dispatcher, botUserID string) *EventsHandler {
	return &EventsHandler{
		Dispatcher:    dispatcher,
		BotUserID:     botUserID,
		HandleTimeout: 2 * time.Minute,
	}
}

func (h *EventsHandler) SlackEventsHandler(c *gin.Context) {
	logger := utils.GetLogger()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	apiEvent, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		logger.Warn("failed to parse slack event", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "unparseable event"})
		return
	}

	switch apiEvent.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad challenge"})
			return
		}
		c.String(http.StatusOK, challenge.Challenge)
		return

	case slackevents.CallbackEvent:
		cb, ok := apiEvent.Data.(*slackevents.EventsAPICallbackEvent)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad callback"})
			return
		}
		if ev, ok := h.inboundEvent(cb.EventID, apiEvent.InnerEvent); ok {
			go h.process(ev)
		}
		c.Status(http.StatusOK)
		return

	default:
		c.Status(http.StatusOK)
	}
}

// inboundEvent maps a Slack inner event onto the engine's event type. Bot
// messages and non-thread chatter are ignored.
func (h *EventsHandler) inboundEvent(eventID string, inner slackevents.EventsAPIInnerEvent) (models.InboundEvent, bool) {
	switch ev := inner.Data.(type) {
	case *slackevents.AppMentionEvent:
		if ev.User == h.BotUserID {
			return models.InboundEvent{}, false
		}
		threadTS := ev.ThreadTimeStamp
		eventType := models.EventReply
		if threadTS == "" {
			// A top-level mention starts a new negotiation thread anchored at
			// the mention itself.
			threadTS = ev.TimeStamp
			eventType = models.EventNewRequest
		}
		return models.InboundEvent{
			EventID:    eventID,
			Type:       eventType,
			ThreadID:   messaging.JoinThreadID(ev.Channel, threadTS),
			AuthorID:   ev.User,
			Text:       stripBotMention(ev.Text, h.BotUserID),
			ReceivedAt: time.Now(),
		}, true

	case *slackevents.MessageEvent:
		// Only replies inside an existing thread; everything else in the
		// channel is not ours.
		if ev.BotID != "" || ev.User == h.BotUserID || ev.ThreadTimeStamp == "" || ev.SubType != "" {
			return models.InboundEvent{}, false
		}
		// A threaded reply that mentions the bot also arrives as an app_mention
		// under its own event ID. Let that delivery carry it, or the reply is
		// interpreted twice.
		if strings.Contains(ev.Text, "<@"+h.BotUserID+">") {
			return models.InboundEvent{}, false
		}
		return models.InboundEvent{
			EventID:    eventID,
			Type:       models.EventReply,
			ThreadID:   messaging.JoinThreadID(ev.Channel, ev.ThreadTimeStamp),
			AuthorID:   ev.User,
			Text:       ev.Text,
			ReceivedAt: time.Now(),
		}, true
	}
	return models.InboundEvent{}, false
}

func (h *EventsHandler) process(ev models.InboundEvent) {
	logger := utils.GetLogger()

	ctx, cancel := context.WithTimeout(context.Background(), h.HandleTimeout)
	defer cancel()

	res, err := h.Dispatcher.Dispatch(ctx, ev)
	if err != nil {
		logger.Error("event processing failed",
			zap.String("eventID", ev.EventID),
			zap.String("threadID", ev.ThreadID),
			zap.Error(err))
		return
	}
	if res != nil {
		logger.Info("event processed",
			zap.String("threadID", ev.ThreadID),
			zap.String("state", string(res.State)),
			zap.Bool("suspended", res.Suspended))
	}
}

func stripBotMention(text, botUserID string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "<@"+botUserID+">", ""))
}
