package handlers

import (
	"testing"

	"github.com/slack-go/slack/slackevents"
	"github.com/stretchr/testify/require"

	"meetsync/models"
)

const testBotUserID = "UBOT"

func newTestEventsHandler() *EventsHandler {
	return NewEventsHandler(nil, testBotUserID)
}

func TestInboundEventTopLevelMentionStartsThread(t *testing.T) {
	h := newTestEventsHandler()

	ev, ok := h.inboundEvent("Ev001", slackevents.EventsAPIInnerEvent{
		Data: &slackevents.AppMentionEvent{
			User:      "U1",
			Channel:   "C1",
			TimeStamp: "100.001",
			Text:      "<@UBOT> set up a sync with @alice next week",
		},
	})
	require.True(t, ok)
	require.Equal(t, models.EventNewRequest, ev.Type)
	require.Equal(t, "C1:100.001", ev.ThreadID)
	require.Equal(t, "set up a sync with @alice next week", ev.Text)
}

// A threaded reply that mentions the bot is delivered twice by Slack, once as
// app_mention and once as message, under distinct event IDs. Only the
// app_mention delivery may produce an engine event; accepting both would burn
// two rounds on a single rejection.
func TestInboundEventMentionedReplyDeliveredOnce(t *testing.T) {
	h := newTestEventsHandler()

	mention, ok := h.inboundEvent("Ev010", slackevents.EventsAPIInnerEvent{
		Data: &slackevents.AppMentionEvent{
			User:            "U1",
			Channel:         "C1",
			TimeStamp:       "100.005",
			ThreadTimeStamp: "100.001",
			Text:            "<@UBOT> none of these work, afternoons please",
		},
	})
	require.True(t, ok)
	require.Equal(t, models.EventReply, mention.Type)
	require.Equal(t, "C1:100.001", mention.ThreadID)

	_, ok = h.inboundEvent("Ev011", slackevents.EventsAPIInnerEvent{
		Data: &slackevents.MessageEvent{
			User:            "U1",
			Channel:         "C1",
			TimeStamp:       "100.005",
			ThreadTimeStamp: "100.001",
			Text:            "<@UBOT> none of these work, afternoons please",
		},
	})
	require.False(t, ok, "message delivery of a mentioned reply must be dropped")
}

func TestInboundEventPlainThreadedReplyAccepted(t *testing.T) {
	h := newTestEventsHandler()

	ev, ok := h.inboundEvent("Ev020", slackevents.EventsAPIInnerEvent{
		Data: &slackevents.MessageEvent{
			User:            "U2",
			Channel:         "C1",
			TimeStamp:       "100.007",
			ThreadTimeStamp: "100.001",
			Text:            "option 2 works for me",
		},
	})
	require.True(t, ok)
	require.Equal(t, models.EventReply, ev.Type)
	require.Equal(t, "C1:100.001", ev.ThreadID)
	require.Equal(t, "option 2 works for me", ev.Text)
}

func TestInboundEventSkipsBotsAndChannelChatter(t *testing.T) {
	h := newTestEventsHandler()

	cases := []slackevents.EventsAPIInnerEvent{
		{Data: &slackevents.MessageEvent{BotID: "B1", Channel: "C1", ThreadTimeStamp: "100.001", Text: "here are some options"}},
		{Data: &slackevents.MessageEvent{User: testBotUserID, Channel: "C1", ThreadTimeStamp: "100.001", Text: "booked"}},
		{Data: &slackevents.MessageEvent{User: "U1", Channel: "C1", Text: "unrelated channel message"}},
		{Data: &slackevents.MessageEvent{User: "U1", Channel: "C1", ThreadTimeStamp: "100.001", SubType: "message_changed", Text: "edited"}},
	}
	for _, inner := range cases {
		_, ok := h.inboundEvent("Ev030", inner)
		require.False(t, ok)
	}
}
