package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	m "social_graph_services/src/models"
)

type countingNotifier struct {
	calls int
	err   error
}

func (notifier *countingNotifier) Notify(ctx context.Context, payload m.WebSocketPayload) error {
	notifier.calls++
	return notifier.err
}

func TestFanoutDeliversToEveryNotifier(t *testing.T) {
	failing := &countingNotifier{err: errors.New("redis down")}
	healthy := &countingNotifier{}

	err := Fanout{failing, healthy}.Notify(context.Background(), m.WebSocketPayload{UserID: "bob"})
	assert.ErrorIs(t, err, failing.err)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, healthy.calls)

	assert.NoError(t, Fanout{}.Notify(context.Background(), m.WebSocketPayload{}))
}

func TestPushContent(t *testing.T) {
	request := m.FriendRequestNotification{
		RequestID:   "r1",
		ReceivedAt:  time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		SenderID:    "alice",
		ReceiverID:  "bob",
		DisplayName: "Alice",
		Status:      m.RequestPending,
	}

	notification, ok := PushContent(m.WebSocketPayload{Operation: m.OperationRequest, UserID: "bob", Payload: request})
	assert.True(t, ok)
	assert.Equal(t, "friend-request", notification.Type)
	assert.Equal(t, "bob", notification.RecipientID)
	assert.Equal(t, "alice", notification.RequesterID)
	assert.Equal(t, "r1", notification.NotificationID)
	assert.Equal(t, "true", notification.Data["pending"])
	assert.Equal(t, "2024-06-01T09:00:00Z", notification.Data["received_at"])
	assert.Equal(t, "Alice wants to be your friend.", pushBody(notification))

	request.Status = m.RequestAccepted
	request.DisplayName = "Bob"
	notification, ok = PushContent(m.WebSocketPayload{Operation: m.OperationAccepted, UserID: "alice", Payload: request})
	assert.True(t, ok)
	assert.Equal(t, "friend-accepted", notification.Type)
	assert.Equal(t, "bob", notification.RequesterID)
	assert.Equal(t, "Friend request accepted", pushTitle(notification))
	assert.Equal(t, "Bob accepted your friend request.", pushBody(notification))

	_, ok = PushContent(m.WebSocketPayload{Operation: m.OperationDeclined, UserID: "alice", Payload: request})
	assert.False(t, ok)
	_, ok = PushContent(m.WebSocketPayload{Operation: m.OperationRemoved, UserID: "bob", Payload: m.Friend{ID: "alice"}})
	assert.False(t, ok)
}
