package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	d "social_graph_services/src/directory"
	"social_graph_services/src/directory/memory"
	m "social_graph_services/src/models"
)

var loadTime = time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)

func newTestDirectory(t *testing.T) *memory.Directory {
	t.Helper()
	dir := memory.New(
		m.User{
			ID:                     "alice",
			DisplayName:            "Alice",
			FriendRequestsReceived: []string{"bob", "carol", "ghost"},
			FriendRequestsSent:     []string{"dave"},
		},
		m.User{ID: "bob", DisplayName: "Bob", Username: "bobby"},
		m.User{ID: "carol"},
		m.User{ID: "dave", DisplayName: "Dave", Status: m.StatusOnline},
	)

	ctx := context.Background()
	require.NoError(t, dir.PutRequest(ctx, m.FriendRequest{
		RequestID: "r-bob", SenderID: "bob", ReceiverID: "alice", Status: m.RequestPending,
		CreatedAt: loadTime.Add(-3 * time.Hour),
	}))
	require.NoError(t, dir.PutRequest(ctx, m.FriendRequest{
		RequestID: "r-dave", SenderID: "alice", ReceiverID: "dave", Status: m.RequestPending,
		CreatedAt: loadTime.Add(-time.Hour),
	}))
	return dir
}

func newTestProjector(dir d.Directory) *Projector {
	return NewProjector(dir, func() time.Time { return loadTime }, nil)
}

func TestProject(t *testing.T) {
	list, err := newTestProjector(newTestDirectory(t)).Project(context.Background(), "alice")
	require.NoError(t, err)

	require.Len(t, list.Notifications, 3)
	ids := []string{list.Notifications[0].ID, list.Notifications[1].ID, list.Notifications[2].ID}
	assert.Equal(t, []string{"friend_request_carol", "friend_request_sent_dave", "friend_request_bob"}, ids)
	assert.Equal(t, 2, list.UnreadCount)

	carol := list.Notifications[0]
	assert.Equal(t, m.NotificationRequestReceived, carol.Type)
	assert.Equal(t, loadTime, carol.ReceivedAt)
	assert.True(t, carol.Actionable)
	assert.False(t, carol.Read)
	assert.Equal(t, "Unknown", carol.Peer.DisplayName)

	dave := list.Notifications[1]
	assert.Equal(t, m.NotificationRequestSent, dave.Type)
	assert.Equal(t, loadTime.Add(-time.Hour), dave.ReceivedAt)
	assert.False(t, dave.Actionable)
	assert.True(t, dave.Read)
	assert.Equal(t, "dave", dave.PeerID)

	bob := list.Notifications[2]
	assert.Equal(t, loadTime.Add(-3*time.Hour), bob.ReceivedAt)
	assert.Equal(t, "bobby", bob.Peer.Username)
}

func TestProjectIgnoresResolvedLedgerRecords(t *testing.T) {
	dir := memory.New(m.User{ID: "alice", FriendRequestsReceived: []string{"bob"}}, m.User{ID: "bob"})
	require.NoError(t, dir.PutRequest(context.Background(), m.FriendRequest{
		SenderID: "bob", ReceiverID: "alice", Status: m.RequestDeclined, CreatedAt: loadTime.Add(-time.Hour),
	}))

	list, err := newTestProjector(dir).Project(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, list.Notifications, 1)
	assert.Equal(t, loadTime, list.Notifications[0].ReceivedAt)
}

func TestProjectTiesPutReceivedFirst(t *testing.T) {
	dir := memory.New(
		m.User{ID: "alice", FriendRequestsReceived: []string{"carol"}, FriendRequestsSent: []string{"bob"}},
		m.User{ID: "bob"},
		m.User{ID: "carol"},
	)

	list, err := newTestProjector(dir).Project(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, list.Notifications, 2)
	assert.Equal(t, ReceivedID("carol"), list.Notifications[0].ID)
	assert.Equal(t, SentID("bob"), list.Notifications[1].ID)
}

func TestProjectEmptyAndMissing(t *testing.T) {
	dir := memory.New(m.User{ID: "alice"})

	list, err := newTestProjector(dir).Project(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotNil(t, list.Notifications)
	assert.Empty(t, list.Notifications)
	assert.Zero(t, list.UnreadCount)

	_, err = newTestProjector(dir).Project(context.Background(), "ghost")
	assert.ErrorIs(t, err, d.ErrNotFound)
}
