package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	d "social_graph_services/src/directory"
	m "social_graph_services/src/models"
)

func TestGetReturnsCopies(t *testing.T) {
	dir := New(m.User{ID: "alice", Friends: []string{"bob"}})
	ctx := context.Background()

	user, err := dir.Get(ctx, "alice")
	require.NoError(t, err)
	user.Friends[0] = "mallory"

	again, err := dir.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, again.Friends)

	_, err = dir.Get(ctx, "ghost")
	assert.ErrorIs(t, err, d.ErrNotFound)
}

func TestPutKeepsRelationshipArrays(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	dir := New(m.User{ID: "alice", DisplayName: "Alice", Friends: []string{"bob"}, FCMTokens: []string{"t1"}, CreatedAt: created})
	ctx := context.Background()

	require.NoError(t, dir.Put(ctx, m.User{ID: "alice", DisplayName: "Alice B", CreatedAt: created.Add(time.Hour)}))

	user, err := dir.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice B", user.DisplayName)
	assert.Equal(t, []string{"bob"}, user.Friends)
	assert.Equal(t, []string{"t1"}, user.FCMTokens)
	assert.Equal(t, created, user.CreatedAt)
}

func TestUpdate(t *testing.T) {
	dir := New(m.User{ID: "alice"})
	ctx := context.Background()

	require.NoError(t, dir.Update(ctx, "alice", d.Mutation{d.Union(d.FieldRequestsSent, "bob")}))
	user, err := dir.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, user.FriendRequestsSent)

	err = dir.Update(ctx, "ghost", d.Mutation{d.Union(d.FieldFriends, "alice")})
	assert.ErrorIs(t, err, d.ErrNotFound)
}

func TestUpdatePairIsAllOrNothing(t *testing.T) {
	dir := New(m.User{ID: "alice"}, m.User{ID: "bob"})
	ctx := context.Background()
	update := d.PairUpdate{
		SelfID:  "alice",
		Self:    d.Mutation{d.Union(d.FieldRequestsSent, "bob")},
		PeerID:  "bob",
		Peer:    d.Mutation{d.Union(d.FieldRequestsReceived, "alice")},
		Request: &m.FriendRequest{RequestID: "r1", SenderID: "alice", ReceiverID: "bob", Status: m.RequestPending},
	}

	outage := errors.New("unavailable")
	dir.FailUpdates("bob", outage)
	assert.ErrorIs(t, dir.UpdatePair(ctx, update), outage)

	alice, err := dir.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, alice.FriendRequestsSent)
	_, err = dir.GetRequest(ctx, "alice", "bob")
	assert.ErrorIs(t, err, d.ErrNotFound)

	dir.FailUpdates("bob", nil)
	require.NoError(t, dir.UpdatePair(ctx, update))

	alice, _ = dir.Get(ctx, "alice")
	bob, _ := dir.Get(ctx, "bob")
	assert.Equal(t, []string{"bob"}, alice.FriendRequestsSent)
	assert.Equal(t, []string{"alice"}, bob.FriendRequestsReceived)

	request, err := dir.GetRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, "r1", request.RequestID)
}

func TestUpdatePairMissingPeer(t *testing.T) {
	dir := New(m.User{ID: "alice"})
	err := dir.UpdatePair(context.Background(), d.PairUpdate{
		SelfID: "alice",
		Self:   d.Mutation{d.Union(d.FieldFriends, "ghost")},
		PeerID: "ghost",
		Peer:   d.Mutation{d.Union(d.FieldFriends, "alice")},
	})
	assert.ErrorIs(t, err, d.ErrNotFound)

	alice, _ := dir.Get(context.Background(), "alice")
	assert.Empty(t, alice.Friends)
}

func TestQuery(t *testing.T) {
	dir := New(m.User{ID: "carol", Status: m.StatusOnline}, m.User{ID: "alice", Status: m.StatusOnline}, m.User{ID: "bob"})

	users, err := dir.Query(context.Background(), func(user m.User) bool { return user.Status == m.StatusOnline })
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].ID)
	assert.Equal(t, "carol", users[1].ID)

	all, err := dir.Query(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestListRequestsNewestFirst(t *testing.T) {
	dir := New()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, dir.PutRequest(ctx, m.FriendRequest{RequestID: "old", SenderID: "bob", ReceiverID: "alice", CreatedAt: base}))
	require.NoError(t, dir.PutRequest(ctx, m.FriendRequest{RequestID: "new", SenderID: "alice", ReceiverID: "carol", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, dir.PutRequest(ctx, m.FriendRequest{RequestID: "other", SenderID: "bob", ReceiverID: "carol", CreatedAt: base}))

	requests, err := dir.ListRequests(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, requests, 2)
	assert.Equal(t, "new", requests[0].RequestID)
	assert.Equal(t, "old", requests[1].RequestID)
}

func TestCancelledContext(t *testing.T) {
	dir := New(m.User{ID: "alice"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := dir.Get(ctx, "alice")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRepairPair(t *testing.T) {
	dir := New(
		m.User{ID: "alice", FriendRequestsSent: []string{"bob"}, Following: []string{"bob"}},
		m.User{ID: "bob"},
	)
	ctx := context.Background()
	require.NoError(t, dir.PutRequest(ctx, m.FriendRequest{RequestID: "r1", SenderID: "alice", ReceiverID: "bob", Status: m.RequestCancelled}))

	var seen d.Pair
	err := dir.RepairPair(ctx, "alice", "bob", func(pair d.Pair) (d.Mutation, d.Mutation) {
		seen = pair
		return d.Mutation{d.Remove(d.FieldRequestsSent, "bob")}, d.Mutation{d.Remove(d.FieldRequestsReceived, "alice")}
	})
	require.NoError(t, err)

	require.NotNil(t, seen.AToB)
	assert.Equal(t, "r1", seen.AToB.RequestID)
	assert.Nil(t, seen.BToA)

	alice, err := dir.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, alice.FriendRequestsSent)
	assert.Equal(t, []string{"bob"}, alice.Following)

	outage := errors.New("unavailable")
	dir.FailUpdates("bob", outage)
	called := false
	err = dir.RepairPair(ctx, "alice", "bob", func(pair d.Pair) (d.Mutation, d.Mutation) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, outage)
	assert.False(t, called)

	dir.FailUpdates("bob", nil)
	err = dir.RepairPair(ctx, "alice", "ghost", func(pair d.Pair) (d.Mutation, d.Mutation) { return nil, nil })
	assert.ErrorIs(t, err, d.ErrNotFound)
}
