package relations_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	d "social_graph_services/src/directory"
	"social_graph_services/src/directory/memory"
	m "social_graph_services/src/models"
	"social_graph_services/src/relations"
)

var fixedNow = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

type recordingNotifier struct {
	mu       sync.Mutex
	payloads []m.WebSocketPayload
	err      error
}

func (notifier *recordingNotifier) Notify(ctx context.Context, payload m.WebSocketPayload) error {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	notifier.payloads = append(notifier.payloads, payload)
	return notifier.err
}

func (notifier *recordingNotifier) last(t *testing.T) m.WebSocketPayload {
	t.Helper()
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.NotEmpty(t, notifier.payloads)
	return notifier.payloads[len(notifier.payloads)-1]
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("request-%d", n)
	}
}

func newFixture(t *testing.T, opts ...relations.Option) (*memory.Directory, *relations.Service, *recordingNotifier) {
	t.Helper()
	dir := memory.New(
		m.User{ID: "alice", DisplayName: "Alice", Username: "alice"},
		m.User{ID: "bob", DisplayName: "Bob", Username: "bobby"},
	)
	notifier := &recordingNotifier{}
	opts = append([]relations.Option{
		relations.WithNotifier(notifier),
		relations.WithClock(func() time.Time { return fixedNow }),
		relations.WithIDGenerator(sequentialIDs()),
	}, opts...)
	return dir, relations.NewService(dir, opts...), notifier
}

func load(t *testing.T, dir d.Directory, userID string) m.User {
	t.Helper()
	user, err := dir.Get(context.Background(), userID)
	require.NoError(t, err)
	return user
}

func writeModes() map[string][]relations.Option {
	return map[string][]relations.Option{
		"atomic":      nil,
		"independent": {relations.WithIndependentWrites()},
	}
}

func TestSendRequest(t *testing.T) {
	for mode, opts := range writeModes() {
		t.Run(mode, func(t *testing.T) {
			dir, svc, notifier := newFixture(t, opts...)
			ctx := context.Background()

			require.NoError(t, svc.SendRequest(ctx, "alice", "bob"))

			alice, bob := load(t, dir, "alice"), load(t, dir, "bob")
			assert.Equal(t, []string{"bob"}, alice.FriendRequestsSent)
			assert.Equal(t, []string{"alice"}, bob.FriendRequestsReceived)
			assert.Equal(t, relations.StatusRequestSent, relations.StatusOf("alice", "bob", alice))
			assert.Equal(t, relations.StatusRequestReceived, relations.StatusOf("bob", "alice", bob))

			request, err := dir.GetRequest(ctx, "alice", "bob")
			require.NoError(t, err)
			assert.Equal(t, "request-1", request.RequestID)
			assert.Equal(t, m.RequestPending, request.Status)
			assert.Equal(t, fixedNow, request.CreatedAt)

			payload := notifier.last(t)
			assert.Equal(t, m.OperationRequest, payload.Operation)
			assert.Equal(t, m.PayloadFriendRequest, payload.Type)
			assert.Equal(t, "bob", payload.UserID)
			assert.Equal(t, m.StateCommitted, payload.State)
			content, ok := payload.Payload.(m.FriendRequestNotification)
			require.True(t, ok)
			assert.Equal(t, "alice", content.SenderID)
			assert.Equal(t, "bob", content.ReceiverID)
			assert.Equal(t, "Alice", content.DisplayName)
			assert.Equal(t, "request-1", content.RequestID)
		})
	}
}

func TestSendRequestTwiceIsIdempotent(t *testing.T) {
	dir, svc, _ := newFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.SendRequest(ctx, "alice", "bob"))
	require.NoError(t, svc.SendRequest(ctx, "alice", "bob"))

	assert.Equal(t, []string{"bob"}, load(t, dir, "alice").FriendRequestsSent)
	assert.Equal(t, []string{"alice"}, load(t, dir, "bob").FriendRequestsReceived)

	request, err := dir.GetRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, "request-1", request.RequestID)
}

func TestAcceptRequest(t *testing.T) {
	for mode, opts := range writeModes() {
		t.Run(mode, func(t *testing.T) {
			dir, svc, notifier := newFixture(t, opts...)
			ctx := context.Background()

			require.NoError(t, svc.SendRequest(ctx, "alice", "bob"))
			require.NoError(t, svc.AcceptRequest(ctx, "bob", "alice"))

			alice, bob := load(t, dir, "alice"), load(t, dir, "bob")
			assert.Equal(t, []string{"bob"}, alice.Friends)
			assert.Equal(t, []string{"alice"}, bob.Friends)
			assert.Empty(t, alice.FriendRequestsSent)
			assert.Empty(t, bob.FriendRequestsReceived)
			assert.Equal(t, relations.StatusFriend, relations.StatusOf("alice", "bob", alice))

			request, err := dir.GetRequest(ctx, "alice", "bob")
			require.NoError(t, err)
			assert.Equal(t, "request-1", request.RequestID)
			assert.Equal(t, m.RequestAccepted, request.Status)

			payload := notifier.last(t)
			assert.Equal(t, m.OperationAccepted, payload.Operation)
			assert.Equal(t, "alice", payload.UserID)
		})
	}
}

func TestAcceptWithoutRequestStillBefriends(t *testing.T) {
	dir, svc, _ := newFixture(t)

	require.NoError(t, svc.AcceptRequest(context.Background(), "bob", "alice"))

	assert.Equal(t, []string{"bob"}, load(t, dir, "alice").Friends)
	assert.Equal(t, []string{"alice"}, load(t, dir, "bob").Friends)
}

func TestDeclineRequest(t *testing.T) {
	dir, svc, notifier := newFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.SendRequest(ctx, "alice", "bob"))
	require.NoError(t, svc.DeclineRequest(ctx, "bob", "alice"))

	alice, bob := load(t, dir, "alice"), load(t, dir, "bob")
	assert.Empty(t, alice.FriendRequestsSent)
	assert.Empty(t, bob.FriendRequestsReceived)
	assert.Empty(t, alice.Friends)
	assert.Equal(t, relations.StatusNone, relations.StatusOf("alice", "bob", alice))

	request, err := dir.GetRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, m.RequestDeclined, request.Status)
	assert.Equal(t, m.OperationDeclined, notifier.last(t).Operation)
}

func TestCancelRequest(t *testing.T) {
	dir, svc, notifier := newFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.SendRequest(ctx, "alice", "bob"))
	require.NoError(t, svc.CancelRequest(ctx, "alice", "bob"))

	assert.Empty(t, load(t, dir, "alice").FriendRequestsSent)
	assert.Empty(t, load(t, dir, "bob").FriendRequestsReceived)

	request, err := dir.GetRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, m.RequestCancelled, request.Status)

	payload := notifier.last(t)
	assert.Equal(t, m.OperationCancelled, payload.Operation)
	assert.Equal(t, "bob", payload.UserID)
}

func TestResendAfterDeclineStartsNewRecord(t *testing.T) {
	dir, svc, _ := newFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.SendRequest(ctx, "alice", "bob"))
	require.NoError(t, svc.DeclineRequest(ctx, "bob", "alice"))
	require.NoError(t, svc.SendRequest(ctx, "alice", "bob"))

	request, err := dir.GetRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, "request-2", request.RequestID)
	assert.Equal(t, m.RequestPending, request.Status)
}

func TestRemoveFriend(t *testing.T) {
	dir, svc, notifier := newFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.SendRequest(ctx, "alice", "bob"))
	require.NoError(t, svc.AcceptRequest(ctx, "bob", "alice"))
	require.NoError(t, svc.RemoveFriend(ctx, "alice", "bob"))

	assert.Empty(t, load(t, dir, "alice").Friends)
	assert.Empty(t, load(t, dir, "bob").Friends)

	payload := notifier.last(t)
	assert.Equal(t, m.OperationRemoved, payload.Operation)
	assert.Equal(t, m.PayloadFriend, payload.Type)
	assert.Equal(t, "bob", payload.UserID)
	friend, ok := payload.Payload.(m.Friend)
	require.True(t, ok)
	assert.Equal(t, "alice", friend.ID)

	// removing a non-friend changes nothing and succeeds
	require.NoError(t, svc.RemoveFriend(ctx, "alice", "bob"))
	assert.Empty(t, load(t, dir, "alice").Friends)
}

func TestValidation(t *testing.T) {
	dir, svc, notifier := newFixture(t)
	ctx := context.Background()

	err := svc.SendRequest(ctx, "alice", "alice")
	assert.ErrorIs(t, err, relations.ErrSelfRequest)
	assert.True(t, relations.IsValidation(err))
	assert.Equal(t, "you cannot add yourself as a friend", err.Error())
	assert.Empty(t, load(t, dir, "alice").FriendRequestsSent)

	assert.ErrorIs(t, svc.SendRequest(ctx, "", "bob"), relations.ErrMissingUserID)
	assert.ErrorIs(t, svc.RemoveFriend(ctx, "alice", ""), relations.ErrMissingUserID)
	assert.ErrorIs(t, svc.Apply(ctx, "block_user", "alice", "bob"), relations.ErrUnknownOperation)

	assert.Empty(t, notifier.payloads)
}

func TestMissingUsers(t *testing.T) {
	dir, svc, _ := newFixture(t)
	ctx := context.Background()

	err := svc.SendRequest(ctx, "alice", "ghost")
	assert.ErrorIs(t, err, d.ErrNotFound)
	assert.False(t, relations.IsValidation(err))
	assert.Empty(t, load(t, dir, "alice").FriendRequestsSent)

	assert.ErrorIs(t, svc.SendRequest(ctx, "ghost", "bob"), d.ErrNotFound)
	assert.Empty(t, load(t, dir, "bob").FriendRequestsReceived)
}

func TestAtomicWriteFailureLeavesBothUnchanged(t *testing.T) {
	dir, svc, notifier := newFixture(t)
	require.True(t, svc.Atomic())

	outage := errors.New("deadline exceeded")
	dir.FailUpdates("bob", outage)

	err := svc.SendRequest(context.Background(), "alice", "bob")
	assert.ErrorIs(t, err, outage)

	var partial *relations.PartialWriteError
	assert.False(t, errors.As(err, &partial))
	assert.Empty(t, load(t, dir, "alice").FriendRequestsSent)
	assert.Empty(t, load(t, dir, "bob").FriendRequestsReceived)
	assert.Empty(t, notifier.payloads)
}

func TestIndependentWriteFailureIsPartial(t *testing.T) {
	dir, svc, notifier := newFixture(t, relations.WithIndependentWrites())
	require.False(t, svc.Atomic())

	outage := errors.New("deadline exceeded")
	dir.FailUpdates("bob", outage)

	err := svc.SendRequest(context.Background(), "alice", "bob")
	var partial *relations.PartialWriteError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, relations.OpSendRequest, partial.Operation)
	assert.Equal(t, "alice", partial.SelfID)
	assert.Equal(t, "bob", partial.PeerID)
	assert.ErrorIs(t, err, outage)

	// self's half landed, the peer's did not
	assert.Equal(t, []string{"bob"}, load(t, dir, "alice").FriendRequestsSent)
	assert.Empty(t, load(t, dir, "bob").FriendRequestsReceived)
	assert.Empty(t, notifier.payloads)
}

func TestIndependentSelfFailureChangesNothing(t *testing.T) {
	dir, svc, _ := newFixture(t, relations.WithIndependentWrites())

	outage := errors.New("permission denied")
	dir.FailUpdates("alice", outage)

	err := svc.SendRequest(context.Background(), "alice", "bob")
	assert.ErrorIs(t, err, outage)
	var partial *relations.PartialWriteError
	assert.False(t, errors.As(err, &partial))
	assert.Empty(t, load(t, dir, "bob").FriendRequestsReceived)
}

func TestNotifierFailureDoesNotFailOperation(t *testing.T) {
	dir, svc, notifier := newFixture(t)
	notifier.err = errors.New("redis down")

	require.NoError(t, svc.SendRequest(context.Background(), "alice", "bob"))
	assert.Equal(t, []string{"alice"}, load(t, dir, "bob").FriendRequestsReceived)
}

func TestStatus(t *testing.T) {
	_, svc, _ := newFixture(t)
	ctx := context.Background()

	status, err := svc.Status(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, relations.StatusNone, status)

	require.NoError(t, svc.SendRequest(ctx, "alice", "bob"))
	status, err = svc.Status(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, relations.StatusRequestReceived, status)

	_, err = svc.Status(ctx, "ghost", "alice")
	assert.ErrorIs(t, err, d.ErrNotFound)
	_, err = svc.Status(ctx, "", "alice")
	assert.ErrorIs(t, err, relations.ErrMissingUserID)
}

func TestRepeatedOperationsAreIdempotent(t *testing.T) {
	tests := []struct {
		name     string
		op       func(ctx context.Context, svc *relations.Service) error
		sender   string
		receiver string
	}{
		{
			name:     "accept",
			op:       func(ctx context.Context, svc *relations.Service) error { return svc.AcceptRequest(ctx, "bob", "alice") },
			sender:   "alice",
			receiver: "bob",
		},
		{
			name:     "decline",
			op:       func(ctx context.Context, svc *relations.Service) error { return svc.DeclineRequest(ctx, "bob", "alice") },
			sender:   "alice",
			receiver: "bob",
		},
		{
			name:     "cancel",
			op:       func(ctx context.Context, svc *relations.Service) error { return svc.CancelRequest(ctx, "alice", "bob") },
			sender:   "alice",
			receiver: "bob",
		},
	}

	for mode, opts := range writeModes() {
		for _, tt := range tests {
			t.Run(mode+"/"+tt.name, func(t *testing.T) {
				dir, svc, _ := newFixture(t, opts...)
				ctx := context.Background()
				require.NoError(t, svc.SendRequest(ctx, "alice", "bob"))

				require.NoError(t, tt.op(ctx, svc))
				alice, bob := load(t, dir, "alice"), load(t, dir, "bob")
				request, err := dir.GetRequest(ctx, tt.sender, tt.receiver)
				require.NoError(t, err)

				require.NoError(t, tt.op(ctx, svc))
				assert.Equal(t, alice, load(t, dir, "alice"))
				assert.Equal(t, bob, load(t, dir, "bob"))
				again, err := dir.GetRequest(ctx, tt.sender, tt.receiver)
				require.NoError(t, err)
				assert.Equal(t, request, again)
			})
		}
	}
}

func TestFollowUser(t *testing.T) {
	dir, svc, notifier := newFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.FollowUser(ctx, "alice", "bob"))
	require.NoError(t, svc.FollowUser(ctx, "alice", "bob"))

	alice, bob := load(t, dir, "alice"), load(t, dir, "bob")
	assert.Equal(t, []string{"bob"}, alice.Following)
	assert.Empty(t, bob.Following)
	assert.Equal(t, relations.StatusNone, relations.StatusOf("alice", "bob", alice))

	payload := notifier.last(t)
	assert.Equal(t, m.OperationFollowed, payload.Operation)
	assert.Equal(t, "bob", payload.UserID)

	_, err := dir.GetRequest(ctx, "alice", "bob")
	assert.ErrorIs(t, err, d.ErrNotFound)

	require.NoError(t, svc.UnfollowUser(ctx, "alice", "bob"))
	assert.Empty(t, load(t, dir, "alice").Following)
	assert.Len(t, notifier.payloads, 2)
}

func TestFollowValidation(t *testing.T) {
	_, svc, _ := newFixture(t)
	ctx := context.Background()

	err := svc.FollowUser(ctx, "alice", "alice")
	assert.ErrorIs(t, err, relations.ErrSelfFollow)
	assert.True(t, relations.IsValidation(err))

	assert.ErrorIs(t, svc.FollowUser(ctx, "alice", "ghost"), d.ErrNotFound)
	assert.ErrorIs(t, svc.UnfollowUser(ctx, "", "bob"), relations.ErrMissingUserID)
}

func TestIndependentResolutionWritesLedgerBeforePeer(t *testing.T) {
	dir, svc, _ := newFixture(t, relations.WithIndependentWrites())
	ctx := context.Background()
	require.NoError(t, svc.SendRequest(ctx, "alice", "bob"))

	dir.FailUpdates("alice", errors.New("unavailable"))
	var partial *relations.PartialWriteError
	require.ErrorAs(t, svc.DeclineRequest(ctx, "bob", "alice"), &partial)

	request, err := dir.GetRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, m.RequestDeclined, request.Status)
}

func TestPartialRemoveRollsBack(t *testing.T) {
	dir, svc, _ := newFixture(t, relations.WithIndependentWrites())
	ctx := context.Background()
	require.NoError(t, svc.AcceptRequest(ctx, "alice", "bob"))

	dir.FailUpdates("bob", errors.New("unavailable"))
	var partial *relations.PartialWriteError
	require.ErrorAs(t, svc.RemoveFriend(ctx, "alice", "bob"), &partial)
	assert.True(t, partial.RollsBack())
}
