// Package memory is an in-process Directory used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	d "social_graph_services/src/directory"
	m "social_graph_services/src/models"
)

type Directory struct {
	mu       sync.Mutex
	users    map[string]m.User
	requests map[string]m.FriendRequest
	failures map[string]error
}

func New(users ...m.User) *Directory {
	dir := &Directory{
		users:    map[string]m.User{},
		requests: map[string]m.FriendRequest{},
		failures: map[string]error{},
	}
	for _, user := range users {
		dir.users[user.ID] = user.Clone()
	}
	return dir
}

// FailUpdates makes every Update and UpdatePair touching userID return err until cleared with a nil err.
func (dir *Directory) FailUpdates(userID string, err error) {
	dir.mu.Lock()
	defer dir.mu.Unlock()

	if err == nil {
		delete(dir.failures, userID)
		return
	}
	dir.failures[userID] = err
}

func (dir *Directory) Get(ctx context.Context, userID string) (m.User, error) {
	if err := ctx.Err(); err != nil {
		return m.User{}, err
	}
	dir.mu.Lock()
	defer dir.mu.Unlock()

	user, ok := dir.users[userID]
	if !ok {
		return m.User{}, fmt.Errorf("user %q: %w", userID, d.ErrNotFound)
	}
	return user.Clone(), nil
}

func (dir *Directory) Put(ctx context.Context, user m.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir.mu.Lock()
	defer dir.mu.Unlock()

	if existing, ok := dir.users[user.ID]; ok {
		user.Friends = existing.Friends
		user.FriendRequestsSent = existing.FriendRequestsSent
		user.FriendRequestsReceived = existing.FriendRequestsReceived
		user.Following = existing.Following
		user.FCMTokens = existing.FCMTokens
		user.CreatedAt = existing.CreatedAt
	}
	dir.users[user.ID] = user.Clone()
	return nil
}

func (dir *Directory) Update(ctx context.Context, userID string, mutation d.Mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir.mu.Lock()
	defer dir.mu.Unlock()

	if err := dir.failures[userID]; err != nil {
		return err
	}
	user, ok := dir.users[userID]
	if !ok {
		return fmt.Errorf("user %q: %w", userID, d.ErrNotFound)
	}
	user = user.Clone()
	if err := mutation.Apply(&user); err != nil {
		return err
	}
	dir.users[userID] = user
	return nil
}

func (dir *Directory) UpdatePair(ctx context.Context, update d.PairUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir.mu.Lock()
	defer dir.mu.Unlock()

	for _, userID := range []string{update.SelfID, update.PeerID} {
		if err := dir.failures[userID]; err != nil {
			return err
		}
	}

	self, ok := dir.users[update.SelfID]
	if !ok {
		return fmt.Errorf("user %q: %w", update.SelfID, d.ErrNotFound)
	}
	peer, ok := dir.users[update.PeerID]
	if !ok {
		return fmt.Errorf("user %q: %w", update.PeerID, d.ErrNotFound)
	}

	self, peer = self.Clone(), peer.Clone()
	if err := update.Self.Apply(&self); err != nil {
		return err
	}
	if err := update.Peer.Apply(&peer); err != nil {
		return err
	}

	dir.users[self.ID] = self
	dir.users[peer.ID] = peer
	if update.Request != nil {
		dir.requests[d.RequestKey(update.Request.SenderID, update.Request.ReceiverID)] = *update.Request
	}
	return nil
}

func (dir *Directory) RepairPair(ctx context.Context, aID string, bID string, plan d.PairPlanner) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir.mu.Lock()
	defer dir.mu.Unlock()

	for _, userID := range []string{aID, bID} {
		if err := dir.failures[userID]; err != nil {
			return err
		}
	}

	a, ok := dir.users[aID]
	if !ok {
		return fmt.Errorf("user %q: %w", aID, d.ErrNotFound)
	}
	b, ok := dir.users[bID]
	if !ok {
		return fmt.Errorf("user %q: %w", bID, d.ErrNotFound)
	}

	pair := d.Pair{A: a.Clone(), B: b.Clone()}
	if request, ok := dir.requests[d.RequestKey(aID, bID)]; ok {
		pair.AToB = &request
	}
	if request, ok := dir.requests[d.RequestKey(bID, aID)]; ok {
		pair.BToA = &request
	}

	aMutation, bMutation := plan(pair)
	a, b = a.Clone(), b.Clone()
	if err := aMutation.Apply(&a); err != nil {
		return err
	}
	if err := bMutation.Apply(&b); err != nil {
		return err
	}
	dir.users[aID] = a
	dir.users[bID] = b
	return nil
}

func (dir *Directory) Query(ctx context.Context, predicate d.Predicate) ([]m.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir.mu.Lock()
	defer dir.mu.Unlock()

	users := make([]m.User, 0, len(dir.users))
	for _, user := range dir.users {
		if predicate == nil || predicate(user) {
			users = append(users, user.Clone())
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (dir *Directory) PutRequest(ctx context.Context, request m.FriendRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir.mu.Lock()
	defer dir.mu.Unlock()

	dir.requests[d.RequestKey(request.SenderID, request.ReceiverID)] = request
	return nil
}

func (dir *Directory) GetRequest(ctx context.Context, senderID string, receiverID string) (m.FriendRequest, error) {
	if err := ctx.Err(); err != nil {
		return m.FriendRequest{}, err
	}
	dir.mu.Lock()
	defer dir.mu.Unlock()

	request, ok := dir.requests[d.RequestKey(senderID, receiverID)]
	if !ok {
		return m.FriendRequest{}, fmt.Errorf("request %s -> %s: %w", senderID, receiverID, d.ErrNotFound)
	}
	return request, nil
}

func (dir *Directory) ListRequests(ctx context.Context, userID string) ([]m.FriendRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir.mu.Lock()
	defer dir.mu.Unlock()

	var requests []m.FriendRequest
	for _, request := range dir.requests {
		if request.SenderID == userID || request.ReceiverID == userID {
			requests = append(requests, request)
		}
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].CreatedAt.After(requests[j].CreatedAt) })
	return requests, nil
}
