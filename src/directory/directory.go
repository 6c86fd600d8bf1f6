// Package directory is the user document store the relationship code is written against.
package directory

import (
	"context"
	"errors"

	m "social_graph_services/src/models"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrNotFound indicates a user document or request record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrUnknownField indicates a mutation names a field outside the relationship set.
	ErrUnknownField = errors.New("unknown mutable field")
)

// Predicate filters documents returned by Query. A nil predicate matches everything.
type Predicate func(m.User) bool

// Directory is one record per user plus the friend request ledger.
type Directory interface {
	Get(ctx context.Context, userID string) (m.User, error)
	Put(ctx context.Context, user m.User) error
	Update(ctx context.Context, userID string, mutation Mutation) error
	Query(ctx context.Context, predicate Predicate) ([]m.User, error)

	PutRequest(ctx context.Context, request m.FriendRequest) error
	GetRequest(ctx context.Context, senderID string, receiverID string) (m.FriendRequest, error)
	ListRequests(ctx context.Context, userID string) ([]m.FriendRequest, error)
}

// PairUpdate is a symmetric mutation: two documents and, optionally, the ledger record it resolves.
type PairUpdate struct {
	SelfID  string
	Self    Mutation
	PeerID  string
	Peer    Mutation
	Request *m.FriendRequest
}

// Pair is both documents of a relationship and the ledger record for each direction, read together.
// AToB and BToA are nil when no record exists.
type Pair struct {
	A    m.User
	B    m.User
	AToB *m.FriendRequest
	BToA *m.FriendRequest
}

// PairPlanner decides the mutations for both documents from their current state.
// It may be called more than once when the backend retries the transaction.
type PairPlanner func(pair Pair) (a Mutation, b Mutation)

// Transactor is implemented by directories that can apply a PairUpdate all-or-nothing.
type Transactor interface {
	UpdatePair(ctx context.Context, update PairUpdate) error
	// RepairPair reads both documents and their ledger records, then applies plan's mutations,
	// with no other write to either document in between.
	RepairPair(ctx context.Context, aID string, bID string, plan PairPlanner) error
}

const getManyLimit = 8

// GetMany loads users concurrently, keeping input order and skipping ids without a document.
func GetMany(ctx context.Context, dir Directory, userIDs []string) ([]m.User, error) {
	if len(userIDs) == 0 {
		return []m.User{}, nil
	}

	loaded := make([]*m.User, len(userIDs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(getManyLimit)
	for i, userID := range userIDs {
		i, userID := i, userID
		group.Go(func() error {
			user, err := dir.Get(groupCtx, userID)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			loaded[i] = &user
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	users := make([]m.User, 0, len(userIDs))
	for _, user := range loaded {
		if user != nil {
			users = append(users, *user)
		}
	}
	return users, nil
}

// RequestKey is the ledger key for a sender -> receiver request.
func RequestKey(senderID string, receiverID string) string {
	return senderID + "_" + receiverID
}
