// Package firestore stores user documents in Cloud Firestore, the way the web client always did.
package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	d "social_graph_services/src/directory"
	m "social_graph_services/src/models"
)

const (
	UsersCollection    = "users"
	RequestsCollection = "friendRequests"
)

type Directory struct {
	FireStore *firestore.Client
}

func New(client *firestore.Client) *Directory {
	return &Directory{FireStore: client}
}

func (dir *Directory) userRef(userID string) *firestore.DocumentRef {
	return dir.FireStore.Collection(UsersCollection).Doc(userID)
}

func (dir *Directory) requestRef(senderID string, receiverID string) *firestore.DocumentRef {
	return dir.FireStore.Collection(RequestsCollection).Doc(d.RequestKey(senderID, receiverID))
}

func (dir *Directory) Get(ctx context.Context, userID string) (m.User, error) {
	snapshot, err := dir.userRef(userID).Get(ctx)
	if err != nil {
		return m.User{}, notFound(err, "user %q", userID)
	}
	return decodeUser(snapshot)
}

// Put writes profile fields only; relationship arrays are owned by Update.
func (dir *Directory) Put(ctx context.Context, user m.User) error {
	ref := dir.userRef(user.ID)
	profile := map[string]interface{}{
		"displayName": user.DisplayName,
		"username":    user.Username,
		"avatar":      user.Avatar,
		"bio":         user.Bio,
		"status":      user.Status,
	}

	err := dir.FireStore.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		_, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			profile["createdAt"] = user.CreatedAt
			profile["friends"] = []string{}
			profile["friendRequestsSent"] = []string{}
			profile["friendRequestsReceived"] = []string{}
			profile["following"] = []string{}
			return tx.Set(ref, profile)
		}
		if err != nil {
			return err
		}
		return tx.Set(ref, profile, firestore.MergeAll)
	})
	if err != nil {
		return fmt.Errorf("put user %q: %w", user.ID, err)
	}
	return nil
}

func (dir *Directory) Update(ctx context.Context, userID string, mutation d.Mutation) error {
	updates, err := toUpdates(mutation)
	if err != nil {
		return err
	}
	if len(updates) == 0 {
		return nil
	}
	_, err = dir.userRef(userID).Update(ctx, updates)
	if err != nil {
		return notFound(err, "update user %q", userID)
	}
	return nil
}

// UpdatePair applies both halves and the ledger record inside one Firestore transaction.
func (dir *Directory) UpdatePair(ctx context.Context, update d.PairUpdate) error {
	selfUpdates, err := toUpdates(update.Self)
	if err != nil {
		return err
	}
	peerUpdates, err := toUpdates(update.Peer)
	if err != nil {
		return err
	}

	err = dir.FireStore.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if len(selfUpdates) > 0 {
			if err := tx.Update(dir.userRef(update.SelfID), selfUpdates); err != nil {
				return err
			}
		}
		if len(peerUpdates) > 0 {
			if err := tx.Update(dir.userRef(update.PeerID), peerUpdates); err != nil {
				return err
			}
		}
		if update.Request != nil {
			return tx.Set(dir.requestRef(update.Request.SenderID, update.Request.ReceiverID), *update.Request)
		}
		return nil
	})
	if err != nil {
		return notFound(err, "update pair %q/%q", update.SelfID, update.PeerID)
	}
	return nil
}

// RepairPair reads both users and both ledger records inside the transaction, so Firestore retries
// the plan whenever a concurrent write lands on any of them first.
func (dir *Directory) RepairPair(ctx context.Context, aID string, bID string, plan d.PairPlanner) error {
	refs := []*firestore.DocumentRef{
		dir.userRef(aID),
		dir.userRef(bID),
		dir.requestRef(aID, bID),
		dir.requestRef(bID, aID),
	}

	err := dir.FireStore.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snapshots, err := tx.GetAll(refs)
		if err != nil {
			return err
		}
		for _, snapshot := range snapshots[:2] {
			if !snapshot.Exists() {
				return fmt.Errorf("user %q: %w", snapshot.Ref.ID, d.ErrNotFound)
			}
		}

		var pair d.Pair
		if pair.A, err = decodeUser(snapshots[0]); err != nil {
			return err
		}
		if pair.B, err = decodeUser(snapshots[1]); err != nil {
			return err
		}
		if pair.AToB, err = decodeRequest(snapshots[2]); err != nil {
			return err
		}
		if pair.BToA, err = decodeRequest(snapshots[3]); err != nil {
			return err
		}

		aMutation, bMutation := plan(pair)
		aUpdates, err := toUpdates(aMutation)
		if err != nil {
			return err
		}
		bUpdates, err := toUpdates(bMutation)
		if err != nil {
			return err
		}
		if len(aUpdates) > 0 {
			if err := tx.Update(refs[0], aUpdates); err != nil {
				return err
			}
		}
		if len(bUpdates) > 0 {
			return tx.Update(refs[1], bUpdates)
		}
		return nil
	})
	if err != nil {
		return notFound(err, "repair pair %q/%q", aID, bID)
	}
	return nil
}

func (dir *Directory) Query(ctx context.Context, predicate d.Predicate) ([]m.User, error) {
	var users []m.User

	documents := dir.FireStore.Collection(UsersCollection).Documents(ctx)
	defer documents.Stop()
	for {
		snapshot, err := documents.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query users: %w", err)
		}

		user, err := decodeUser(snapshot)
		if err != nil {
			return nil, err
		}
		if predicate == nil || predicate(user) {
			users = append(users, user)
		}
	}
	return users, nil
}

func (dir *Directory) PutRequest(ctx context.Context, request m.FriendRequest) error {
	_, err := dir.requestRef(request.SenderID, request.ReceiverID).Set(ctx, request)
	if err != nil {
		return fmt.Errorf("put request %s: %w", request.RequestID, err)
	}
	return nil
}

func (dir *Directory) GetRequest(ctx context.Context, senderID string, receiverID string) (m.FriendRequest, error) {
	snapshot, err := dir.requestRef(senderID, receiverID).Get(ctx)
	if err != nil {
		return m.FriendRequest{}, notFound(err, "request %s -> %s", senderID, receiverID)
	}

	request, err := decodeRequest(snapshot)
	if err != nil {
		return m.FriendRequest{}, err
	}
	return *request, nil
}

func (dir *Directory) ListRequests(ctx context.Context, userID string) ([]m.FriendRequest, error) {
	var requests []m.FriendRequest

	queries := []firestore.Query{
		dir.FireStore.Collection(RequestsCollection).Where("senderId", "==", userID),
		dir.FireStore.Collection(RequestsCollection).Where("receiverId", "==", userID),
	}
	for _, query := range queries {
		snapshots, err := query.Documents(ctx).GetAll()
		if err != nil {
			return nil, fmt.Errorf("list requests for %q: %w", userID, err)
		}
		for _, snapshot := range snapshots {
			request, err := decodeRequest(snapshot)
			if err != nil {
				return nil, err
			}
			requests = append(requests, *request)
		}
	}
	return requests, nil
}

func decodeUser(snapshot *firestore.DocumentSnapshot) (m.User, error) {
	var user m.User
	if err := snapshot.DataTo(&user); err != nil {
		return m.User{}, fmt.Errorf("decode user %q: %w", snapshot.Ref.ID, err)
	}
	user.ID = snapshot.Ref.ID
	return user, nil
}

// decodeRequest returns nil for a snapshot of a record that does not exist.
func decodeRequest(snapshot *firestore.DocumentSnapshot) (*m.FriendRequest, error) {
	if !snapshot.Exists() {
		return nil, nil
	}
	var request m.FriendRequest
	if err := snapshot.DataTo(&request); err != nil {
		return nil, fmt.Errorf("decode request %s: %w", snapshot.Ref.ID, err)
	}
	return &request, nil
}

func toUpdates(mutation d.Mutation) ([]firestore.Update, error) {
	if err := mutation.Validate(); err != nil {
		return nil, err
	}

	// Firestore rejects two updates on one path, so values are grouped per field and op.
	type key struct {
		field d.Field
		op    d.Op
	}
	var order []key
	grouped := map[key][]interface{}{}
	for _, fieldOp := range mutation {
		k := key{fieldOp.Field, fieldOp.Op}
		if _, ok := grouped[k]; !ok {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], fieldOp.Value)
	}

	seen := map[d.Field]bool{}
	updates := make([]firestore.Update, 0, len(order))
	for _, k := range order {
		if seen[k.field] {
			return nil, fmt.Errorf("field %q is both added to and removed from in one mutation", k.field)
		}
		seen[k.field] = true

		var value interface{}
		switch k.op {
		case d.ArrayUnion:
			value = firestore.ArrayUnion(grouped[k]...)
		case d.ArrayRemove:
			value = firestore.ArrayRemove(grouped[k]...)
		}
		updates = append(updates, firestore.Update{Path: string(k.field), Value: value})
	}
	return updates, nil
}

func notFound(err error, format string, args ...interface{}) error {
	if status.Code(err) == codes.NotFound || errors.Is(err, d.ErrNotFound) {
		return fmt.Errorf(format+": %w", append(args, d.ErrNotFound)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
