// Package postgres keeps user documents in a users table whose relationship fields are text[] columns.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	d "social_graph_services/src/directory"
	m "social_graph_services/src/models"
)

//go:embed schema.sql
var Schema string

var columns = map[d.Field]string{
	d.FieldFriends:          "friends",
	d.FieldRequestsSent:     "friend_requests_sent",
	d.FieldRequestsReceived: "friend_requests_received",
	d.FieldFollowing:        "following",
	d.FieldFCMTokens:        "fcm_tokens",
}

const selectUser = `SELECT user_id, display_name, username, avatar, bio, status,
						friends, friend_requests_sent, friend_requests_received, following, fcm_tokens, created_at
					FROM users`

type Directory struct {
	connPool *m.PGPool
}

func New(connPool *m.PGPool) *Directory {
	return &Directory{connPool: connPool}
}

func (dir *Directory) Get(ctx context.Context, userID string) (m.User, error) {
	row := dir.connPool.Pool.QueryRow(ctx, selectUser+` WHERE user_id = $1`, userID)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return m.User{}, fmt.Errorf("user %q: %w", userID, d.ErrNotFound)
	}
	if err != nil {
		return m.User{}, fmt.Errorf("get user %q: %w", userID, err)
	}
	return user, nil
}

func (dir *Directory) Put(ctx context.Context, user m.User) error {
	query := `INSERT INTO users (user_id, display_name, username, avatar, bio, status, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (user_id)
				DO UPDATE SET display_name = EXCLUDED.display_name, username = EXCLUDED.username,
				              avatar = EXCLUDED.avatar, bio = EXCLUDED.bio, status = EXCLUDED.status`

	_, err := dir.connPool.Pool.Exec(ctx, query, user.ID, user.DisplayName, user.Username, user.Avatar,
		user.Bio, user.Status, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("put user %q: %w", user.ID, err)
	}
	return nil
}

func (dir *Directory) Update(ctx context.Context, userID string, mutation d.Mutation) error {
	batch, err := queueMutation(&pgx.Batch{}, userID, mutation)
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, dir.connPool.Pool, func(tx pgx.Tx) error {
		return execBatch(ctx, tx, batch, userID)
	})
}

// UpdatePair runs both documents' statements and the ledger upsert in one transaction.
func (dir *Directory) UpdatePair(ctx context.Context, update d.PairUpdate) error {
	selfBatch, err := queueMutation(&pgx.Batch{}, update.SelfID, update.Self)
	if err != nil {
		return err
	}
	peerBatch, err := queueMutation(&pgx.Batch{}, update.PeerID, update.Peer)
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, dir.connPool.Pool, func(tx pgx.Tx) error {
		// same lock order as RepairPair
		_, err := tx.Exec(ctx, `SELECT 1 FROM users WHERE user_id = ANY($1) ORDER BY user_id FOR UPDATE`,
			[]string{update.SelfID, update.PeerID})
		if err != nil {
			return fmt.Errorf("lock pair %q/%q: %w", update.SelfID, update.PeerID, err)
		}
		if err := execBatch(ctx, tx, selfBatch, update.SelfID); err != nil {
			return err
		}
		if err := execBatch(ctx, tx, peerBatch, update.PeerID); err != nil {
			return err
		}
		if update.Request != nil {
			return upsertRequest(ctx, tx, *update.Request)
		}
		return nil
	})
}

func (dir *Directory) Query(ctx context.Context, predicate d.Predicate) ([]m.User, error) {
	rows, err := dir.connPool.Pool.Query(ctx, selectUser+` ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []m.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if predicate == nil || predicate(user) {
			users = append(users, user)
		}
	}
	return users, rows.Err()
}

func (dir *Directory) PutRequest(ctx context.Context, request m.FriendRequest) error {
	return upsertRequest(ctx, dir.connPool.Pool, request)
}

func (dir *Directory) GetRequest(ctx context.Context, senderID string, receiverID string) (m.FriendRequest, error) {
	return getRequest(ctx, dir.connPool.Pool, senderID, receiverID, "")
}

// RepairPair locks both user rows, in id order, for the whole read-plan-write cycle.
func (dir *Directory) RepairPair(ctx context.Context, aID string, bID string, plan d.PairPlanner) error {
	return pgx.BeginFunc(ctx, dir.connPool.Pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, selectUser+` WHERE user_id = ANY($1) ORDER BY user_id FOR UPDATE`, []string{aID, bID})
		if err != nil {
			return fmt.Errorf("lock pair %q/%q: %w", aID, bID, err)
		}
		locked := map[string]m.User{}
		for rows.Next() {
			user, err := scanUser(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("scan user: %w", err)
			}
			locked[user.ID] = user
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		var pair d.Pair
		var ok bool
		if pair.A, ok = locked[aID]; !ok {
			return fmt.Errorf("user %q: %w", aID, d.ErrNotFound)
		}
		if pair.B, ok = locked[bID]; !ok {
			return fmt.Errorf("user %q: %w", bID, d.ErrNotFound)
		}
		if pair.AToB, err = lookupRequest(ctx, tx, aID, bID); err != nil {
			return err
		}
		if pair.BToA, err = lookupRequest(ctx, tx, bID, aID); err != nil {
			return err
		}

		aMutation, bMutation := plan(pair)
		aBatch, err := queueMutation(&pgx.Batch{}, aID, aMutation)
		if err != nil {
			return err
		}
		bBatch, err := queueMutation(&pgx.Batch{}, bID, bMutation)
		if err != nil {
			return err
		}
		if err := execBatch(ctx, tx, aBatch, aID); err != nil {
			return err
		}
		return execBatch(ctx, tx, bBatch, bID)
	})
}

func lookupRequest(ctx context.Context, tx pgx.Tx, senderID string, receiverID string) (*m.FriendRequest, error) {
	request, err := getRequest(ctx, tx, senderID, receiverID, " FOR UPDATE")
	if errors.Is(err, d.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func getRequest(ctx context.Context, db rowQuerier, senderID string, receiverID string, lock string) (m.FriendRequest, error) {
	query := `SELECT request_id, sender_id, receiver_id, status, created_at, updated_at
				FROM friend_requests
				WHERE sender_id = $1 AND receiver_id = $2` + lock

	var request m.FriendRequest
	err := db.QueryRow(ctx, query, senderID, receiverID).Scan(&request.RequestID, &request.SenderID,
		&request.ReceiverID, &request.Status, &request.CreatedAt, &request.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return m.FriendRequest{}, fmt.Errorf("request %s -> %s: %w", senderID, receiverID, d.ErrNotFound)
	}
	if err != nil {
		return m.FriendRequest{}, fmt.Errorf("get request %s -> %s: %w", senderID, receiverID, err)
	}
	return request, nil
}

func (dir *Directory) ListRequests(ctx context.Context, userID string) ([]m.FriendRequest, error) {
	query := `SELECT request_id, sender_id, receiver_id, status, created_at, updated_at
				FROM friend_requests
				WHERE sender_id = $1 OR receiver_id = $1
				ORDER BY created_at DESC`

	rows, err := dir.connPool.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list requests for %q: %w", userID, err)
	}
	defer rows.Close()

	var requests []m.FriendRequest
	for rows.Next() {
		var request m.FriendRequest
		err := rows.Scan(&request.RequestID, &request.SenderID, &request.ReceiverID, &request.Status,
			&request.CreatedAt, &request.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		requests = append(requests, request)
	}
	return requests, rows.Err()
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (m.User, error) {
	var user m.User
	err := row.Scan(&user.ID, &user.DisplayName, &user.Username, &user.Avatar, &user.Bio, &user.Status,
		&user.Friends, &user.FriendRequestsSent, &user.FriendRequestsReceived, &user.Following, &user.FCMTokens,
		&user.CreatedAt)
	return user, err
}

// queueMutation turns each FieldOp into one statement; the column name comes from a fixed whitelist.
func queueMutation(batch *pgx.Batch, userID string, mutation d.Mutation) (*pgx.Batch, error) {
	if err := mutation.Validate(); err != nil {
		return nil, err
	}
	for _, fieldOp := range mutation {
		column := columns[fieldOp.Field]
		switch fieldOp.Op {
		case d.ArrayUnion:
			batch.Queue(fmt.Sprintf(`UPDATE users
						SET %[1]s = CASE WHEN $2 = ANY(%[1]s) THEN %[1]s ELSE array_append(%[1]s, $2) END
						WHERE user_id = $1`, column), userID, fieldOp.Value)
		case d.ArrayRemove:
			batch.Queue(fmt.Sprintf(`UPDATE users SET %[1]s = array_remove(%[1]s, $2) WHERE user_id = $1`, column),
				userID, fieldOp.Value)
		}
	}
	return batch, nil
}

func execBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch, userID string) error {
	if batch.Len() == 0 {
		var exists bool
		err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)`, userID).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("user %q: %w", userID, d.ErrNotFound)
		}
		return nil
	}

	batchResults := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		tag, err := batchResults.Exec()
		if err != nil {
			batchResults.Close()
			return fmt.Errorf("update user %q: %w", userID, err)
		}
		if tag.RowsAffected() == 0 {
			batchResults.Close()
			return fmt.Errorf("user %q: %w", userID, d.ErrNotFound)
		}
	}
	return batchResults.Close()
}

func upsertRequest(ctx context.Context, db execer, request m.FriendRequest) error {
	query := `INSERT INTO friend_requests (request_id, sender_id, receiver_id, status, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (sender_id, receiver_id)
				DO UPDATE SET request_id = EXCLUDED.request_id, status = EXCLUDED.status,
				              created_at = EXCLUDED.created_at, updated_at = EXCLUDED.updated_at`

	_, err := db.Exec(ctx, query, request.RequestID, request.SenderID, request.ReceiverID, request.Status,
		request.CreatedAt, request.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put request %s: %w", request.RequestID, err)
	}
	return nil
}
