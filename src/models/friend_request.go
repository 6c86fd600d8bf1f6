package models

import "time"

const (
	RequestPending   = "pending"
	RequestAccepted  = "accepted"
	RequestDeclined  = "declined"
	RequestCancelled = "cancelled"
)

// FriendRequest is the ledger record for one sender -> receiver request.
// The relationship arrays decide status; this record only adds ordering and the last resolution.
type FriendRequest struct {
	RequestID  string    `json:"request_id" firestore:"requestId"`
	SenderID   string    `json:"sender_id" firestore:"senderId"`
	ReceiverID string    `json:"receiver_id" firestore:"receiverId"`
	Status     string    `json:"status" firestore:"status"`
	CreatedAt  time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt  time.Time `json:"updated_at" firestore:"updatedAt"`
}

func (request FriendRequest) Pending() bool {
	return request.Status == RequestPending
}
