package models

const (
	OperationRequest   = "REQUEST"
	OperationAccepted  = "ACCEPTED"
	OperationDeclined  = "DECLINED"
	OperationCancelled = "CANCELLED"
	OperationRemoved   = "REMOVED"
	OperationFollowed  = "FOLLOWED"
)

const (
	PayloadFriendRequest = "friend-request"
	PayloadFriend        = "friend"
)

const (
	StatePending   = "pending"
	StateCommitted = "committed"
	StatePartial   = "partial"
	StateFailed    = "failed"
)

type WebSocketPayload struct {
	Operation string      `json:"operation"`
	Type      string      `json:"type"`
	UserID    string      `json:"user_id"`
	State     string      `json:"state"`
	Payload   interface{} `json:"payload"`
}

type OperationResult struct {
	Operation string `json:"operation"`
	PeerID    string `json:"peer_id"`
	State     string `json:"state"`
	Error     string `json:"error,omitempty"`
}
