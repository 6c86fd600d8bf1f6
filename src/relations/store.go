// Package relations implements the relationship model over four id arrays per user document:
// three mirrored friendship arrays and the one-sided following list. It holds the operations that
// move a pair of users between states and the repair pass for half-applied writes.
package relations

import (
	d "social_graph_services/src/directory"
	m "social_graph_services/src/models"
)

type Status string

const (
	StatusNone            Status = "none"
	StatusFriend          Status = "friend"
	StatusRequestSent     Status = "request_sent"
	StatusRequestReceived Status = "request_received"
)

// StatusOf reads the relationship from self's document only.
// Membership is checked friends, then sent, then received, so a document that is inconsistent
// after a partial write still resolves to exactly one status.
func StatusOf(selfID string, otherID string, self m.User) Status {
	if selfID == otherID {
		return StatusNone
	}
	switch {
	case d.Contains(self.Friends, otherID):
		return StatusFriend
	case d.Contains(self.FriendRequestsSent, otherID):
		return StatusRequestSent
	case d.Contains(self.FriendRequestsReceived, otherID):
		return StatusRequestReceived
	}
	return StatusNone
}

type Operation string

const (
	OpSendRequest    Operation = "send_request"
	OpAcceptRequest  Operation = "accept_request"
	OpDeclineRequest Operation = "decline_request"
	OpCancelRequest  Operation = "cancel_request"
	OpRemoveFriend   Operation = "remove_friend"
	OpFollow         Operation = "follow"
	OpUnfollow       Operation = "unfollow"
)

// AvailableOperations lists what self can do next about a user it relates to with status.
func AvailableOperations(status Status) []Operation {
	switch status {
	case StatusNone:
		return []Operation{OpSendRequest}
	case StatusRequestSent:
		return []Operation{OpCancelRequest}
	case StatusRequestReceived:
		return []Operation{OpAcceptRequest, OpDeclineRequest}
	case StatusFriend:
		return []Operation{OpRemoveFriend}
	}
	return nil
}

// OneSided reports whether op only writes self's document.
func (op Operation) OneSided() bool {
	return op == OpFollow || op == OpUnfollow
}

// Plan returns the mutation for each side of op. Every entry is a set union or set difference,
// which is what makes repeating an operation safe.
func Plan(op Operation, selfID string, peerID string) (self d.Mutation, peer d.Mutation) {
	switch op {
	case OpSendRequest:
		return d.Mutation{d.Union(d.FieldRequestsSent, peerID)},
			d.Mutation{d.Union(d.FieldRequestsReceived, selfID)}
	case OpAcceptRequest:
		return d.Mutation{d.Union(d.FieldFriends, peerID), d.Remove(d.FieldRequestsReceived, peerID)},
			d.Mutation{d.Union(d.FieldFriends, selfID), d.Remove(d.FieldRequestsSent, selfID)}
	case OpDeclineRequest:
		return d.Mutation{d.Remove(d.FieldRequestsReceived, peerID)},
			d.Mutation{d.Remove(d.FieldRequestsSent, selfID)}
	case OpCancelRequest:
		return d.Mutation{d.Remove(d.FieldRequestsSent, peerID)},
			d.Mutation{d.Remove(d.FieldRequestsReceived, selfID)}
	case OpRemoveFriend:
		return d.Mutation{d.Remove(d.FieldFriends, peerID)},
			d.Mutation{d.Remove(d.FieldFriends, selfID)}
	case OpFollow:
		return d.Mutation{d.Union(d.FieldFollowing, peerID)}, d.Mutation{}
	case OpUnfollow:
		return d.Mutation{d.Remove(d.FieldFollowing, peerID)}, d.Mutation{}
	}
	return nil, nil
}

// websocket operation name and payload type pushed to the peer after a commit
func (op Operation) event() (string, string) {
	switch op {
	case OpSendRequest:
		return m.OperationRequest, m.PayloadFriendRequest
	case OpAcceptRequest:
		return m.OperationAccepted, m.PayloadFriendRequest
	case OpDeclineRequest:
		return m.OperationDeclined, m.PayloadFriendRequest
	case OpCancelRequest:
		return m.OperationCancelled, m.PayloadFriendRequest
	case OpRemoveFriend:
		return m.OperationRemoved, m.PayloadFriend
	case OpFollow:
		return m.OperationFollowed, m.PayloadFriend
	}
	return "", ""
}
