package handlers

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"social_graph_services/src/auth"
	d "social_graph_services/src/directory"
	m "social_graph_services/src/models"
	"social_graph_services/src/relations"
)

// FriendRequestHandler serves /friends/requests. The target user is always ?id=.
func FriendRequestHandler(svc *relations.Service, dir d.Directory, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, err := auth.Subject(r)
		if err != nil {
			WriteErrorToWriter(w, logger, err)
			return
		}

		switch r.Method {
		case http.MethodGet:
			GETPendingRequests(r.Context(), w, dir, logger, uid)
		case http.MethodPost:
			applyRequestOperation(r.Context(), w, r, svc, logger, relations.OpSendRequest, uid)
		case http.MethodPut:
			applyRequestOperation(r.Context(), w, r, svc, logger, relations.OpAcceptRequest, uid)
		case http.MethodDelete:
			applyRequestOperation(r.Context(), w, r, svc, logger, relations.OpDeclineRequest, uid)
		default:
			methodNotAllowed(w)
		}
	})
}

// SentFriendRequestHandler serves /friends/requests/sent, where the caller withdraws its own request.
func SentFriendRequestHandler(svc *relations.Service, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, err := auth.Subject(r)
		if err != nil {
			WriteErrorToWriter(w, logger, err)
			return
		}

		switch r.Method {
		case http.MethodDelete:
			applyRequestOperation(r.Context(), w, r, svc, logger, relations.OpCancelRequest, uid)
		default:
			methodNotAllowed(w)
		}
	})
}

func GETPendingRequests(ctx context.Context, w http.ResponseWriter, dir d.Directory, logger *zap.Logger, uid string) {
	self, err := dir.Get(ctx, uid)
	if err != nil {
		WriteErrorToWriter(w, logger, err)
		return
	}

	received, err := d.GetMany(ctx, dir, self.FriendRequestsReceived)
	if err != nil {
		WriteErrorToWriter(w, logger, err)
		return
	}
	sent, err := d.GetMany(ctx, dir, self.FriendRequestsSent)
	if err != nil {
		WriteErrorToWriter(w, logger, err)
		return
	}

	pending := m.PendingRequests{Received: summaries(received), Sent: summaries(sent)}
	writeJSON(w, http.StatusOK, pending)
}

func applyRequestOperation(ctx context.Context, w http.ResponseWriter, r *http.Request, svc *relations.Service, logger *zap.Logger, op relations.Operation, uid string) {
	peerID := r.URL.Query().Get("id")
	if peerID == "" {
		WriteErrorToWriter(w, logger, fmt.Errorf("%w: id is required", errBadRequest))
		return
	}
	if err := svc.Apply(ctx, op, uid, peerID); err != nil {
		WriteErrorToWriter(w, logger, err)
		return
	}
	writeCommitted(w, op, peerID)
}

func summaries(users []m.User) []m.Friend {
	friends := make([]m.Friend, 0, len(users))
	for _, user := range users {
		friends = append(friends, user.Summary())
	}
	return friends
}
