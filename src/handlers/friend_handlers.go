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

// FriendEndpointHandler serves /friends. A non-nil reconciler repairs the caller's pairs before listing.
func FriendEndpointHandler(svc *relations.Service, dir d.Directory, reconciler *relations.Reconciler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, err := auth.Subject(r)
		if err != nil {
			WriteErrorToWriter(w, logger, err)
			return
		}

		switch r.Method {
		case http.MethodGet:
			GETFriendsByUserID(r.Context(), w, r, dir, reconciler, logger, uid)
		case http.MethodDelete:
			friendID := r.URL.Query().Get("friend_id")
			RemoveUserFromFriendList(r.Context(), w, svc, logger, uid, friendID)
		default:
			methodNotAllowed(w)
		}
	})
}

func GETFriendsByUserID(ctx context.Context, w http.ResponseWriter, r *http.Request, dir d.Directory, reconciler *relations.Reconciler, logger *zap.Logger, uid string) {
	if reconciler != nil {
		if _, err := reconciler.ReconcileUser(ctx, uid); err != nil {
			logger.Warn("reconcile on read failed", zap.String("user_id", uid), zap.Error(err))
		}
	}

	self, err := dir.Get(ctx, uid)
	if err != nil {
		WriteErrorToWriter(w, logger, err)
		return
	}
	friends, err := d.GetMany(ctx, dir, self.Friends)
	if err != nil {
		WriteErrorToWriter(w, logger, err)
		return
	}

	onlineOnly := r.URL.Query().Get("filter") == m.StatusOnline
	list := m.FriendList{Friends: []m.Friend{}}
	for _, friend := range friends {
		summary := friend.Summary()
		if summary.Status == m.StatusOnline {
			list.Counts.Online++
		}
		if onlineOnly && summary.Status != m.StatusOnline {
			continue
		}
		list.Friends = append(list.Friends, summary)
	}
	list.Counts.All = len(friends)
	list.Counts.Pending = len(self.FriendRequestsReceived)

	writeJSON(w, http.StatusOK, list)
}

func RemoveUserFromFriendList(ctx context.Context, w http.ResponseWriter, svc *relations.Service, logger *zap.Logger, uid string, friendID string) {
	if friendID == "" {
		WriteErrorToWriter(w, logger, fmt.Errorf("%w: friend_id is required", errBadRequest))
		return
	}
	if err := svc.RemoveFriend(ctx, uid, friendID); err != nil {
		WriteErrorToWriter(w, logger, err)
		return
	}
	writeCommitted(w, relations.OpRemoveFriend, friendID)
}
