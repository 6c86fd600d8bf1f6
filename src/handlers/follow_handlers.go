package handlers

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"social_graph_services/src/auth"
	d "social_graph_services/src/directory"
	"social_graph_services/src/relations"
)

// FollowEndpointHandler serves /follow: GET lists followed users, PUT ?id= follows, DELETE ?id= unfollows.
func FollowEndpointHandler(svc *relations.Service, dir d.Directory, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, err := auth.Subject(r)
		if err != nil {
			WriteErrorToWriter(w, logger, err)
			return
		}

		switch r.Method {
		case http.MethodGet:
			GETFollowing(r.Context(), w, dir, logger, uid)
		case http.MethodPut:
			applyFollowOperation(r.Context(), w, svc, logger, relations.OpFollow, uid, r.URL.Query().Get("id"))
		case http.MethodDelete:
			applyFollowOperation(r.Context(), w, svc, logger, relations.OpUnfollow, uid, r.URL.Query().Get("id"))
		default:
			methodNotAllowed(w)
		}
	})
}

func GETFollowing(ctx context.Context, w http.ResponseWriter, dir d.Directory, logger *zap.Logger, uid string) {
	self, err := dir.Get(ctx, uid)
	if err != nil {
		WriteErrorToWriter(w, logger, err)
		return
	}
	followed, err := d.GetMany(ctx, dir, self.Following)
	if err != nil {
		WriteErrorToWriter(w, logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries(followed))
}

func applyFollowOperation(ctx context.Context, w http.ResponseWriter, svc *relations.Service, logger *zap.Logger, op relations.Operation, uid string, targetID string) {
	if targetID == "" {
		WriteErrorToWriter(w, logger, fmt.Errorf("%w: id is required", errBadRequest))
		return
	}
	apply := svc.FollowUser
	if op == relations.OpUnfollow {
		apply = svc.UnfollowUser
	}
	if err := apply(ctx, uid, targetID); err != nil {
		WriteErrorToWriter(w, logger, err)
		return
	}
	writeCommitted(w, op, targetID)
}
