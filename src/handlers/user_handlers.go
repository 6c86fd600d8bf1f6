package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"social_graph_services/src/auth"
	d "social_graph_services/src/directory"
	m "social_graph_services/src/models"
	"social_graph_services/src/relations"
	"social_graph_services/src/search"
)

func UserEndpointHandler(dir d.Directory, index search.Index, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, err := auth.Subject(r)
		if err != nil {
			WriteErrorToWriter(w, logger, err)
			return
		}

		switch r.Method {
		case http.MethodGet:
			if otherID := r.URL.Query().Get("id"); otherID != "" && otherID != uid {
				GETUserInformation(r.Context(), w, dir, logger, uid, otherID)
				return
			}
			GETAuthUserInformation(r.Context(), w, dir, logger, uid)
		case http.MethodPut:
			PUTUserProfile(r.Context(), w, r, dir, index, logger, uid)
		default:
			methodNotAllowed(w)
		}
	})
}

func GETAuthUserInformation(ctx context.Context, w http.ResponseWriter, dir d.Directory, logger *zap.Logger, uid string) {
	user, err := dir.Get(ctx, uid)
	if err != nil {
		WriteErrorToWriter(w, logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GETUserInformation shows another user's profile along with how the caller relates to them.
func GETUserInformation(ctx context.Context, w http.ResponseWriter, dir d.Directory, logger *zap.Logger, uid string, otherID string) {
	self, err := dir.Get(ctx, uid)
	if err != nil {
		WriteErrorToWriter(w, logger, err)
		return
	}
	other, err := dir.Get(ctx, otherID)
	if err != nil {
		WriteErrorToWriter(w, logger, err)
		return
	}
	writeJSON(w, http.StatusOK, searchedUser(uid, self, other))
}

func PUTUserProfile(ctx context.Context, w http.ResponseWriter, r *http.Request, dir d.Directory, index search.Index, logger *zap.Logger, uid string) {
	var update m.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		WriteErrorToWriter(w, logger, fmt.Errorf("%w: invalid profile body: %v", errBadRequest, err))
		return
	}
	update.Username = strings.TrimPrefix(strings.TrimSpace(update.Username), "@")
	if update.Status != "" && update.Status != m.StatusOnline && update.Status != m.StatusOffline {
		WriteErrorToWriter(w, logger, fmt.Errorf("%w: status must be online or offline", errBadRequest))
		return
	}

	user := m.User{
		ID:          uid,
		DisplayName: strings.TrimSpace(update.DisplayName),
		Username:    update.Username,
		Avatar:      update.Avatar,
		Bio:         update.Bio,
		Status:      update.Status,
		CreatedAt:   time.Now().UTC(),
	}
	if err := dir.Put(ctx, user); err != nil {
		WriteErrorToWriter(w, logger, err)
		return
	}

	saved, err := dir.Get(ctx, uid)
	if err != nil {
		WriteErrorToWriter(w, logger, err)
		return
	}
	if err := index.IndexUser(ctx, saved); err != nil {
		logger.Warn("failed to index profile", zap.String("user_id", uid), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, saved)
}

func searchedUser(uid string, self m.User, other m.User) m.SearchedUser {
	summary := other.Summary()
	return m.SearchedUser{
		ID:           summary.ID,
		DisplayName:  summary.DisplayName,
		Username:     summary.Username,
		Avatar:       summary.Avatar,
		Bio:          summary.Bio,
		FriendStatus: string(relations.StatusOf(uid, other.ID, self)),
		FriendCount:  len(other.Friends),
		Following:    d.Contains(self.Following, other.ID),
	}
}
