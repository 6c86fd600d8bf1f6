package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"social_graph_services/src/auth"
	d "social_graph_services/src/directory"
	m "social_graph_services/src/models"
	"social_graph_services/src/search"
)

func SearchEndpointHandler(dir d.Directory, index search.Index, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, err := auth.Subject(r)
		if err != nil {
			WriteErrorToWriter(w, logger, err)
			return
		}

		switch r.Method {
		case http.MethodGet:
			searchVal := r.URL.Query().Get("lookup")
			UserTextSearch(r.Context(), w, dir, index, logger, uid, searchVal)
		default:
			methodNotAllowed(w)
		}
	})
}

func UserTextSearch(ctx context.Context, w http.ResponseWriter, dir d.Directory, index search.Index, logger *zap.Logger, uid string, searchVal string) {
	self, err := dir.Get(ctx, uid)
	if err != nil {
		WriteErrorToWriter(w, logger, err)
		return
	}

	users, err := index.Search(ctx, uid, searchVal)
	if err != nil {
		WriteErrorToWriter(w, logger, err)
		return
	}

	results := make([]m.SearchedUser, 0, len(users))
	for _, user := range users {
		results = append(results, searchedUser(uid, self, user))
	}
	writeJSON(w, http.StatusOK, results)
}
