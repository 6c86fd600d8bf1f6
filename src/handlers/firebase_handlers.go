package handlers

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"social_graph_services/src/auth"
	d "social_graph_services/src/directory"
)

func FirebaseHandlers(dir d.Directory, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, err := auth.Subject(r)
		if err != nil {
			WriteErrorToWriter(w, logger, err)
			return
		}

		switch r.Method {
		case http.MethodPut:
			PUTFirebaseToken(r.Context(), w, r, dir, logger, uid)
		default:
			methodNotAllowed(w)
		}
	})
}

// PUTFirebaseToken registers a device for push. Re-registering the same token is a no-op.
func PUTFirebaseToken(ctx context.Context, w http.ResponseWriter, r *http.Request, dir d.Directory, logger *zap.Logger, uid string) {
	token := r.URL.Query().Get("token")
	if token == "" {
		WriteErrorToWriter(w, logger, fmt.Errorf("%w: token is required", errBadRequest))
		return
	}

	if err := dir.Update(ctx, uid, d.Mutation{d.Union(d.FieldFCMTokens, token)}); err != nil {
		WriteErrorToWriter(w, logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated token - success"})
}
