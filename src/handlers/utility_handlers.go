package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"social_graph_services/src/auth"
	d "social_graph_services/src/directory"
	m "social_graph_services/src/models"
	"social_graph_services/src/notifications"
	"social_graph_services/src/relations"
)

var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error string `json:"error"`
	State string `json:"state,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	responseBytes, err := json.MarshalIndent(body, "", "\t")
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(responseBytes)
}

// statusFor maps an error from any layer to the HTTP status and message shown to the caller.
func statusFor(err error) (int, string) {
	var partial *relations.PartialWriteError
	switch {
	case relations.IsValidation(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrNoClaims):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, d.ErrNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, notifications.ErrUnknownNotification):
		return http.StatusNotFound, "notification not found"
	case errors.Is(err, notifications.ErrNotLoaded):
		return http.StatusConflict, "notifications have not been loaded"
	case errors.As(err, &partial):
		if partial.RollsBack() {
			return http.StatusBadGateway, "the change was only partly saved and will be rolled back"
		}
		return http.StatusBadGateway, "the change was only partly saved and will be completed"
	}
	return http.StatusInternalServerError, "something went wrong, please try again"
}

// WriteErrorToWriter logs err and writes the mapped status with a JSON error body.
func WriteErrorToWriter(w http.ResponseWriter, logger *zap.Logger, err error) {
	status, message := statusFor(err)
	response := errorResponse{Error: message}

	var partial *relations.PartialWriteError
	if errors.As(err, &partial) {
		response.State = m.StatePartial
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		logger.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, response)
}

func writeCommitted(w http.ResponseWriter, op relations.Operation, peerID string) {
	writeJSON(w, http.StatusOK, m.OperationResult{Operation: string(op), PeerID: peerID, State: m.StateCommitted})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
}
