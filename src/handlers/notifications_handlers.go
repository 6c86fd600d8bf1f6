package handlers

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"social_graph_services/src/auth"
	m "social_graph_services/src/models"
	"social_graph_services/src/notifications"
	"social_graph_services/src/relations"
)

func NotificationsEndpointHandler(inbox *notifications.Inbox, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, err := auth.Subject(r)
		if err != nil {
			WriteErrorToWriter(w, logger, err)
			return
		}

		switch r.Method {
		case http.MethodGet:
			GETExistingNotifications(r.Context(), w, inbox, logger, uid)
		case http.MethodPatch:
			PATCHMarkNotificationSeen(w, r, inbox, logger, uid)
		default:
			methodNotAllowed(w)
		}
	})
}

// NotificationResponseHandler answers an incoming request from the notification list,
// then drops the answered item from the caller's inbox.
func NotificationResponseHandler(svc *relations.Service, inbox *notifications.Inbox, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, err := auth.Subject(r)
		if err != nil {
			WriteErrorToWriter(w, logger, err)
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		POSTRespondToNotification(r.Context(), w, r, svc, inbox, logger, uid)
	})
}

func GETExistingNotifications(ctx context.Context, w http.ResponseWriter, inbox *notifications.Inbox, logger *zap.Logger, uid string) {
	list, err := inbox.Load(ctx, uid)
	if err != nil {
		WriteErrorToWriter(w, logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func PATCHMarkNotificationSeen(w http.ResponseWriter, r *http.Request, inbox *notifications.Inbox, logger *zap.Logger, uid string) {
	query := r.URL.Query()

	var err error
	var list interface{}
	switch {
	case query.Get("all") == "true":
		list, err = inbox.MarkAllRead(uid)
	case query.Get("id") != "":
		list, err = inbox.MarkRead(uid, query.Get("id"))
	default:
		err = fmt.Errorf("%w: id or all=true is required", errBadRequest)
	}
	if err != nil {
		WriteErrorToWriter(w, logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func POSTRespondToNotification(ctx context.Context, w http.ResponseWriter, r *http.Request, svc *relations.Service, inbox *notifications.Inbox, logger *zap.Logger, uid string) {
	notificationID := r.URL.Query().Get("id")
	if notificationID == "" {
		WriteErrorToWriter(w, logger, fmt.Errorf("%w: id is required", errBadRequest))
		return
	}

	var op relations.Operation
	switch r.URL.Query().Get("action") {
	case "accept":
		op = relations.OpAcceptRequest
	case "decline":
		op = relations.OpDeclineRequest
	default:
		WriteErrorToWriter(w, logger, fmt.Errorf("%w: action must be accept or decline", errBadRequest))
		return
	}

	notification, err := inbox.Find(ctx, uid, notificationID)
	if err != nil {
		WriteErrorToWriter(w, logger, err)
		return
	}
	if notification.Type != m.NotificationRequestReceived {
		WriteErrorToWriter(w, logger, fmt.Errorf("%w: id must name a received friend request", errBadRequest))
		return
	}

	if err := svc.Apply(ctx, op, uid, notification.PeerID); err != nil {
		WriteErrorToWriter(w, logger, err)
		return
	}
	if _, err := inbox.Remove(uid, notificationID); err != nil {
		logger.Debug("answered notification was not in the inbox", zap.String("user_id", uid), zap.Error(err))
	}
	writeCommitted(w, op, notification.PeerID)
}
