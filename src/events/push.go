package events

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"

	d "social_graph_services/src/directory"
	m "social_graph_services/src/models"
)

// PushNotifier sends FCM messages to every device token registered on the recipient's document.
type PushNotifier struct {
	Messaging *messaging.Client
	Dir       d.Directory
	Logger    *zap.Logger
}

func (push PushNotifier) Notify(ctx context.Context, payload m.WebSocketPayload) error {
	notification, ok := PushContent(payload)
	if !ok {
		return nil
	}

	recipient, err := push.Dir.Get(ctx, notification.RecipientID)
	if err != nil {
		return fmt.Errorf("push to %q: %w", notification.RecipientID, err)
	}
	if len(recipient.FCMTokens) == 0 {
		return nil
	}

	message := messaging.MulticastMessage{
		Data:   notification.Data,
		Tokens: recipient.FCMTokens,
		Notification: &messaging.Notification{
			Title: pushTitle(notification),
			Body:  pushBody(notification),
		},
	}
	response, err := push.Messaging.SendEachForMulticast(ctx, &message)
	if err != nil {
		return fmt.Errorf("push to %q: %w", notification.RecipientID, err)
	}
	if response.FailureCount > 0 && push.Logger != nil {
		push.Logger.Warn("some push tokens failed", zap.String("user_id", notification.RecipientID),
			zap.Int("failures", response.FailureCount), zap.Int("successes", response.SuccessCount))
	}
	return nil
}

// PushContent picks the payloads worth a device push: incoming requests and acceptances.
func PushContent(payload m.WebSocketPayload) (m.FirebaseNotification, bool) {
	request, ok := payload.Payload.(m.FriendRequestNotification)
	if !ok {
		return m.FirebaseNotification{}, false
	}

	notification := m.FirebaseNotification{
		NotificationID: request.RequestID,
		RecipientID:    payload.UserID,
		RequesterName:  request.DisplayName,
		Data:           request.FirebaseToMap(),
	}
	switch payload.Operation {
	case m.OperationRequest:
		notification.Type = "friend-request"
		notification.RequesterID = request.SenderID
	case m.OperationAccepted:
		notification.Type = "friend-accepted"
		notification.RequesterID = request.ReceiverID
	default:
		return m.FirebaseNotification{}, false
	}
	return notification, true
}

func pushTitle(notification m.FirebaseNotification) string {
	switch notification.Type {
	case "friend-accepted":
		return "Friend request accepted"
	}
	return "New friend request"
}

func pushBody(notification m.FirebaseNotification) string {
	switch notification.Type {
	case "friend-accepted":
		return fmt.Sprintf("%v accepted your friend request.", notification.RequesterName)
	}
	return fmt.Sprintf("%v wants to be your friend.", notification.RequesterName)
}
