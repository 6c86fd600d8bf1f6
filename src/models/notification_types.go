package models

import (
	"strconv"
	"time"
)

const (
	NotificationRequestReceived = "friend_request_received"
	NotificationRequestSent     = "friend_request_sent"
)

type Notification struct {
	ID         string    `json:"notification_id"`
	Type       string    `json:"notification_type"`
	PeerID     string    `json:"peer_id"`
	Peer       Friend    `json:"peer"`
	ReceivedAt time.Time `json:"received_at"`
	Read       bool      `json:"read"`
	Actionable bool      `json:"actionable"`
}

type NotificationList struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
}

// CountUnread recomputes UnreadCount from the items.
func (list *NotificationList) CountUnread() {
	count := 0
	for _, notification := range list.Notifications {
		if notification.Type == NotificationRequestReceived && !notification.Read {
			count++
		}
	}
	list.UnreadCount = count
}

type FriendRequestNotification struct {
	RequestID   string    `json:"request_id"`
	ReceivedAt  time.Time `json:"received_at"`
	SenderID    string    `json:"sender_id"`
	ReceiverID  string    `json:"receiver_id"`
	DisplayName string    `json:"display_name"`
	Username    string    `json:"username"`
	Status      string    `json:"status"`
}

func (notification FriendRequestNotification) FirebaseToMap() map[string]string {
	return map[string]string{
		"type":         "friend-request",
		"request_id":   notification.RequestID,
		"received_at":  notification.ReceivedAt.Format(time.RFC3339),
		"sender_id":    notification.SenderID,
		"receiver_id":  notification.ReceiverID,
		"display_name": notification.DisplayName,
		"username":     notification.Username,
		"status":       notification.Status,
		"pending":      strconv.FormatBool(notification.Status == RequestPending),
	}
}
