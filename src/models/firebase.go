package models

type FirebaseNotification struct {
	NotificationID string            `json:"notification_id"`
	RequesterID    string            `json:"requester_id"`
	RequesterName  string            `json:"requester_name"`
	RecipientID    string            `json:"recipient_id"`
	Type           string            `json:"type"`
	Data           map[string]string `json:"data"`
}
