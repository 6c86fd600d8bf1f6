package models

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

type Friend struct {
	ID          string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Username    string `json:"username"`
	Avatar      string `json:"avatar"`
	Bio         string `json:"bio"`
	Status      string `json:"status"`
}

type FriendList struct {
	Friends []Friend     `json:"friends"`
	Counts  FriendCounts `json:"counts"`
}

type FriendCounts struct {
	All     int `json:"all"`
	Online  int `json:"online"`
	Pending int `json:"pending"`
}

type PendingRequests struct {
	Received []Friend `json:"received"`
	Sent     []Friend `json:"sent"`
}
