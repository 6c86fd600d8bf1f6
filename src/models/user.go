package models

import "time"

type User struct {
	ID                     string    `json:"user_id" firestore:"-"`
	DisplayName            string    `json:"display_name" firestore:"displayName"`
	Username               string    `json:"username" firestore:"username"`
	Avatar                 string    `json:"avatar" firestore:"avatar"`
	Bio                    string    `json:"bio" firestore:"bio"`
	Status                 string    `json:"status" firestore:"status"`
	Friends                []string  `json:"friends" firestore:"friends"`
	FriendRequestsSent     []string  `json:"friend_requests_sent" firestore:"friendRequestsSent"`
	FriendRequestsReceived []string  `json:"friend_requests_received" firestore:"friendRequestsReceived"`
	Following              []string  `json:"following" firestore:"following"`
	FCMTokens              []string  `json:"-" firestore:"fcmTokens"`
	CreatedAt              time.Time `json:"created_at" firestore:"createdAt"`
}

// Clone returns a copy whose slices do not alias the receiver's.
func (user User) Clone() User {
	clone := user
	clone.Friends = append([]string(nil), user.Friends...)
	clone.FriendRequestsSent = append([]string(nil), user.FriendRequestsSent...)
	clone.FriendRequestsReceived = append([]string(nil), user.FriendRequestsReceived...)
	clone.Following = append([]string(nil), user.Following...)
	clone.FCMTokens = append([]string(nil), user.FCMTokens...)
	return clone
}

// Summary is the profile view shown in friend, request and search lists.
func (user User) Summary() Friend {
	friend := Friend{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Username:    user.Username,
		Avatar:      user.Avatar,
		Bio:         user.Bio,
		Status:      user.Status,
	}
	if friend.DisplayName == "" {
		friend.DisplayName = "Unknown"
	}
	if friend.Username == "" {
		friend.Username = "user"
	}
	if friend.Status == "" {
		friend.Status = StatusOffline
	}
	return friend
}

type SearchedUser struct {
	ID           string `json:"user_id"`
	DisplayName  string `json:"display_name"`
	Username     string `json:"username"`
	Avatar       string `json:"avatar"`
	Bio          string `json:"bio"`
	FriendStatus string `json:"friend_status"`
	FriendCount  int    `json:"friend_count"`
	Following    bool   `json:"following"`
}

type ProfileUpdate struct {
	DisplayName string `json:"display_name"`
	Username    string `json:"username"`
	Avatar      string `json:"avatar"`
	Bio         string `json:"bio"`
	Status      string `json:"status"`
}
