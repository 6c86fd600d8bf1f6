package models

import "time"

const (
	MemberFilterAll     = "all"
	MemberFilterOnline  = "online"
	MemberFilterNew     = "new"
	MemberFilterFriends = "friends"
)

// Member is one row of the member directory, with the relationship actions the caller can take on it.
type Member struct {
	Friend
	FriendStatus string    `json:"friend_status"`
	Following    bool      `json:"following"`
	Actions      []string  `json:"actions"`
	JoinedAt     time.Time `json:"joined_at"`
}

type MemberList struct {
	Filter  string   `json:"filter"`
	Members []Member `json:"members"`
}
