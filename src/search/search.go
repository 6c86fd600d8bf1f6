// Package search finds users by display name or @username.
package search

import (
	"context"
	"strings"

	d "social_graph_services/src/directory"
	m "social_graph_services/src/models"
)

const maxResults = 25

type Index interface {
	Search(ctx context.Context, selfID string, lookup string) ([]m.User, error)
	IndexUser(ctx context.Context, user m.User) error
}

// Matches is case-insensitive substring matching. A lookup starting with @ only looks at usernames.
// The searching user never matches.
func Matches(user m.User, selfID string, lookup string) bool {
	if user.ID == selfID {
		return false
	}
	query := strings.ToLower(strings.TrimSpace(lookup))
	if query == "" {
		return false
	}

	username := strings.ToLower(user.Username)
	if strings.HasPrefix(query, "@") {
		return strings.Contains(username, query[1:])
	}
	return strings.Contains(strings.ToLower(user.DisplayName), query) || strings.Contains(username, query)
}

// DirectoryIndex scans the directory on every search.
type DirectoryIndex struct {
	Dir d.Directory
}

func (index DirectoryIndex) Search(ctx context.Context, selfID string, lookup string) ([]m.User, error) {
	users, err := index.Dir.Query(ctx, func(user m.User) bool { return Matches(user, selfID, lookup) })
	if err != nil {
		return nil, err
	}
	if len(users) > maxResults {
		users = users[:maxResults]
	}
	return users, nil
}

func (index DirectoryIndex) IndexUser(ctx context.Context, user m.User) error {
	return nil
}
