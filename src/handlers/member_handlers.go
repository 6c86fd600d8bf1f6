package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"go.uber.org/zap"

	"social_graph_services/src/auth"
	d "social_graph_services/src/directory"
	m "social_graph_services/src/models"
	"social_graph_services/src/relations"
)

// MemberEndpointHandler serves /members, the directory of every other user.
func MemberEndpointHandler(dir d.Directory, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, err := auth.Subject(r)
		if err != nil {
			WriteErrorToWriter(w, logger, err)
			return
		}
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		GETMembers(r.Context(), w, dir, logger, uid, r.URL.Query().Get("filter"))
	})
}

// GETMembers lists everyone but the caller by display name. filter=online keeps online members,
// filter=friends keeps the caller's friends and filter=new orders by join date, newest first.
func GETMembers(ctx context.Context, w http.ResponseWriter, dir d.Directory, logger *zap.Logger, uid string, filter string) {
	if filter == "" {
		filter = m.MemberFilterAll
	}
	switch filter {
	case m.MemberFilterAll, m.MemberFilterOnline, m.MemberFilterNew, m.MemberFilterFriends:
	default:
		WriteErrorToWriter(w, logger, fmt.Errorf("%w: unknown filter %q", errBadRequest, filter))
		return
	}

	self, err := dir.Get(ctx, uid)
	if err != nil {
		WriteErrorToWriter(w, logger, err)
		return
	}
	others, err := dir.Query(ctx, func(user m.User) bool {
		switch {
		case user.ID == uid:
			return false
		case filter == m.MemberFilterOnline:
			return user.Status == m.StatusOnline
		case filter == m.MemberFilterFriends:
			return d.Contains(self.Friends, user.ID)
		}
		return true
	})
	if err != nil {
		WriteErrorToWriter(w, logger, err)
		return
	}

	sortMembers(others, filter == m.MemberFilterNew)
	list := m.MemberList{Filter: filter, Members: make([]m.Member, 0, len(others))}
	for _, other := range others {
		list.Members = append(list.Members, member(uid, self, other))
	}
	writeJSON(w, http.StatusOK, list)
}

func sortMembers(users []m.User, newestFirst bool) {
	sort.SliceStable(users, func(i, j int) bool {
		a, b := users[i], users[j]
		if newestFirst && !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		nameA, nameB := strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName)
		if nameA != nameB {
			return nameA < nameB
		}
		return a.ID < b.ID
	})
}

func member(uid string, self m.User, other m.User) m.Member {
	status := relations.StatusOf(uid, other.ID, self)
	actions := []string{}
	for _, op := range relations.AvailableOperations(status) {
		actions = append(actions, string(op))
	}
	if d.Contains(self.Following, other.ID) {
		actions = append(actions, string(relations.OpUnfollow))
	} else {
		actions = append(actions, string(relations.OpFollow))
	}

	return m.Member{
		Friend:       other.Summary(),
		FriendStatus: string(status),
		Following:    d.Contains(self.Following, other.ID),
		Actions:      actions,
		JoinedAt:     other.CreatedAt,
	}
}
