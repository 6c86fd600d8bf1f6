// Package notifications derives the friend request notification list from a user's document.
// Nothing here is persisted: every Load rebuilds the list and every received item is unread again.
package notifications

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	d "social_graph_services/src/directory"
	m "social_graph_services/src/models"
)

func ReceivedID(peerID string) string {
	return "friend_request_" + peerID
}

func SentID(peerID string) string {
	return "friend_request_sent_" + peerID
}

type Projector struct {
	dir    d.Directory
	clock  func() time.Time
	logger *zap.Logger
}

func NewProjector(dir d.Directory, clock func() time.Time, logger *zap.Logger) *Projector {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Projector{dir: dir, clock: clock, logger: logger}
}

// Project builds the list for selfID, newest first. Pending requests are dated from the
// request ledger; requests without a ledger record fall back to the load time.
func (projector *Projector) Project(ctx context.Context, selfID string) (m.NotificationList, error) {
	self, err := projector.dir.Get(ctx, selfID)
	if err != nil {
		return m.NotificationList{}, fmt.Errorf("project notifications: %w", err)
	}
	loadedAt := projector.clock()

	createdAt := map[string]time.Time{}
	requests, err := projector.dir.ListRequests(ctx, selfID)
	if err != nil {
		projector.logger.Warn("request ledger unavailable, using load time", zap.String("user_id", selfID), zap.Error(err))
	}
	for _, request := range requests {
		if request.Pending() {
			createdAt[d.RequestKey(request.SenderID, request.ReceiverID)] = request.CreatedAt
		}
	}
	timestamp := func(senderID string, receiverID string) time.Time {
		if at, ok := createdAt[d.RequestKey(senderID, receiverID)]; ok {
			return at
		}
		return loadedAt
	}

	received, err := d.GetMany(ctx, projector.dir, self.FriendRequestsReceived)
	if err != nil {
		return m.NotificationList{}, fmt.Errorf("load request senders: %w", err)
	}
	sent, err := d.GetMany(ctx, projector.dir, self.FriendRequestsSent)
	if err != nil {
		return m.NotificationList{}, fmt.Errorf("load request recipients: %w", err)
	}

	list := m.NotificationList{Notifications: make([]m.Notification, 0, len(received)+len(sent))}
	for _, peer := range received {
		list.Notifications = append(list.Notifications, m.Notification{
			ID:         ReceivedID(peer.ID),
			Type:       m.NotificationRequestReceived,
			PeerID:     peer.ID,
			Peer:       peer.Summary(),
			ReceivedAt: timestamp(peer.ID, selfID),
			Read:       false,
			Actionable: true,
		})
	}
	for _, peer := range sent {
		list.Notifications = append(list.Notifications, m.Notification{
			ID:         SentID(peer.ID),
			Type:       m.NotificationRequestSent,
			PeerID:     peer.ID,
			Peer:       peer.Summary(),
			ReceivedAt: timestamp(selfID, peer.ID),
			Read:       true,
		})
	}

	sort.SliceStable(list.Notifications, func(i, j int) bool {
		a, b := list.Notifications[i], list.Notifications[j]
		if !a.ReceivedAt.Equal(b.ReceivedAt) {
			return a.ReceivedAt.After(b.ReceivedAt)
		}
		if a.Type != b.Type {
			return a.Type == m.NotificationRequestReceived
		}
		return a.ID < b.ID
	})
	list.CountUnread()
	return list, nil
}
