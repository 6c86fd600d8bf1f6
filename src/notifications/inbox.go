package notifications

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	m "social_graph_services/src/models"
)

// ErrNotLoaded indicates the user's list has not been projected in this process yet,
// or was evicted since.
var ErrNotLoaded = errors.New("notifications not loaded")

// ErrUnknownNotification indicates the id is not in the user's current list.
var ErrUnknownNotification = errors.New("notification not found")

const (
	DefaultInboxSize = 10000
	DefaultInboxTTL  = time.Hour
)

// Inbox keeps the last projected list per user so read flags survive between requests
// until the next Load. At most size lists are kept, each for ttl after its last change.
type Inbox struct {
	projector *Projector

	mu    sync.Mutex
	lists *expirable.LRU[string, m.NotificationList]
}

type InboxOption func(size *int, ttl *time.Duration)

// WithCapacity bounds the number of cached lists and how long an untouched list is kept.
func WithCapacity(size int, ttl time.Duration) InboxOption {
	return func(sizeOpt *int, ttlOpt *time.Duration) {
		if size > 0 {
			*sizeOpt = size
		}
		if ttl > 0 {
			*ttlOpt = ttl
		}
	}
}

func NewInbox(projector *Projector, opts ...InboxOption) *Inbox {
	size, ttl := DefaultInboxSize, DefaultInboxTTL
	for _, opt := range opts {
		opt(&size, &ttl)
	}
	return &Inbox{
		projector: projector,
		lists:     expirable.NewLRU[string, m.NotificationList](size, nil, ttl),
	}
}

func (inbox *Inbox) Load(ctx context.Context, userID string) (m.NotificationList, error) {
	list, err := inbox.projector.Project(ctx, userID)
	if err != nil {
		return m.NotificationList{}, err
	}

	inbox.mu.Lock()
	defer inbox.mu.Unlock()
	inbox.lists.Add(userID, list)
	return copyList(list), nil
}

// Find returns one item of the user's list. When the cached list does not have it, or there is
// none, the list is projected again without replacing the cached read state.
func (inbox *Inbox) Find(ctx context.Context, userID string, notificationID string) (m.Notification, error) {
	inbox.mu.Lock()
	list, ok := inbox.lists.Get(userID)
	inbox.mu.Unlock()
	if ok {
		if notification, found := findIn(list, notificationID); found {
			return notification, nil
		}
	}

	fresh, err := inbox.projector.Project(ctx, userID)
	if err != nil {
		return m.Notification{}, err
	}
	if notification, found := findIn(fresh, notificationID); found {
		return notification, nil
	}
	return m.Notification{}, ErrUnknownNotification
}

// Forget drops the user's cached list.
func (inbox *Inbox) Forget(userID string) {
	inbox.mu.Lock()
	defer inbox.mu.Unlock()
	inbox.lists.Remove(userID)
}

// Len is the number of cached lists.
func (inbox *Inbox) Len() int {
	inbox.mu.Lock()
	defer inbox.mu.Unlock()
	return inbox.lists.Len()
}

func (inbox *Inbox) MarkRead(userID string, notificationID string) (m.NotificationList, error) {
	return inbox.modify(userID, func(list *m.NotificationList) error {
		for i := range list.Notifications {
			if list.Notifications[i].ID == notificationID {
				list.Notifications[i].Read = true
				return nil
			}
		}
		return ErrUnknownNotification
	})
}

func (inbox *Inbox) MarkAllRead(userID string) (m.NotificationList, error) {
	return inbox.modify(userID, func(list *m.NotificationList) error {
		for i := range list.Notifications {
			list.Notifications[i].Read = true
		}
		return nil
	})
}

// Remove drops one item, used once an incoming request has been answered.
func (inbox *Inbox) Remove(userID string, notificationID string) (m.NotificationList, error) {
	return inbox.modify(userID, func(list *m.NotificationList) error {
		kept := list.Notifications[:0]
		for _, notification := range list.Notifications {
			if notification.ID != notificationID {
				kept = append(kept, notification)
			}
		}
		list.Notifications = kept
		return nil
	})
}

func (inbox *Inbox) modify(userID string, fn func(list *m.NotificationList) error) (m.NotificationList, error) {
	inbox.mu.Lock()
	defer inbox.mu.Unlock()

	list, ok := inbox.lists.Get(userID)
	if !ok {
		return m.NotificationList{}, ErrNotLoaded
	}
	list = copyList(list)
	if err := fn(&list); err != nil {
		return m.NotificationList{}, err
	}
	list.CountUnread()
	inbox.lists.Add(userID, list)
	return copyList(list), nil
}

func findIn(list m.NotificationList, notificationID string) (m.Notification, bool) {
	for _, notification := range list.Notifications {
		if notification.ID == notificationID {
			return notification, true
		}
	}
	return m.Notification{}, false
}

func copyList(list m.NotificationList) m.NotificationList {
	notifications := make([]m.Notification, len(list.Notifications))
	copy(notifications, list.Notifications)
	list.Notifications = notifications
	return list
}
