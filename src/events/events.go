// Package events delivers committed relationship changes to the peer: over Redis to any open
// WebSocket, and as a device push.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	m "social_graph_services/src/models"
)

type Notifier interface {
	Notify(ctx context.Context, payload m.WebSocketPayload) error
}

// Fanout delivers to every notifier and joins their errors.
type Fanout []Notifier

func (fanout Fanout) Notify(ctx context.Context, payload m.WebSocketPayload) error {
	var errs []error
	for _, notifier := range fanout {
		if err := notifier.Notify(ctx, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type RedisPublisher struct {
	Rdb     *redis.Client
	Channel string
}

func (publisher RedisPublisher) Notify(ctx context.Context, payload m.WebSocketPayload) error {
	jsonPayload, err := json.MarshalIndent(payload, "", "\t")
	if err != nil {
		return err
	}

	err = publisher.Rdb.Publish(ctx, publisher.Channel, jsonPayload).Err()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", publisher.Channel, err)
	}
	return nil
}
