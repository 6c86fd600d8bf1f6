package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"social_graph_services/src/auth"
	m "social_graph_services/src/models"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type ConnectionState struct {
	Conn   *websocket.Conn
	UserID string
	logger *zap.Logger
}

// WebSocketEndpointHandler streams every relationship event on channel that is addressed to the caller.
func WebSocketEndpointHandler(rdb *redis.Client, channel string, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, err := auth.Subject(r)
		if err != nil {
			WriteErrorToWriter(w, logger, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("failed to upgrade websocket", zap.String("user_id", uid), zap.Error(err))
			return
		}

		state := &ConnectionState{Conn: conn, UserID: uid, logger: logger}
		quit := make(chan struct{})
		go state.CheckConnectionStatus(quit)
		state.ListenAndWrite(r.Context(), rdb, channel, quit)
	})
}

func (state *ConnectionState) ListenAndWrite(ctx context.Context, rdb *redis.Client, channel string, quit <-chan struct{}) {
	pubSub := rdb.Subscribe(ctx, channel)
	defer func() {
		if err := pubSub.Close(); err != nil {
			state.logger.Warn("error closing redis subscription", zap.String("channel", channel), zap.Error(err))
		}
		if err := state.Conn.Close(); err != nil {
			state.logger.Debug("error closing websocket", zap.Error(err))
		}
	}()

	notificationChannel := pubSub.Channel(redis.WithChannelSize(250))
	for {
		select {
		case message, ok := <-notificationChannel:
			if !ok {
				return
			}
			if err := state.sendWebSocketNotification(message.Payload); err != nil {
				state.logger.Info("websocket write failed", zap.String("user_id", state.UserID), zap.Error(err))
				return
			}
		case <-quit:
			return
		case <-ctx.Done():
			return
		}
	}
}

// CheckConnectionStatus drains client frames and closes quit once the client goes away.
func (state *ConnectionState) CheckConnectionStatus(quit chan<- struct{}) {
	defer close(quit)
	for {
		if _, _, err := state.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				state.logger.Info("websocket closed unexpectedly", zap.String("user_id", state.UserID), zap.Error(err))
			}
			return
		}
	}
}

func (state *ConnectionState) sendWebSocketNotification(payload string) error {
	deliver, err := AddressedTo(payload, state.UserID)
	if err != nil {
		state.logger.Warn("dropping malformed event", zap.Error(err))
		return nil
	}
	if !deliver {
		return nil
	}

	if err := state.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return state.Conn.WriteMessage(websocket.TextMessage, []byte(payload))
}

// AddressedTo reports whether a published event is meant for uid.
func AddressedTo(payload string, uid string) (bool, error) {
	var wsPayload m.WebSocketPayload
	if err := json.Unmarshal([]byte(payload), &wsPayload); err != nil {
		return false, err
	}
	return wsPayload.UserID == uid, nil
}
