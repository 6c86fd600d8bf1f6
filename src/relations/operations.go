package relations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	d "social_graph_services/src/directory"
	m "social_graph_services/src/models"
)

// Notifier receives one payload per committed operation, addressed to the peer.
type Notifier interface {
	Notify(ctx context.Context, payload m.WebSocketPayload) error
}

type Service struct {
	dir         d.Directory
	tx          d.Transactor
	independent bool
	logger      *zap.Logger
	notifier    Notifier
	clock       func() time.Time
	newID       func() string
}

type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(svc *Service) {
		if logger != nil {
			svc.logger = logger
		}
	}
}

func WithNotifier(notifier Notifier) Option {
	return func(svc *Service) { svc.notifier = notifier }
}

func WithClock(clock func() time.Time) Option {
	return func(svc *Service) { svc.clock = clock }
}

func WithIDGenerator(newID func() string) Option {
	return func(svc *Service) { svc.newID = newID }
}

// WithIndependentWrites issues the two document updates as separate calls even when the
// directory could apply them in one transaction.
func WithIndependentWrites() Option {
	return func(svc *Service) { svc.independent = true }
}

func NewService(dir d.Directory, opts ...Option) *Service {
	svc := &Service{
		dir:    dir,
		logger: zap.NewNop(),
		clock:  func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if tx, ok := dir.(d.Transactor); ok && !svc.independent {
		svc.tx = tx
	}
	return svc
}

// Atomic reports whether both halves of an operation are written in one transaction.
func (svc *Service) Atomic() bool {
	return svc.tx != nil
}

func (svc *Service) SendRequest(ctx context.Context, selfID string, peerID string) error {
	return svc.Apply(ctx, OpSendRequest, selfID, peerID)
}

func (svc *Service) AcceptRequest(ctx context.Context, selfID string, peerID string) error {
	return svc.Apply(ctx, OpAcceptRequest, selfID, peerID)
}

func (svc *Service) DeclineRequest(ctx context.Context, selfID string, peerID string) error {
	return svc.Apply(ctx, OpDeclineRequest, selfID, peerID)
}

func (svc *Service) CancelRequest(ctx context.Context, selfID string, peerID string) error {
	return svc.Apply(ctx, OpCancelRequest, selfID, peerID)
}

func (svc *Service) RemoveFriend(ctx context.Context, selfID string, peerID string) error {
	return svc.Apply(ctx, OpRemoveFriend, selfID, peerID)
}

// FollowUser adds targetID to self's following list. The target's document is not written.
func (svc *Service) FollowUser(ctx context.Context, selfID string, targetID string) error {
	return svc.Apply(ctx, OpFollow, selfID, targetID)
}

func (svc *Service) UnfollowUser(ctx context.Context, selfID string, targetID string) error {
	return svc.Apply(ctx, OpUnfollow, selfID, targetID)
}

// Status loads self's document and resolves its relationship to otherID.
func (svc *Service) Status(ctx context.Context, selfID string, otherID string) (Status, error) {
	if selfID == "" || otherID == "" {
		return StatusNone, ErrMissingUserID
	}
	self, err := svc.dir.Get(ctx, selfID)
	if err != nil {
		return StatusNone, err
	}
	return StatusOf(selfID, otherID, self), nil
}

// Apply validates, reads both documents, then writes the planned mutation pair.
// Relationship preconditions are not checked: running an operation against a pair that is
// not in the expected state changes nothing that was not already true.
func (svc *Service) Apply(ctx context.Context, op Operation, selfID string, peerID string) error {
	selfMutation, peerMutation := Plan(op, selfID, peerID)
	if selfMutation == nil {
		return fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
	if selfID == "" || peerID == "" {
		return ErrMissingUserID
	}
	if selfID == peerID {
		if op.OneSided() {
			return ErrSelfFollow
		}
		return ErrSelfRequest
	}

	self, err := svc.dir.Get(ctx, selfID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := svc.dir.Get(ctx, peerID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	logger := svc.logger.With(zap.String("operation", string(op)), zap.String("self", selfID), zap.String("peer", peerID))
	if op.OneSided() {
		if err := svc.dir.Update(ctx, selfID, selfMutation); err != nil {
			logger.Warn("self update failed", zap.Error(err))
			return fmt.Errorf("%s: %w", op, err)
		}
		logger.Debug("relationship updated")
		svc.notify(ctx, op, self, peerID, nil)
		return nil
	}

	request, err := svc.ledgerRecord(ctx, op, selfID, peerID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if svc.tx != nil {
		err := svc.tx.UpdatePair(ctx, d.PairUpdate{
			SelfID:  selfID,
			Self:    selfMutation,
			PeerID:  peerID,
			Peer:    peerMutation,
			Request: request,
		})
		if err != nil {
			logger.Warn("relationship transaction failed", zap.Error(err))
			return fmt.Errorf("%s: %w", op, err)
		}
	} else {
		if err := svc.dir.Update(ctx, selfID, selfMutation); err != nil {
			logger.Warn("self update failed", zap.Error(err))
			return fmt.Errorf("%s: %w", op, err)
		}
		// the ledger goes before the peer write so reconciliation knows which way a half-applied
		// request operation was heading
		if request != nil {
			if err := svc.dir.PutRequest(ctx, *request); err != nil {
				logger.Warn("request ledger write failed", zap.Error(err))
			}
		}
		if err := svc.dir.Update(ctx, peerID, peerMutation); err != nil {
			logger.Error("peer update failed after self update, pair left asymmetric", zap.Error(err))
			return &PartialWriteError{Operation: op, SelfID: selfID, PeerID: peerID, Err: err}
		}
	}

	logger.Debug("relationship updated")
	svc.notify(ctx, op, self, peerID, request)
	return nil
}

// ledgerRecord returns the request record op leaves behind, or nil when op does not touch requests.
func (svc *Service) ledgerRecord(ctx context.Context, op Operation, selfID string, peerID string) (*m.FriendRequest, error) {
	var senderID, receiverID, status string
	switch op {
	case OpSendRequest:
		senderID, receiverID, status = selfID, peerID, m.RequestPending
	case OpAcceptRequest:
		senderID, receiverID, status = peerID, selfID, m.RequestAccepted
	case OpDeclineRequest:
		senderID, receiverID, status = peerID, selfID, m.RequestDeclined
	case OpCancelRequest:
		senderID, receiverID, status = selfID, peerID, m.RequestCancelled
	default:
		return nil, nil
	}

	now := svc.clock()
	existing, err := svc.dir.GetRequest(ctx, senderID, receiverID)
	switch {
	case errors.Is(err, d.ErrNotFound):
		return &m.FriendRequest{
			RequestID:  svc.newID(),
			SenderID:   senderID,
			ReceiverID: receiverID,
			Status:     status,
			CreatedAt:  now,
			UpdatedAt:  now,
		}, nil
	case err != nil:
		return nil, err
	}

	if existing.Status == status {
		return &existing, nil
	}
	if status == m.RequestPending {
		// a resolved request followed by a new one starts a new record
		return &m.FriendRequest{
			RequestID:  svc.newID(),
			SenderID:   senderID,
			ReceiverID: receiverID,
			Status:     status,
			CreatedAt:  now,
			UpdatedAt:  now,
		}, nil
	}
	existing.Status = status
	existing.UpdatedAt = now
	return &existing, nil
}

func (svc *Service) notify(ctx context.Context, op Operation, self m.User, peerID string, request *m.FriendRequest) {
	if svc.notifier == nil {
		return
	}

	operation, payloadType := op.event()
	if operation == "" {
		return
	}
	payload := m.WebSocketPayload{
		Operation: operation,
		Type:      payloadType,
		UserID:    peerID,
		State:     m.StateCommitted,
	}
	summary := self.Summary()
	if request != nil {
		payload.Payload = m.FriendRequestNotification{
			RequestID:   request.RequestID,
			ReceivedAt:  request.CreatedAt,
			SenderID:    request.SenderID,
			ReceiverID:  request.ReceiverID,
			DisplayName: summary.DisplayName,
			Username:    summary.Username,
			Status:      request.Status,
		}
	} else {
		payload.Payload = summary
	}

	if err := svc.notifier.Notify(ctx, payload); err != nil {
		svc.logger.Warn("notify failed", zap.String("operation", operation), zap.String("user_id", peerID), zap.Error(err))
	}
}
