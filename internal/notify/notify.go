// Package notify implements the notification service (C9): every
// notification is persisted first, then broadcast to whichever of the
// user's live websocket connections are currently attached, per
// spec.md §4.9's durable-then-broadcast ordering.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sermady/stockdata-core/internal/domain"
	"github.com/sermady/stockdata-core/internal/store"
)

// Service is both the durable notification store's front door and the
// live broadcast hub. It satisfies internal/sync.Notifier and
// internal/tasks.Notifier identically.
type Service struct {
	store *store.Store
	hub   *hub
	log   zerolog.Logger
}

// New builds a Service.
func New(st *store.Store, log zerolog.Logger) *Service {
	return &Service{
		store: st,
		hub:   newHub(),
		log:   log.With().Str("component", "notify").Logger(),
	}
}

// Publish persists n (stamping an ID and UserID if unset) and then
// broadcasts it to every live connection subscribed for userID. A
// broadcast that reaches no live connection is not an error — the
// notification is still durably stored for the next List call.
func (s *Service) Publish(ctx context.Context, userID string, n domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.UserID = userID
	if n.Status == "" {
		n.Status = domain.StatusUnread
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	if err := s.store.PutNotification(ctx, n); err != nil {
		return err
	}
	s.hub.broadcast(userID, n)
	return nil
}

// List returns userID's notifications, most recent first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]domain.Notification, error) {
	return s.store.ListNotifications(ctx, userID, limit, offset)
}

// CountUnread returns userID's unread count, surfaced as unread_count by
// GET /notifications.
func (s *Service) CountUnread(ctx context.Context, userID string) (int, error) {
	return s.store.CountUnread(ctx, userID)
}

// MarkRead marks one notification read; idempotent.
func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	return s.store.MarkRead(ctx, userID, id)
}

// MarkAllRead marks every one of userID's notifications read, returning
// the number of rows touched.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.store.MarkAllRead(ctx, userID)
}

// Subscribe registers a live connection for userID and returns the
// channel it should range over, plus an unsubscribe func the caller
// must invoke when the connection closes.
func (s *Service) Subscribe(userID string) (<-chan domain.Notification, func()) {
	return s.hub.subscribe(userID)
}
