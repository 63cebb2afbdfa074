// Package notify delivers user notifications produced by complaint
// transitions: a persistent inbox row, a realtime event to connected
// WebSocket clients, and a web push to each registered subscription.
// Delivery is best-effort; failures are logged and never surface to the
// operation that triggered them.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/civicdesk/civicdesk/internal/model"
	"github.com/civicdesk/civicdesk/internal/points"
	"github.com/civicdesk/civicdesk/internal/push"
	"github.com/civicdesk/civicdesk/internal/store"
	"github.com/civicdesk/civicdesk/internal/websocket"
)

// Pusher sends a web push to one subscription. Satisfied by *push.Service.
type Pusher interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload push.Payload) error
}

// Service implements the engine's notification sink.
type Service struct {
	notifications *store.NotificationStore
	subs          *store.PushStore
	hub           *websocket.Hub
	pusher        Pusher
	logger        *slog.Logger
}

func NewService(ns *store.NotificationStore, ps *store.PushStore, hub *websocket.Hub, pusher Pusher, logger *slog.Logger) *Service {
	return &Service{
		notifications: ns,
		subs:          ps,
		hub:           hub,
		pusher:        pusher,
		logger:        logger,
	}
}

// Notify persists the notification and fans it out. The inbox write happens
// inline so the row exists before the caller's response goes out; push
// delivery runs in the background.
func (s *Service) Notify(ctx context.Context, n points.Notification) {
	var complaintID *int64
	if n.ComplaintID != 0 {
		id := n.ComplaintID
		complaintID = &id
	}

	row, err := s.notifications.Create(n.UserID, n.Title, n.Message, n.Type, complaintID)
	if err != nil {
		s.logger.Error("persist notification", "user_id", n.UserID, "error", err)
		return
	}

	if s.hub != nil {
		s.hub.SendToUser(n.UserID, websocket.Event{
			Type:        "notification",
			ComplaintID: n.ComplaintID,
			Payload: map[string]any{
				"id":      row.ID,
				"title":   row.Title,
				"message": row.Message,
				"type":    row.Type,
			},
		})
	}

	if s.pusher != nil {
		go s.pushToUser(context.WithoutCancel(ctx), n)
	}
}

// pushToUser fans one notification out to all of a user's subscriptions,
// retrying transient failures and pruning subscriptions the push service
// reports as gone.
func (s *Service) pushToUser(ctx context.Context, n points.Notification) {
	subs, err := s.subs.ListByUser(n.UserID)
	if err != nil {
		s.logger.Error("list push subscriptions", "user_id", n.UserID, "error", err)
		return
	}

	payload := push.Payload{
		Title:       n.Title,
		Body:        n.Message,
		Type:        n.Type,
		ComplaintID: n.ComplaintID,
	}

	for i := range subs {
		sub := &subs[i]
		backoff := retry.WithMaxRetries(3, retry.NewFibonacci(250*time.Millisecond))

		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			err := s.pusher.Send(ctx, sub, payload)
			if err == nil || errors.Is(err, push.ErrExpired) {
				return err
			}
			return retry.RetryableError(err)
		})

		switch {
		case err == nil:
		case errors.Is(err, push.ErrExpired):
			if derr := s.subs.DeleteByEndpoint(sub.Endpoint); derr != nil {
				s.logger.Error("prune expired subscription", "endpoint", sub.Endpoint, "error", derr)
			}
		default:
			s.logger.Warn("push delivery failed", "user_id", n.UserID, "error", err)
		}
	}
}
