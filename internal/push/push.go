// Package push delivers web push notifications for complaint updates.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/civicdesk/civicdesk/internal/model"
)

// ErrExpired marks a subscription the push service reports as gone (410).
// Callers should delete the subscription instead of retrying.
var ErrExpired = errors.New("push subscription expired")

// Payload is the JSON body delivered to the service worker.
type Payload struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	Type        string `json:"type,omitempty"`
	ComplaintID int64  `json:"complaint_id,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Service signs and sends web push messages with a VAPID key pair.
type Service struct {
	publicKey  string
	privateKey string
	subscriber string
}

// NewService builds a push sender. The subscriber is the contact address
// reported to push services, e.g. "mailto:ops@example.com".
func NewService(publicKey, privateKey, subscriber string) *Service {
	return &Service{publicKey: publicKey, privateKey: privateKey, subscriber: subscriber}
}

// VAPIDPublicKey is exposed to clients when they register a subscription.
func (s *Service) VAPIDPublicKey() string {
	return s.publicKey
}

// Send pushes one payload to one subscription. Warning-class notifications
// are marked high urgency so waking devices deliver them promptly.
func (s *Service) Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	urgency := webpush.UrgencyNormal
	if payload.Type == "warning" {
		urgency = webpush.UrgencyHigh
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		Subscriber:      s.subscriber,
		TTL:             86400,
		Urgency:         urgency,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone:
		return ErrExpired
	case resp.StatusCode >= 400:
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}
	return nil
}

// GenerateVAPIDKeys creates a fresh key pair for deployment setup.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("generate VAPID keys: %w", err)
	}
	return publicKey, privateKey, nil
}
