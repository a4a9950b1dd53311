package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/SherClockHolmes/webpush-go"
)

// WebPushSender delivers notifications to registered browser subscriptions.
type WebPushSender struct {
	vapidPublicKey    string
	vapidPrivateKey   string
	vapidContactEmail string
	store             *SubscriptionStore
}

// NewWebPushSender creates a web push sender from VAPID environment
// variables.
func NewWebPushSender(store *SubscriptionStore) (*WebPushSender, error) {
	vapidPublicKey := os.Getenv("VAPID_PUBLIC_KEY")
	vapidPrivateKey := os.Getenv("VAPID_PRIVATE_KEY")
	vapidContactEmail := os.Getenv("VAPID_CONTACT_EMAIL")

	if vapidPublicKey == "" || vapidPrivateKey == "" || vapidContactEmail == "" {
		return nil, fmt.Errorf("VAPID configuration required: set VAPID_PUBLIC_KEY, VAPID_PRIVATE_KEY, and VAPID_CONTACT_EMAIL environment variables")
	}

	return &WebPushSender{
		vapidPublicKey:    vapidPublicKey,
		vapidPrivateKey:   vapidPrivateKey,
		vapidContactEmail: vapidContactEmail,
		store:             store,
	}, nil
}

// Name identifies the channel in logs and run details.
func (s *WebPushSender) Name() string {
	return "webpush"
}

// Send pushes the notification to every active subscription. It succeeds
// if at least one subscription accepted the payload.
func (s *WebPushSender) Send(ctx context.Context, title, body string) error {
	subscriptions, err := s.store.List()
	if err != nil {
		return fmt.Errorf("failed to load subscriptions: %w", err)
	}
	if len(subscriptions) == 0 {
		return fmt.Errorf("no active push subscriptions")
	}

	payload := map[string]interface{}{
		"title": title,
		"body":  body,
		"icon":  "/icon-192x192.png",
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	delivered := 0
	var lastErr error
	for _, sub := range subscriptions {
		if err := s.sendOne(ctx, sub, payloadBytes); err != nil {
			log.Printf("[NOTIFICATION] webpush delivery to %s failed: %v", sub.ID, err)
			lastErr = err
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return fmt.Errorf("all push deliveries failed: %w", lastErr)
	}
	return nil
}

func (s *WebPushSender) sendOne(ctx context.Context, sub Subscription, payload []byte) error {
	webpushSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys["p256dh"],
			Auth:   sub.Keys["auth"],
		},
	}

	options := &webpush.Options{
		Subscriber:      s.vapidContactEmail,
		VAPIDPublicKey:  s.vapidPublicKey,
		VAPIDPrivateKey: s.vapidPrivateKey,
		TTL:             86400, // 24 hours
		Urgency:         webpush.UrgencyHigh,
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, webpushSub, options)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notification rejected with status %d", resp.StatusCode)
	}
	return nil
}
