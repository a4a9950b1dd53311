// Package notification delivers run-outcome notifications over web push
// and Slack. The service reports a structured outcome instead of an error
// so callers can record exactly what happened on the run log.
package notification

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/quadrabot/quadra/pkg/schedule"
)

// Service fans a notification out to all configured senders and reports
// the combined outcome.
type Service struct {
	senders []Sender
}

// NewService creates a notification service with the given senders. A
// service with no senders is valid; it reports "not configured" on every
// attempt.
func NewService(senders ...Sender) *Service {
	return &Service{senders: senders}
}

// NewServiceFromEnv wires up every channel whose environment variables are
// present. Missing channels are skipped with a log line, not an error. The
// subscription store is shared with the HTTP subscription endpoints, so the
// caller owns it.
func NewServiceFromEnv(store *SubscriptionStore) *Service {
	var senders []Sender

	if webpush, err := NewWebPushSender(store); err != nil {
		log.Printf("[NOTIFICATION] webpush disabled: %v", err)
	} else {
		senders = append(senders, webpush)
	}

	token := os.Getenv("SLACK_BOT_TOKEN")
	channel := os.Getenv("SLACK_CHANNEL_ID")
	if slackSender, err := NewSlackSender(token, channel); err != nil {
		log.Printf("[NOTIFICATION] slack disabled: %v", err)
	} else {
		senders = append(senders, slackSender)
	}

	return NewService(senders...)
}

// Notify sends the notification over every configured channel. Sent is
// true when at least one channel delivered; Error carries the per-channel
// failures.
func (s *Service) Notify(ctx context.Context, title, body string) schedule.NotificationOutcome {
	if len(s.senders) == 0 {
		return schedule.NotificationOutcome{Configured: false}
	}

	outcome := schedule.NotificationOutcome{Configured: true}
	var failures []string
	for _, sender := range s.senders {
		if err := sender.Send(ctx, title, body); err != nil {
			log.Printf("[NOTIFICATION] %s send failed: %v", sender.Name(), err)
			failures = append(failures, sender.Name()+": "+err.Error())
			continue
		}
		outcome.Sent = true
	}
	if len(failures) > 0 {
		outcome.Error = strings.Join(failures, "; ")
	}
	return outcome
}
