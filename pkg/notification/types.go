package notification

import (
	"context"
	"time"
)

// Subscription represents a web push subscription registered by the
// operator's browser.
type Subscription struct {
	ID        string            `json:"id"`
	Endpoint  string            `json:"endpoint"`
	Keys      map[string]string `json:"keys"`
	UserAgent string            `json:"user_agent,omitempty"`
	Active    bool              `json:"active"`
	CreatedAt time.Time         `json:"created_at"`
}

// Sender delivers one notification over a single channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, title, body string) error
}
