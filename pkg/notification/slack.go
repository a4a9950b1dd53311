package notification

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackSender posts run outcomes to a Slack channel.
type SlackSender struct {
	client  *slack.Client
	channel string
}

// NewSlackSender creates a Slack sender for the given bot token and
// channel ID.
func NewSlackSender(token, channel string) (*SlackSender, error) {
	if token == "" {
		return nil, fmt.Errorf("slack bot token is required")
	}
	if channel == "" {
		return nil, fmt.Errorf("slack channel is required")
	}
	return &SlackSender{
		client:  slack.New(token),
		channel: channel,
	}, nil
}

// Name identifies the channel in logs and run details.
func (s *SlackSender) Name() string {
	return "slack"
}

// Send posts the notification as a channel message.
func (s *SlackSender) Send(ctx context.Context, title, body string) error {
	_, _, err := s.client.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(fmt.Sprintf("*%s*\n%s", title, body), false),
	)
	if err != nil {
		return fmt.Errorf("failed to post slack message: %w", err)
	}
	return nil
}
