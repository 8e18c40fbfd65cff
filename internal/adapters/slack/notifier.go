// Package slack posts alert notifications to a Slack channel.
package slack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
)

// ErrNoChannel is returned when no channel is configured.
var ErrNoChannel = errors.New("slack channel is not configured")

// Message is one channel post. Text is the notification fallback; Markdown
// is rendered as a section block.
type Message struct {
	Text     string
	Markdown string
}

// Poster posts messages to a channel and returns the message timestamp.
type Poster interface {
	Post(ctx context.Context, msg Message) (string, error)
}

// Notifier posts through the Slack Web API.
type Notifier struct {
	client  *slack.Client
	channel string
}

// NewNotifier creates a notifier. Extra options (e.g. slack.OptionAPIURL) are
// passed to the client.
// PRE: token is a bot token with chat:write
func NewNotifier(token, channel string, opts ...slack.Option) *Notifier {
	return &Notifier{client: slack.New(token, opts...), channel: channel}
}

// Post sends msg to the configured channel.
// POST: Returns the Slack message timestamp
func (n *Notifier) Post(ctx context.Context, msg Message) (string, error) {
	if n.channel == "" {
		return "", ErrNoChannel
	}
	options := []slack.MsgOption{slack.MsgOptionText(msg.Text, false)}
	if msg.Markdown != "" {
		section := slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, msg.Markdown, false, false), nil, nil)
		options = append(options, slack.MsgOptionBlocks(section))
	}

	channel, ts, err := n.client.PostMessageContext(ctx, n.channel, options...)
	if err != nil {
		slog.Error("slack_post_failed", "channel", n.channel, "error", err)
		return "", fmt.Errorf("slack post failed: %w", err)
	}
	slog.Info("slack_posted", "channel", channel, "ts", ts)
	return ts, nil
}
