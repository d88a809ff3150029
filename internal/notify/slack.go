package notify

import (
	"context"
	"errors"
	"fmt"

	slacklib "github.com/slack-go/slack"
)

// ErrNoChannel is returned when the Slack notifier has no channel to post to.
var ErrNoChannel = errors.New("notify: slack channel is not configured")

// SlackAPI abstracts the subset of the Slack client used by SlackNotifier.
// *slack.Client satisfies this interface.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slacklib.MsgOption) (string, string, error)
}

// SlackNotifier posts invitations to a fixed channel.
type SlackNotifier struct {
	api     SlackAPI
	channel string
}

// Compile-time interface check.
var _ Notifier = (*SlackNotifier)(nil)

func NewSlackNotifier(api SlackAPI, channel string) *SlackNotifier {
	return &SlackNotifier{api: api, channel: channel}
}

// NewSlackNotifierFromToken builds a notifier backed by the real Slack client.
func NewSlackNotifierFromToken(botToken, channel string) *SlackNotifier {
	return NewSlackNotifier(slacklib.New(botToken), channel)
}

func (n *SlackNotifier) NotifyInvitation(ctx context.Context, inv Invitation) error {
	if n.channel == "" {
		return fmt.Errorf("notify.SlackNotifier.NotifyInvitation: %w", ErrNoChannel)
	}

	blocks := []slacklib.Block{
		slacklib.NewSectionBlock(slacklib.NewTextBlockObject(slacklib.MarkdownType, inv.Text(), false, false), nil, nil),
	}

	_, _, err := n.api.PostMessageContext(ctx, n.channel,
		slacklib.MsgOptionText(inv.Text(), false),
		slacklib.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		return fmt.Errorf("notify.SlackNotifier.NotifyInvitation: %w", err)
	}
	return nil
}
