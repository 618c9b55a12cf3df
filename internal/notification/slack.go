package notification

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/slack-go/slack"
)

type slackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackChannel posts notices to a Slack channel.
type SlackChannel struct {
	client  slackPoster
	channel string
}

func NewSlackChannel(token, channel string) *SlackChannel {
	return &SlackChannel{client: slack.New(token), channel: channel}
}

func (s *SlackChannel) Name() string { return "slack" }

func (s *SlackChannel) Deliver(ctx context.Context, n Notice) error {
	attachment := slack.Attachment{
		Color: noticeColor(n),
		Title: n.Subject(),
		Text:  n.Body(),
		Fields: []slack.AttachmentField{
			{Title: "Machine", Value: n.label(), Short: true},
			{Title: "Location", Value: n.Location, Short: true},
		},
		Footer: "Shop floor operations",
		Ts:     json.Number(strconv.FormatInt(time.Now().Unix(), 10)),
	}
	if n.Priority != "" {
		attachment.Fields = append(attachment.Fields, slack.AttachmentField{Title: "Priority", Value: n.Priority, Short: true})
	}

	_, _, err := s.client.PostMessageContext(ctx, s.channel, slack.MsgOptionAttachments(attachment))
	return err
}

func noticeColor(n Notice) string {
	switch n.Kind {
	case KindCriticalAlert:
		return "#ff0000"
	case KindMaintenanceDue:
		return "#ffcc00"
	default:
		return "#36a64f"
	}
}
