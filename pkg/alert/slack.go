package alert

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/slack-go/slack"
)

// Slack sends notifications via Slack incoming webhook.
type Slack struct {
	client     *http.Client
	webhookURL string
}

// NewSlack creates a new Slack notifier.
func NewSlack(webhookURL string) *Slack {
	return &Slack{
		client:     newHTTPClient(),
		webhookURL: webhookURL,
	}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, n *Notification) error {
	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, "⚠️ "+n.Title, false, false)),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, n.Body, false, false), nil, nil),
	}

	if len(n.Issues) > 0 {
		lines := issueLines(n.Issues, 10, "•", func(is SourceIssue) string {
			if is.URL == "" {
				return "*" + is.Name + "*"
			}
			return fmt.Sprintf("<%s|%s>", is.URL, is.Name)
		})
		text := slack.NewTextBlockObject(slack.MarkdownType, strings.Join(lines, "\n"), false, false)
		blocks = append(blocks, slack.NewSectionBlock(text, nil, nil))
	}

	msg := &slack.WebhookMessage{
		Text:   n.Title,
		Blocks: &slack.Blocks{BlockSet: blocks},
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.webhookURL, s.client, msg); err != nil {
		return fmt.Errorf("send slack webhook: %w", err)
	}
	return nil
}
