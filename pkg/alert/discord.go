package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// discordEmbedColor is the red used for failing sources.
const discordEmbedColor = 0xDC3545

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
}

// Discord posts notifications as an embed to a Discord webhook.
type Discord struct {
	client     *http.Client
	webhookURL string
}

func NewDiscord(webhookURL string) *Discord {
	return &Discord{client: newHTTPClient(), webhookURL: webhookURL}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, n *Notification) error {
	lines := issueLines(n.Issues, 10, "•", func(is SourceIssue) string {
		if is.URL == "" {
			return "**" + is.Name + "**"
		}
		return fmt.Sprintf("[%s](%s)", is.Name, is.URL)
	})

	payload := struct {
		Embeds []discordEmbed `json:"embeds"`
	}{
		Embeds: []discordEmbed{{
			Title:       "⚠️ " + n.Title,
			Description: n.Body + "\n\n" + strings.Join(lines, "\n"),
			Color:       discordEmbedColor,
			Timestamp:   n.SentAt.UTC().Format(time.RFC3339),
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode discord embed: %w", err)
	}
	return post(ctx, d.client, "discord webhook", d.webhookURL, body, nil)
}
