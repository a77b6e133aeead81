package alert

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Discord sends notifications via Discord webhook.
type Discord struct {
	client     *http.Client
	webhookURL string
	now        func() time.Time
}

// NewDiscord creates a new Discord notifier.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{client: newClient(), webhookURL: webhookURL, now: time.Now}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, n *Notification) error {
	var links []string
	for _, item := range n.topItems() {
		links = append(links, fmt.Sprintf("• [%s](%s) [%s]", item.Title, item.URL, item.Source))
	}

	embed := map[string]any{
		"title":       n.Title,
		"url":         n.URL,
		"description": fmt.Sprintf("**Score:** %.1f | **Sources:** %s\n\n%s\n\n%s", n.Score, strings.Join(n.Sources, ", "), n.Body, strings.Join(links, "\n")),
		"color":       0x1F6FEB,
		"timestamp":   d.now().UTC().Format(time.RFC3339),
	}

	payload := map[string]any{
		"embeds": []map[string]any{embed},
	}
	return postJSON(ctx, d.client, "discord webhook", d.webhookURL, payload, nil)
}
