package alert

import (
	"context"
	"fmt"
	"net/http"
)

// Slack sends notifications via Slack incoming webhook.
type Slack struct {
	client     *http.Client
	webhookURL string
}

// NewSlack creates a new Slack notifier.
func NewSlack(webhookURL string) *Slack {
	return &Slack{client: newClient(), webhookURL: webhookURL}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, n *Notification) error {
	header := n.Title
	if n.URL != "" {
		header = fmt.Sprintf("<%s|%s>", n.URL, n.Title)
	}

	// Block Kit message: headline, score line, then member links.
	blocks := []map[string]any{
		{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*%s*\n*Score:* %.1f | *Sources:* %d\n%s", header, n.Score, len(n.Sources), n.Body),
			},
		},
	}

	if items := n.topItems(); len(items) > 1 {
		var elements []map[string]any
		for _, item := range items {
			elements = append(elements, map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("<%s|%s> [%s, %s]", item.URL, item.Title, item.Source, item.Category),
			})
		}
		blocks = append(blocks, map[string]any{
			"type":     "context",
			"elements": elements,
		})
	}

	payload := map[string]any{
		"text":   n.Title,
		"blocks": blocks,
	}
	return postJSON(ctx, s.client, "slack webhook", s.webhookURL, payload, nil)
}
