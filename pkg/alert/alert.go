package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/elonfeng/storyrank/pkg/source"
	"github.com/elonfeng/storyrank/pkg/story"
)

// maxLinks caps the member links rendered in chat messages.
const maxLinks = 5

// Notification is the data sent to alert destinations.
type Notification struct {
	RunID     string        `json:"run_id,omitempty"`
	ClusterID string        `json:"cluster_id"`
	Title     string        `json:"title"`
	Body      string        `json:"body"`
	URL       string        `json:"url"`
	Score     float64       `json:"score"`
	Sources   []string      `json:"sources"`
	Items     []source.Item `json:"items"`
}

// NotificationFromCluster describes a ranked cluster, headed by its main item.
func NotificationFromCluster(runID string, c story.Cluster) *Notification {
	main := c.MainItem()
	sources := c.Sources()
	body := main.Summary
	if len(c.Items) > 1 {
		body = fmt.Sprintf("Reported by %d sources. %s", len(sources), main.Summary)
	}
	return &Notification{
		RunID:     runID,
		ClusterID: c.ID,
		Title:     main.Title,
		Body:      body,
		URL:       main.URL,
		Score:     c.Score,
		Sources:   sources,
		Items:     c.Items,
	}
}

func (n *Notification) topItems() []source.Item {
	if len(n.Items) <= maxLinks {
		return n.Items
	}
	return n.Items[:maxLinks]
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return m != nil && len(m.notifiers) > 0
}

// Names lists the configured notifiers.
func (m *Manager) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, len(m.notifiers))
	for i, n := range m.notifiers {
		names[i] = n.Name()
	}
	return names
}

// Broadcast sends a notification to all registered notifiers. Every notifier
// is tried; failures are joined.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func newClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// postJSON marshals payload, posts it to url and fails on a non-2xx status.
// sign, when set, may add headers computed from the encoded body.
func postJSON(ctx context.Context, client *http.Client, name, url string, payload any, sign func(*http.Request, []byte)) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "storyrank/1.0")
	if sign != nil {
		sign(req, body)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s status %d", name, resp.StatusCode)
	}
	return nil
}
