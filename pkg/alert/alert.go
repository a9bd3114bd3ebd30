// Package alert delivers unhealthy-source notifications to chat and webhook
// destinations.
package alert

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SourceIssue is one source that needs attention.
type SourceIssue struct {
	Name        string  `json:"name"`
	URL         string  `json:"url,omitempty"`
	Status      string  `json:"status"`
	Message     string  `json:"message"`
	SuccessRate float64 `json:"success_rate"`
}

// Notification is the data sent to alert destinations.
type Notification struct {
	Title  string        `json:"title"`
	Body   string        `json:"body"`
	Issues []SourceIssue `json:"issues"`
	SentAt time.Time     `json:"sent_at"`
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
func NewManager(notifiers ...Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return m != nil && len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	if m == nil {
		return nil
	}
	if n.SentAt.IsZero() {
		n.SentAt = time.Now().UTC()
	}
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// UnhealthySources builds the notification for a health run.
func UnhealthySources(issues []SourceIssue) *Notification {
	return &Notification{
		Title:  fmt.Sprintf("%d feed source(s) need attention", len(issues)),
		Body:   "The latest health check flagged the sources below.",
		Issues: issues,
	}
}

// issueLines renders at most limit issues, one per line, with the given
// bullet and name formatter.
func issueLines(issues []SourceIssue, limit int, bullet string, name func(SourceIssue) string) []string {
	if len(issues) < limit {
		limit = len(issues)
	}
	lines := make([]string, 0, limit+1)
	for _, is := range issues[:limit] {
		lines = append(lines, fmt.Sprintf("%s %s [%s] %s (%.1f%%)", bullet, name(is), is.Status, is.Message, is.SuccessRate))
	}
	if extra := len(issues) - limit; extra > 0 {
		lines = append(lines, fmt.Sprintf("… and %d more", extra))
	}
	return lines
}
