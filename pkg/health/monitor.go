// Package health grades feed sources from their recent scraping logs.
package health

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/elonfeng/technews/internal/store"
)

// Status is the coarse health grade of a source.
type Status string

const (
	Healthy Status = "healthy"
	Warning Status = "warning"
	Error   Status = "error"
	Unknown Status = "unknown"
)

const (
	logWindow     = 7 * 24 * time.Hour
	logLimit      = 10
	maxErrors     = 3
	overdueFactor = 2
)

// Report describes one source's health.
type Report struct {
	SourceID     int64      `json:"source_id"`
	Source       string     `json:"source"`
	Status       Status     `json:"status"`
	Message      string     `json:"message"`
	LastSuccess  *time.Time `json:"last_success"`
	SuccessRate  float64    `json:"success_rate"`
	AvgFound     float64    `json:"avg_articles_per_scrape"`
	RecentErrors []string   `json:"recent_errors"`
}

// Healthy reports whether the source needs no attention.
func (r *Report) Healthy() bool { return r.Status == Healthy }

// Monitor computes health reports from the store.
type Monitor struct {
	store store.Store
}

// NewMonitor creates a health monitor.
func NewMonitor(s store.Store) *Monitor {
	return &Monitor{store: s}
}

// Check grades src from its last ten logs of the past week. A source that
// has not been fetched for more than twice its interval is reported as
// warning whatever its success rate.
func (m *Monitor) Check(ctx context.Context, src *store.Source, now time.Time) (*Report, error) {
	logs, err := m.store.RecentLogs(ctx, src.ID, now.Add(-logWindow), logLimit)
	if err != nil {
		return nil, fmt.Errorf("health of %s: %w", src.Name, err)
	}

	r := &Report{SourceID: src.ID, Source: src.Name, RecentErrors: []string{}}
	if len(logs) == 0 {
		r.Status = Unknown
		r.Message = "No recent scraping activity"
		return r, nil
	}

	var (
		successes int
		found     int
	)
	for i := range logs {
		l := &logs[i]
		if l.Success {
			successes++
			found += l.Found
			if r.LastSuccess == nil {
				t := l.FetchedAt
				r.LastSuccess = &t
			}
			continue
		}
		if l.Error != "" && len(r.RecentErrors) < maxErrors {
			r.RecentErrors = append(r.RecentErrors, l.Error)
		}
	}

	rate := float64(successes) / float64(len(logs)) * 100
	r.SuccessRate = round1(rate)
	if successes > 0 {
		r.AvgFound = round1(float64(found) / float64(successes))
	}

	switch {
	case rate >= 90:
		r.Status, r.Message = Healthy, "Source is working well"
	case rate >= 70:
		r.Status, r.Message = Warning, "Some recent failures detected"
	default:
		r.Status, r.Message = Error, "Frequent failures detected"
	}

	if src.LastFetchedAt != nil {
		since := now.Sub(*src.LastFetchedAt)
		if since > overdueFactor*src.Interval() {
			r.Status = Warning
			r.Message = "Overdue for scraping by " + since.Round(time.Second).String()
		}
	}
	return r, nil
}

// CheckAll reports on every active source in store order.
func (m *Monitor) CheckAll(ctx context.Context, now time.Time) ([]*Report, error) {
	sources, err := m.store.ListSources(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	reports := make([]*Report, 0, len(sources))
	for i := range sources {
		r, err := m.Check(ctx, &sources[i], now)
		if err != nil {
			return reports, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// Unhealthy filters reports down to those not graded healthy.
func Unhealthy(reports []*Report) []*Report {
	var out []*Report
	for _, r := range reports {
		if !r.Healthy() {
			out = append(out, r)
		}
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
