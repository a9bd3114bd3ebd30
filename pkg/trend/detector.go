package trend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/elonfeng/technews/internal/store"
)

const (
	// DefaultWindowHours is the window used by the scheduled job.
	DefaultWindowHours = 6
	// MinFrequency is the number of articles a keyword must appear in.
	MinFrequency = 3
	// MaxTopics caps the ranked topic list.
	MaxTopics = 20
)

// Topic is a keyword that qualified as trending.
type Topic struct {
	Keyword string  `json:"keyword"`
	Count   int     `json:"count"`
	Score   float64 `json:"trending_score"`
}

// Report is the outcome of one detection run.
type Report struct {
	Topics         []Topic   `json:"topics"`
	ArticlesMarked int       `json:"trending_articles"`
	WindowHours    int       `json:"window_hours"`
	DetectedAt     time.Time `json:"detected_at"`
}

// Keywords returns the topic keywords in rank order.
func (r *Report) Keywords() []string {
	out := make([]string, len(r.Topics))
	for i, t := range r.Topics {
		out[i] = t.Keyword
	}
	return out
}

// Detector finds keywords shared by many recent articles and flags those
// articles as trending.
type Detector struct {
	store        store.Store
	log          logrus.FieldLogger
	minFrequency int
	maxTopics    int
}

// NewDetector creates a detector with the default thresholds.
func NewDetector(s store.Store, logger logrus.FieldLogger) *Detector {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Detector{store: s, log: logger, minFrequency: MinFrequency, maxTopics: MaxTopics}
}

// WithThresholds overrides the qualifying frequency and topic cap.
// Non-positive values keep the defaults.
func (d *Detector) WithThresholds(minFrequency, maxTopics int) *Detector {
	if minFrequency > 0 {
		d.minFrequency = minFrequency
	}
	if maxTopics > 0 {
		d.maxTopics = maxTopics
	}
	return d
}

// Detect ranks keywords across articles published in the last windowHours
// before now. Every trending flag is cleared and then set again on window
// articles carrying a qualifying keyword, together with the topic snapshot,
// in one transaction.
func (d *Detector) Detect(ctx context.Context, now time.Time, windowHours int) (*Report, error) {
	if windowHours <= 0 {
		windowHours = DefaultWindowHours
	}
	now = now.UTC()
	since := now.Add(-time.Duration(windowHours) * time.Hour)
	report := &Report{WindowHours: windowHours, DetectedAt: now}

	err := d.store.WithTx(ctx, func(tx store.Store) error {
		articles, err := tx.ArticlesPublishedSince(ctx, since)
		if err != nil {
			return err
		}

		report.Topics = d.rank(articles, windowHours)

		qualifying := make(map[string]bool, len(report.Topics))
		for _, t := range report.Topics {
			qualifying[t.Keyword] = true
		}
		var ids []int64
		for _, a := range articles {
			for _, k := range a.Matches.Keys() {
				if qualifying[k] {
					ids = append(ids, a.ID)
					break
				}
			}
		}

		if _, err := tx.ClearTrending(ctx); err != nil {
			return err
		}
		n, err := tx.MarkTrending(ctx, ids)
		if err != nil {
			return err
		}
		report.ArticlesMarked = int(n)

		snapshot := make([]store.TrendingTopic, len(report.Topics))
		for i, t := range report.Topics {
			snapshot[i] = store.TrendingTopic{
				Keyword:    t.Keyword,
				Count:      t.Count,
				Score:      t.Score,
				Rank:       i + 1,
				DetectedAt: now,
			}
		}
		return tx.ReplaceTrendingTopics(ctx, snapshot)
	})
	if err != nil {
		return nil, fmt.Errorf("detect trending: %w", err)
	}

	d.log.WithFields(logrus.Fields{
		"window_hours": windowHours,
		"topics":       len(report.Topics),
		"marked":       report.ArticlesMarked,
	}).Info("trending detection finished")
	return report, nil
}

// rank counts match keys per article and keeps qualifying keywords by
// frequency. Ties keep the order in which keywords were first seen.
func (d *Detector) rank(articles []store.Article, windowHours int) []Topic {
	counts := make(map[string]int)
	var order []string
	for _, a := range articles {
		for _, k := range a.Matches.Keys() {
			if counts[k] == 0 {
				order = append(order, k)
			}
			counts[k]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	var topics []Topic
	for _, k := range order {
		if len(topics) == d.maxTopics {
			break
		}
		c := counts[k]
		if c < d.minFrequency {
			break
		}
		topics = append(topics, Topic{
			Keyword: k,
			Count:   c,
			Score:   float64(c) * 24 / float64(windowHours),
		})
	}
	return topics
}
