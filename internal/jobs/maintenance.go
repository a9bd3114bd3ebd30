package jobs

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/elonfeng/technews/pkg/alert"
	"github.com/elonfeng/technews/pkg/health"
	"github.com/elonfeng/technews/pkg/priority"
)

const (
	refreshWindow    = 24 * time.Hour
	refreshTolerance = 0.5
)

// RefreshStats reports a priority refresh.
type RefreshStats struct {
	Checked int `json:"checked"`
	Updated int `json:"articles_updated"`
	Failed  int `json:"failed"`
}

// CleanupStats reports a retention run.
type CleanupStats struct {
	ArticlesDeleted int64 `json:"articles_deleted"`
	LogsDeleted     int64 `json:"logs_deleted"`
}

// HealthSummary reports a health check run.
type HealthSummary struct {
	Checked   int              `json:"checked"`
	Unhealthy int              `json:"unhealthy"`
	Reports   []*health.Report `json:"reports"`
	Alerted   bool             `json:"alerted"`
}

// SummaryStats reports a summarize run.
type SummaryStats struct {
	Generated int            `json:"generated"`
	Failed    int            `json:"failed"`
	Tiers     map[string]int `json:"tiers"`
}

// refreshPriorities reclassifies processed articles of the last day and
// rewrites those whose label changed or whose score drifted.
func (r *Runner) refreshPriorities(ctx context.Context, _ Args) (any, error) {
	now := r.now()
	articles, err := r.Store.ProcessedArticlesIngestedSince(ctx, now.Add(-refreshWindow))
	if err != nil {
		return nil, err
	}

	stats := RefreshStats{Checked: len(articles)}
	for i := range articles {
		a := &articles[i]
		c := r.Engine.Classify(a.Title, a.Description, a.Content)
		c.Score = priority.RefreshedScore(c.Label, a.PublishedAt, now)

		if c.Label == a.Label && math.Abs(a.Score-c.Score) <= refreshTolerance {
			continue
		}
		if err := r.Store.SaveClassification(ctx, a.ID, c); err != nil {
			stats.Failed++
			r.Logger.WithFields(logrus.Fields{"article_id": a.ID}).WithError(err).Error("refresh priority")
			continue
		}
		stats.Updated++
	}
	return stats, nil
}

func (r *Runner) detectTrending(ctx context.Context, _ Args) (any, error) {
	return r.Detector.Detect(ctx, r.now(), r.Settings.TrendWindowHours)
}

// healthCheck grades every active source and alerts on the ones that are not
// healthy. Alert delivery failures do not fail the job.
func (r *Runner) healthCheck(ctx context.Context, _ Args) (any, error) {
	reports, err := r.Monitor.CheckAll(ctx, r.now())
	if err != nil {
		return nil, err
	}
	bad := health.Unhealthy(reports)
	out := HealthSummary{Checked: len(reports), Unhealthy: len(bad), Reports: reports}

	if len(bad) > 0 && r.Alerts.HasNotifiers() {
		issues := make([]alert.SourceIssue, len(bad))
		for i, rep := range bad {
			issues[i] = alert.SourceIssue{
				Name:        rep.Source,
				Status:      string(rep.Status),
				Message:     rep.Message,
				SuccessRate: rep.SuccessRate,
			}
			if src, err := r.Store.GetSource(ctx, rep.SourceID); err == nil {
				issues[i].URL = src.URL
			}
		}
		if err := r.Alerts.Broadcast(ctx, alert.UnhealthySources(issues)); err != nil {
			r.Logger.WithError(err).Warn("health alert delivery failed")
		} else {
			out.Alerted = true
		}
	}
	return out, nil
}

func (r *Runner) cleanup(ctx context.Context, _ Args) (any, error) {
	now := r.now()
	var stats CleanupStats
	var err error
	if stats.ArticlesDeleted, err = r.Store.DeleteExpiredArticles(ctx, now.Add(-r.Settings.ArticleRetention)); err != nil {
		return stats, err
	}
	if stats.LogsDeleted, err = r.Store.DeleteLogsBefore(ctx, now.Add(-r.Settings.LogRetention)); err != nil {
		return stats, err
	}
	return stats, nil
}

// summarize fills summaries for articles lacking one, or for a single
// article when ArticleID is set.
func (r *Runner) summarize(ctx context.Context, args Args) (any, error) {
	if r.Summaries == nil {
		return nil, errors.New("summary generation is not configured")
	}
	stats := SummaryStats{Tiers: map[string]int{}}

	if args.ArticleID > 0 {
		a, err := r.Store.GetArticle(ctx, args.ArticleID)
		if err != nil {
			return nil, fmt.Errorf("load article %d: %w", args.ArticleID, err)
		}
		text, tier := r.Summaries.Generate(ctx, a.Title, a.Content, a.Description)
		if err := r.Store.SetSummary(ctx, a.ID, text); err != nil {
			return nil, err
		}
		stats.Generated, stats.Tiers[string(tier)] = 1, 1
		return stats, nil
	}

	limit := args.Limit
	if limit <= 0 {
		limit = r.Settings.SummaryBatch
	}
	articles, err := r.Store.ArticlesWithoutSummary(ctx, limit)
	if err != nil {
		return nil, err
	}
	for i := range articles {
		a := &articles[i]
		text, tier := r.Summaries.Generate(ctx, a.Title, a.Content, a.Description)
		if err := r.Store.SetSummary(ctx, a.ID, text); err != nil {
			stats.Failed++
			r.Logger.WithFields(logrus.Fields{"article_id": a.ID}).WithError(err).Error("save summary")
			continue
		}
		stats.Generated++
		stats.Tiers[string(tier)]++
	}
	return stats, nil
}

func (r *Runner) reclassifyArticle(ctx context.Context, args Args) (any, error) {
	if args.ArticleID <= 0 {
		return nil, errors.New("reclassify-article needs an article id")
	}
	return r.Engine.Reclassify(ctx, args.ArticleID)
}
