package ingest

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/technews/internal/store"
	"github.com/elonfeng/technews/pkg/feed"
)

// Fetcher is the part of feed.Fetcher a run needs.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*feed.Result, error)
}

// RunStats summarizes one per-source run.
type RunStats struct {
	SourceID int64         `json:"source_id"`
	Source   string        `json:"source"`
	Found    int           `json:"found"`
	New      int           `json:"new"`
	Updated  int           `json:"updated"`
	Errors   int           `json:"errors"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
	Warning  string        `json:"warning,omitempty"`
	Duration time.Duration `json:"duration"`
}

// RunSource fetches one source and upserts its entries. It always writes one
// scraping log and touches the source's last fetch time. Once the fetch has
// returned, entries are processed to the end even if ctx is cancelled.
func (e *Engine) RunSource(ctx context.Context, f Fetcher, src *store.Source) RunStats {
	start := time.Now()
	stats := RunStats{SourceID: src.ID, Source: src.Name}
	logger := e.log.WithFields(logrus.Fields{"source": src.Name, "source_id": src.ID})

	res, fetchErr := f.Fetch(ctx, src.URL)
	wctx := context.WithoutCancel(ctx)

	if fetchErr != nil {
		stats.Error = fetchErr.Error()
		logger.WithError(fetchErr).Warn("fetch failed")
	} else {
		stats.Found = res.Found
		if res.Warning != nil {
			stats.Warning = res.Warning.Error()
		}
		for _, entry := range res.Entries {
			outcome, err := e.Upsert(wctx, entry, src)
			if err != nil {
				stats.Errors++
				logger.WithFields(logrus.Fields{"url": entry.Link}).WithError(err).Error("upsert failed")
				continue
			}
			if outcome == Created {
				stats.New++
			} else {
				stats.Updated++
			}
		}
		stats.Success = true
	}
	stats.Duration = time.Since(start)

	entry := &store.ScrapingLog{
		SourceID:   src.ID,
		FetchedAt:  e.now(),
		Found:      stats.Found,
		New:        stats.New,
		Updated:    stats.Updated,
		Success:    stats.Success,
		Error:      stats.Error,
		DurationMS: stats.Duration.Milliseconds(),
	}
	if err := e.store.AddScrapingLog(wctx, entry); err != nil {
		logger.WithError(err).Error("write scraping log")
	}
	if err := e.store.TouchSourceFetched(wctx, src.ID, entry.FetchedAt); err != nil {
		logger.WithError(err).Error("update last fetch time")
	} else {
		t := entry.FetchedAt
		src.LastFetchedAt = &t
	}

	logger.WithFields(logrus.Fields{
		"found":    stats.Found,
		"new":      stats.New,
		"updated":  stats.Updated,
		"errors":   stats.Errors,
		"duration": stats.Duration.String(),
	}).Info("source run finished")
	return stats
}

// PollAll runs every source with at most workers in flight. Sources not
// started before ctx is cancelled are reported as failed without a log.
func (e *Engine) PollAll(ctx context.Context, f Fetcher, sources []store.Source, workers int) []RunStats {
	if workers <= 0 {
		workers = 1
	}
	stats := make([]RunStats, len(sources))

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range sources {
		src := &sources[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				stats[i] = RunStats{SourceID: src.ID, Source: src.Name, Error: err.Error()}
				return nil
			}
			stats[i] = e.RunSource(ctx, f, src)
			return nil
		})
	}
	g.Wait()
	return stats
}
