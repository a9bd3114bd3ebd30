package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/elonfeng/technews/internal/store"
	"github.com/elonfeng/technews/pkg/ingest"
)

// PollTotals aggregates a poll-all run.
type PollTotals struct {
	Sources int               `json:"sources"`
	Found   int               `json:"found"`
	New     int               `json:"new"`
	Updated int               `json:"updated"`
	Failed  int               `json:"failed"`
	Runs    []ingest.RunStats `json:"runs"`
}

func (r *Runner) pollSource(ctx context.Context, args Args) (any, error) {
	if args.SourceID <= 0 {
		return nil, errors.New("poll-source needs a source id")
	}
	src, err := r.Store.GetSource(ctx, args.SourceID)
	if err != nil {
		return nil, fmt.Errorf("load source %d: %w", args.SourceID, err)
	}
	stats := r.Engine.RunSource(ctx, r.Fetcher, src)
	if !stats.Success {
		return stats, errors.New(stats.Error)
	}
	return stats, nil
}

func (r *Runner) pollAll(ctx context.Context, _ Args) (any, error) {
	sources, err := r.Store.ListSources(ctx, true)
	if err != nil {
		return nil, err
	}

	totals := PollTotals{Sources: len(sources)}
	totals.Runs = r.Engine.PollAll(ctx, r.Fetcher, sources, r.Settings.PollWorkers)
	for _, st := range totals.Runs {
		totals.Found += st.Found
		totals.New += st.New
		totals.Updated += st.Updated
		if !st.Success {
			totals.Failed++
		}
	}
	return totals, nil
}

// DueSources returns active sources whose interval has elapsed.
func (r *Runner) DueSources(ctx context.Context) ([]store.Source, error) {
	sources, err := r.Store.ListSources(ctx, true)
	if err != nil {
		return nil, err
	}
	now := r.now()
	var due []store.Source
	for _, s := range sources {
		if s.Due(now) {
			due = append(due, s)
		}
	}
	return due, nil
}
