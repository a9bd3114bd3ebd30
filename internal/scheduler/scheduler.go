package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/elonfeng/technews/internal/jobs"
	"github.com/elonfeng/technews/internal/store"
)

// Dispatcher hands jobs to the task queue.
type Dispatcher interface {
	Enqueue(ctx context.Context, name string, args jobs.Args) error
}

// DueLister finds sources whose poll interval has elapsed.
type DueLister interface {
	DueSources(ctx context.Context) ([]store.Source, error)
}

// Intervals are the cadences of the periodic jobs.
type Intervals struct {
	DueCheck time.Duration
	Refresh  time.Duration
	Trend    time.Duration
	Health   time.Duration
	Cleanup  time.Duration
}

func (iv *Intervals) withDefaults() {
	if iv.DueCheck <= 0 {
		iv.DueCheck = time.Minute
	}
	if iv.Refresh <= 0 {
		iv.Refresh = 30 * time.Minute
	}
	if iv.Trend <= 0 {
		iv.Trend = time.Hour
	}
	if iv.Health <= 0 {
		iv.Health = 6 * time.Hour
	}
	if iv.Cleanup <= 0 {
		iv.Cleanup = 24 * time.Hour
	}
}

// Scheduler fires each periodic job on its own ticker and polls sources as
// they come due.
type Scheduler struct {
	dispatch  Dispatcher
	due       DueLister
	intervals Intervals
	log       logrus.FieldLogger
}

// New creates a new scheduler.
func New(d Dispatcher, due DueLister, iv Intervals, logger logrus.FieldLogger) *Scheduler {
	iv.withDefaults()
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Scheduler{dispatch: d, due: due, intervals: iv, log: logger}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	dueTicker := time.NewTicker(s.intervals.DueCheck)
	refreshTicker := time.NewTicker(s.intervals.Refresh)
	trendTicker := time.NewTicker(s.intervals.Trend)
	healthTicker := time.NewTicker(s.intervals.Health)
	cleanupTicker := time.NewTicker(s.intervals.Cleanup)
	defer dueTicker.Stop()
	defer refreshTicker.Stop()
	defer trendTicker.Stop()
	defer healthTicker.Stop()
	defer cleanupTicker.Stop()

	s.log.Info("scheduler: initial poll of due sources")
	s.pollDue(ctx)

	s.log.WithFields(logrus.Fields{
		"due_check": s.intervals.DueCheck.String(),
		"refresh":   s.intervals.Refresh.String(),
		"trend":     s.intervals.Trend.String(),
		"health":    s.intervals.Health.String(),
		"cleanup":   s.intervals.Cleanup.String(),
	}).Info("scheduler: running")

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler: stopped")
			return ctx.Err()
		case <-dueTicker.C:
			s.pollDue(ctx)
		case <-refreshTicker.C:
			s.enqueue(ctx, jobs.RefreshPriorities, jobs.Args{})
		case <-trendTicker.C:
			s.enqueue(ctx, jobs.DetectTrending, jobs.Args{})
		case <-healthTicker.C:
			s.enqueue(ctx, jobs.HealthCheck, jobs.Args{})
		case <-cleanupTicker.C:
			s.enqueue(ctx, jobs.Cleanup, jobs.Args{})
		}
	}
}

func (s *Scheduler) pollDue(ctx context.Context) {
	sources, err := s.due.DueSources(ctx)
	if err != nil {
		s.log.WithError(err).Error("scheduler: list due sources")
		return
	}
	for _, src := range sources {
		s.enqueue(ctx, jobs.PollSource, jobs.Args{SourceID: src.ID})
	}
}

func (s *Scheduler) enqueue(ctx context.Context, name string, args jobs.Args) {
	if err := s.dispatch.Enqueue(ctx, name, args); err != nil {
		s.log.WithFields(logrus.Fields{"job": name}).WithError(err).Error("scheduler: enqueue")
	}
}
