// Package jobs defines every periodic and on-demand job once. Jobs are
// dispatched through the task queue and always report a Result; failures are
// data, never panics or returned errors.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/elonfeng/technews/internal/store"
	"github.com/elonfeng/technews/internal/taskqueue"
	"github.com/elonfeng/technews/pkg/alert"
	"github.com/elonfeng/technews/pkg/health"
	"github.com/elonfeng/technews/pkg/ingest"
	"github.com/elonfeng/technews/pkg/summary"
	"github.com/elonfeng/technews/pkg/trend"
)

// Job names.
const (
	PollSource        = "poll-source"
	PollAll           = "poll-all"
	RefreshPriorities = "refresh-priorities"
	DetectTrending    = "detect-trending"
	HealthCheck       = "health-check"
	Cleanup           = "cleanup"
	Summarize         = "summarize"
	ReclassifyArticle = "reclassify-article"
)

// Status of a job run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// Result is what every job returns.
type Result struct {
	RunID     string        `json:"run_id"`
	Job       string        `json:"job"`
	Status    Status        `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	Payload   any           `json:"payload,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// OK reports whether the run succeeded.
func (r *Result) OK() bool { return r.Status == StatusSuccess }

// Args carries the parameters of on-demand jobs.
type Args struct {
	SourceID  int64 `json:"source_id,omitempty"`
	ArticleID int64 `json:"article_id,omitempty"`
	Limit     int   `json:"limit,omitempty"`
}

// Settings tunes job behavior.
type Settings struct {
	PollWorkers      int
	TrendWindowHours int
	ArticleRetention time.Duration
	LogRetention     time.Duration
	SummaryBatch     int
	LockTTL          time.Duration
}

func (s *Settings) withDefaults() {
	if s.PollWorkers <= 0 {
		s.PollWorkers = 4
	}
	if s.TrendWindowHours <= 0 {
		s.TrendWindowHours = trend.DefaultWindowHours
	}
	if s.ArticleRetention <= 0 {
		s.ArticleRetention = 30 * 24 * time.Hour
	}
	if s.LogRetention <= 0 {
		s.LogRetention = 7 * 24 * time.Hour
	}
	if s.SummaryBatch <= 0 {
		s.SummaryBatch = 20
	}
	if s.LockTTL <= 0 {
		s.LockTTL = time.Hour
	}
}

// Deps are the collaborators jobs run against. Summaries and Alerts are
// optional.
type Deps struct {
	Store     store.Store
	Engine    *ingest.Engine
	Fetcher   ingest.Fetcher
	Detector  *trend.Detector
	Monitor   *health.Monitor
	Summaries *summary.Generator
	Alerts    *alert.Manager
	Locker    taskqueue.Locker
	Logger    logrus.FieldLogger
	Settings  Settings
}

// Runner executes jobs.
type Runner struct {
	Deps
	now func() time.Time
}

// NewRunner creates a runner. A nil Locker means an in-process one.
func NewRunner(d Deps) *Runner {
	if d.Locker == nil {
		d.Locker = taskqueue.NewLocalLocker()
	}
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	d.Settings.withDefaults()
	return &Runner{Deps: d, now: func() time.Time { return time.Now().UTC() }}
}

type jobFunc func(ctx context.Context, args Args) (any, error)

func (r *Runner) table() map[string]jobFunc {
	return map[string]jobFunc{
		PollSource:        r.pollSource,
		PollAll:           r.pollAll,
		RefreshPriorities: r.refreshPriorities,
		DetectTrending:    r.detectTrending,
		HealthCheck:       r.healthCheck,
		Cleanup:           r.cleanup,
		Summarize:         r.summarize,
		ReclassifyArticle: r.reclassifyArticle,
	}
}

// Run executes the named job under its lock.
func (r *Runner) Run(ctx context.Context, name string, args Args) *Result {
	start := time.Now()
	res := &Result{RunID: uuid.NewString(), Job: name, Timestamp: r.now()}
	logger := r.Logger.WithFields(logrus.Fields{"job": name, "run_id": res.RunID})
	if args.SourceID > 0 {
		logger = logger.WithField("source_id", args.SourceID)
	}

	fn, ok := r.table()[name]
	if !ok {
		res.Status, res.Error = StatusError, fmt.Sprintf("unknown job %q", name)
		return res
	}

	unlock, ok, err := r.Locker.TryLock(ctx, lockKey(name, args), r.Settings.LockTTL)
	switch {
	case err != nil:
		res.Status, res.Error = StatusError, err.Error()
		logger.WithError(err).Error("acquire job lock")
		return res
	case !ok:
		res.Status = StatusSkipped
		res.Error = "previous run still in progress"
		logger.Info("job skipped, previous run still in progress")
		return res
	}
	defer unlock()

	payload, err := r.safeCall(ctx, fn, args)
	res.Duration = time.Since(start)
	res.Payload = payload
	if err != nil {
		res.Status, res.Error = StatusError, err.Error()
		logger.WithError(err).WithField("duration", res.Duration.String()).Error("job failed")
		return res
	}
	res.Status = StatusSuccess
	logger.WithField("duration", res.Duration.String()).Info("job finished")
	return res
}

func (r *Runner) safeCall(ctx context.Context, fn jobFunc, args Args) (payload any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx, args)
}

// Register binds every job to q.
func (r *Runner) Register(q *taskqueue.Queue) {
	for name := range r.table() {
		q.Register(name, func(ctx context.Context, payload json.RawMessage) any {
			var args Args
			if len(payload) > 0 {
				if err := json.Unmarshal(payload, &args); err != nil {
					return &Result{
						RunID:     uuid.NewString(),
						Job:       name,
						Status:    StatusError,
						Timestamp: r.now(),
						Error:     fmt.Sprintf("decode args: %v", err),
					}
				}
			}
			return r.Run(ctx, name, args)
		})
	}
}

// Dispatcher sends jobs through a task queue.
type Dispatcher struct {
	queue *taskqueue.Queue
}

func NewDispatcher(q *taskqueue.Queue) *Dispatcher {
	return &Dispatcher{queue: q}
}

// Enqueue schedules a job in the background, or runs it inline when the
// queue is not started.
func (d *Dispatcher) Enqueue(ctx context.Context, name string, args Args) error {
	return d.queue.Enqueue(ctx, name, args)
}

// RunNow runs a job synchronously through the queue.
func (d *Dispatcher) RunNow(ctx context.Context, name string, args Args) *Result {
	out, err := d.queue.RunNow(ctx, name, args)
	if err != nil {
		return &Result{RunID: uuid.NewString(), Job: name, Status: StatusError, Timestamp: time.Now().UTC(), Error: err.Error()}
	}
	res, ok := out.(*Result)
	if !ok {
		return &Result{RunID: uuid.NewString(), Job: name, Status: StatusError, Timestamp: time.Now().UTC(), Error: "unexpected task result"}
	}
	return res
}

// LogResults returns a queue hook that logs failed background runs.
func LogResults(logger logrus.FieldLogger) taskqueue.ResultHook {
	return func(name string, result any) {
		res, ok := result.(*Result)
		if !ok || res.Status != StatusError {
			return
		}
		logger.WithFields(logrus.Fields{"job": name, "run_id": res.RunID}).Warn("background job failed: " + res.Error)
	}
}

func lockKey(name string, args Args) string {
	switch name {
	case PollSource:
		return fmt.Sprintf("%s:%d", name, args.SourceID)
	case ReclassifyArticle:
		return fmt.Sprintf("%s:%d", name, args.ArticleID)
	}
	return name
}
