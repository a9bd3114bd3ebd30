package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/technews/internal/config"
	"github.com/elonfeng/technews/internal/jobs"
	"github.com/elonfeng/technews/internal/logging"
	"github.com/elonfeng/technews/internal/scheduler"
	"github.com/elonfeng/technews/internal/store"
	"github.com/elonfeng/technews/internal/taskqueue"
	"github.com/elonfeng/technews/pkg/alert"
	"github.com/elonfeng/technews/pkg/feed"
	"github.com/elonfeng/technews/pkg/health"
	"github.com/elonfeng/technews/pkg/ingest"
	"github.com/elonfeng/technews/pkg/priority"
	"github.com/elonfeng/technews/pkg/server"
	"github.com/elonfeng/technews/pkg/summary"
	"github.com/elonfeng/technews/pkg/trend"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

// app holds the wired components shared by every command.
type app struct {
	cfg        *config.Config
	log        *logrus.Logger
	store      *store.SQLStore
	fetcher    *feed.Fetcher
	monitor    *health.Monitor
	runner     *jobs.Runner
	queue      *taskqueue.Queue
	dispatcher *jobs.Dispatcher
	closers    []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	db, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &app{cfg: cfg, log: log, store: db, closers: []func() error{db.Close}}

	table, err := cfg.KeywordTable()
	if err != nil {
		a.Close()
		return nil, err
	}
	rules, err := cfg.TagRules()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.fetcher = feed.NewFetcher(feed.Options{
		Timeout:      cfg.Fetch.ParseTimeout(),
		UserAgent:    cfg.Fetch.UserAgent,
		MaxAttempts:  cfg.Fetch.MaxAttempts,
		BaseDelay:    cfg.Fetch.ParseBaseDelay(),
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		Logger:       log.WithField("component", "fetcher"),
	})
	a.monitor = health.NewMonitor(db)

	engine := ingest.NewEngine(db, priority.NewClassifier(table),
		ingest.NewTagger(rules, log), log.WithField("component", "ingest"))

	a.runner = jobs.NewRunner(jobs.Deps{
		Store:   db,
		Engine:  engine,
		Fetcher: a.fetcher,
		Detector: trend.NewDetector(db, log.WithField("component", "trend")).
			WithThresholds(cfg.Trend.MinFrequency, cfg.Trend.MaxTopics),
		Monitor:   a.monitor,
		Summaries: summary.NewGenerator(a.summaryModel(ctx), cfg.Summary.ParseTimeout(), log.WithField("component", "summary")),
		Alerts:    buildAlertManager(cfg),
		Locker:    a.locker(),
		Logger:    log,
		Settings: jobs.Settings{
			PollWorkers:      cfg.Schedule.PollWorkers,
			TrendWindowHours: cfg.Trend.WindowHours,
			ArticleRetention: time.Duration(cfg.Retention.ArticleDays) * 24 * time.Hour,
			LogRetention:     time.Duration(cfg.Retention.LogDays) * 24 * time.Hour,
			SummaryBatch:     cfg.Summary.Batch,
		},
	})

	a.queue = taskqueue.New(cfg.Schedule.PollWorkers, log.WithField("component", "taskqueue"))
	a.runner.Register(a.queue)
	a.queue.OnResult(jobs.LogResults(log))
	a.closers = append(a.closers, a.queue.Close)
	a.dispatcher = jobs.NewDispatcher(a.queue)
	return a, nil
}

// summaryModel picks the external model tier. Without a key summaries fall
// back to the extractive tier.
func (a *app) summaryModel(ctx context.Context) summary.Model {
	sc := a.cfg.Summary
	if sc.Provider == "" || sc.APIKey == "" {
		return nil
	}
	if sc.Provider == "gemini" {
		g, err := summary.NewGemini(ctx, sc.APIKey, sc.Model)
		if err != nil {
			a.log.WithError(err).Warn("gemini disabled")
			return nil
		}
		a.closers = append(a.closers, g.Close)
		return g
	}
	return summary.NewHTTPModel(sc.Provider, sc.Model, sc.APIKey, sc.BaseURL, sc.ParseTimeout())
}

func (a *app) locker() taskqueue.Locker {
	if a.cfg.Redis.Addr == "" {
		return taskqueue.NewLocalLocker()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	a.closers = append(a.closers, client.Close)
	a.log.WithField("addr", a.cfg.Redis.Addr).Info("using redis job locks")
	return taskqueue.NewRedisLocker(client, "")
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("close")
		}
	}
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers...)
}

// withApp loads config, lets tweak adjust it, and runs fn with a wired app.
func withApp(tweak func(*config.Config), fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if tweak != nil {
		tweak(cfg)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func runSetup() error {
	return withApp(nil, func(ctx context.Context, a *app) error {
		var created int
		for _, item := range a.cfg.Sources {
			src := &store.Source{
				Name:            item.Name,
				URL:             item.URL,
				Active:          true,
				IntervalMinutes: item.IntervalMinutes,
				Weight:          item.Weight,
			}
			ok, err := a.store.EnsureSource(ctx, src)
			if err != nil {
				return fmt.Errorf("seed source %s: %w", item.Name, err)
			}
			if ok {
				created++
				fmt.Fprintf(os.Stderr, "  created source %s\n", src.Name)
			}
		}

		var tags int
		for _, rule := range a.cfg.Tags {
			t := store.Tag{Name: strings.TrimSpace(rule.Name), Color: rule.Color, Description: rule.Description}
			if t.Description == "" {
				t.Description = "Auto-generated tag for " + t.Name
			}
			_, ok, err := a.store.EnsureTag(ctx, t)
			if err != nil {
				return fmt.Errorf("seed tag %s: %w", t.Name, err)
			}
			if ok {
				tags++
			}
		}

		fmt.Fprintf(os.Stderr, "\nsetup complete: %d new sources, %d new tags\n", created, tags)
		return nil
	})
}

func runPoll(sourceName string) error {
	return withApp(nil, func(ctx context.Context, a *app) error {
		if sourceName == "" {
			return printResult(a.dispatcher.RunNow(ctx, jobs.PollAll, jobs.Args{}))
		}
		src, err := a.store.GetSourceByName(ctx, sourceName)
		if err != nil {
			if store.IsNotFound(err) {
				return fmt.Errorf("no source named %q", sourceName)
			}
			return err
		}
		return printResult(a.dispatcher.RunNow(ctx, jobs.PollSource, jobs.Args{SourceID: src.ID}))
	})
}

func runRefresh() error {
	return withApp(nil, func(ctx context.Context, a *app) error {
		return printResult(a.dispatcher.RunNow(ctx, jobs.RefreshPriorities, jobs.Args{}))
	})
}

func runTrending(window int) error {
	tweak := func(cfg *config.Config) {
		if window > 0 {
			cfg.Trend.WindowHours = window
		}
	}
	return withApp(tweak, func(ctx context.Context, a *app) error {
		return printResult(a.dispatcher.RunNow(ctx, jobs.DetectTrending, jobs.Args{}))
	})
}

func runHealth() error {
	return withApp(nil, func(ctx context.Context, a *app) error {
		return printResult(a.dispatcher.RunNow(ctx, jobs.HealthCheck, jobs.Args{}))
	})
}

func runCleanup() error {
	return withApp(nil, func(ctx context.Context, a *app) error {
		return printResult(a.dispatcher.RunNow(ctx, jobs.Cleanup, jobs.Args{}))
	})
}

func runSummarize(articleID int64, limit int) error {
	return withApp(nil, func(ctx context.Context, a *app) error {
		return printResult(a.dispatcher.RunNow(ctx, jobs.Summarize, jobs.Args{ArticleID: articleID, Limit: limit}))
	})
}

func runValidate(urls []string) error {
	return withApp(nil, func(ctx context.Context, a *app) error {
		results := make([]*feed.Validation, len(urls))
		invalid := 0
		for i, u := range urls {
			results[i] = a.fetcher.Validate(ctx, u)
			if !results[i].Valid {
				invalid++
			}
		}

		if jsonOutput {
			if err := writeJSON(results); err != nil {
				return err
			}
		} else {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "VALID\tENTRIES\tURL\tDETAIL")
			for _, v := range results {
				detail := v.Title
				if v.Error != "" {
					detail = v.Error
				} else if v.Warning != "" {
					detail += " (" + v.Warning + ")"
				}
				fmt.Fprintf(w, "%t\t%d\t%s\t%s\n", v.Valid, v.Entries, v.URL, detail)
			}
			if err := w.Flush(); err != nil {
				return err
			}
		}
		if invalid > 0 {
			return fmt.Errorf("%d of %d feeds are not usable", invalid, len(urls))
		}
		return nil
	})
}

func runServe(port int) error {
	return withApp(nil, func(ctx context.Context, a *app) error {
		if port == 0 {
			port = a.cfg.Server.Port
		}
		srv := server.New(a.store, a.dispatcher, a.monitor, port, a.log)
		return srv.ListenAndServe(ctx)
	})
}

func runDaemon(port int) error {
	return withApp(nil, func(ctx context.Context, a *app) error {
		if port == 0 {
			port = a.cfg.Server.Port
		}
		if err := a.queue.Start(ctx); err != nil {
			return fmt.Errorf("start task queue: %w", err)
		}

		sched := scheduler.New(a.dispatcher, a.runner, scheduler.Intervals{
			DueCheck: a.cfg.Schedule.ParseDueCheckInterval(),
			Refresh:  a.cfg.Schedule.ParseRefreshInterval(),
			Trend:    a.cfg.Schedule.ParseTrendInterval(),
			Health:   a.cfg.Schedule.ParseHealthInterval(),
			Cleanup:  a.cfg.Schedule.ParseCleanupInterval(),
		}, a.log.WithField("component", "scheduler"))
		srv := server.New(a.store, a.dispatcher, a.monitor, port, a.log)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if err := sched.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("scheduler: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			return srv.ListenAndServe(gctx)
		})

		err := g.Wait()
		fmt.Fprintln(os.Stderr, "\nshutting down...")
		return err
	})
}

// printResult renders a job result and turns a failed run into an error.
func printResult(res *jobs.Result) error {
	if jsonOutput {
		if err := writeJSON(res); err != nil {
			return err
		}
	} else if err := printPayload(res); err != nil {
		return err
	}

	switch res.Status {
	case jobs.StatusSkipped:
		fmt.Fprintf(os.Stderr, "%s skipped: %s\n", res.Job, res.Error)
	case jobs.StatusError:
		return fmt.Errorf("%s failed: %s", res.Job, res.Error)
	}
	return nil
}

func printPayload(res *jobs.Result) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	switch p := res.Payload.(type) {
	case jobs.PollTotals:
		fmt.Fprintln(w, "SOURCE\tFOUND\tNEW\tUPDATED\tERROR")
		for _, r := range p.Runs {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n", r.Source, r.Found, r.New, r.Updated, r.Error)
		}
		fmt.Fprintf(w, "total: %d sources\t%d\t%d\t%d\t%d failed\n", p.Sources, p.Found, p.New, p.Updated, p.Failed)
	case ingest.RunStats:
		fmt.Fprintf(w, "%s: found %d, new %d, updated %d\n", p.Source, p.Found, p.New, p.Updated)
	case *trend.Report:
		if len(p.Topics) == 0 {
			fmt.Fprintf(w, "no trending keywords in the last %d hours\n", p.WindowHours)
			break
		}
		fmt.Fprintln(w, "SCORE\tCOUNT\tKEYWORD")
		for _, t := range p.Topics {
			fmt.Fprintf(w, "%.1f\t%d\t%s\n", t.Score, t.Count, t.Keyword)
		}
		fmt.Fprintf(w, "%d articles marked trending\n", p.ArticlesMarked)
	case jobs.HealthSummary:
		fmt.Fprintln(w, "STATUS\tRATE\tSOURCE\tMESSAGE")
		for _, r := range p.Reports {
			fmt.Fprintf(w, "%s\t%.1f%%\t%s\t%s\n", r.Status, r.SuccessRate, r.Source, r.Message)
		}
	case jobs.RefreshStats:
		fmt.Fprintf(w, "checked %d, updated %d, failed %d\n", p.Checked, p.Updated, p.Failed)
	case jobs.CleanupStats:
		fmt.Fprintf(w, "deleted %d articles, %d scraping logs\n", p.ArticlesDeleted, p.LogsDeleted)
	case jobs.SummaryStats:
		fmt.Fprintf(w, "generated %d, failed %d\n", p.Generated, p.Failed)
		for tier, n := range p.Tiers {
			fmt.Fprintf(w, "  %s\t%d\n", tier, n)
		}
	case nil:
	default:
		fmt.Fprintf(w, "%s: %v\n", res.Job, p)
	}
	return w.Flush()
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
