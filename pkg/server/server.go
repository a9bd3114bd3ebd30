package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/elonfeng/technews/internal/jobs"
	"github.com/elonfeng/technews/internal/store"
	"github.com/elonfeng/technews/pkg/health"
	"github.com/elonfeng/technews/pkg/priority"
)

// Runner executes a job synchronously.
type Runner interface {
	RunNow(ctx context.Context, name string, args jobs.Args) *jobs.Result
}

// Server exposes read endpoints and job triggers as JSON.
type Server struct {
	store   store.Store
	runner  Runner
	monitor *health.Monitor
	port    int
	log     logrus.FieldLogger
}

// New creates a new HTTP server.
func New(s store.Store, runner Runner, monitor *health.Monitor, port int, logger logrus.FieldLogger) *Server {
	if port == 0 {
		port = 8080
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{store: s, runner: runner, monitor: monitor, port: port, log: logger}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/v1/articles", s.handleArticles)
	mux.HandleFunc("GET /api/v1/articles/{id}", s.handleArticle)
	mux.HandleFunc("POST /api/v1/articles/{id}/reclassify", s.handleArticleJob(jobs.ReclassifyArticle))
	mux.HandleFunc("POST /api/v1/articles/{id}/summarize", s.handleArticleJob(jobs.Summarize))
	mux.HandleFunc("POST /api/v1/articles/{id}/featured", s.handleFlag(store.Store.SetFeatured))
	mux.HandleFunc("POST /api/v1/articles/{id}/bookmarked", s.handleFlag(store.Store.SetBookmarked))

	mux.HandleFunc("GET /api/v1/sources", s.handleSources)
	mux.HandleFunc("GET /api/v1/sources/{id}/health", s.handleSourceHealth)
	mux.HandleFunc("GET /api/v1/sources/{id}/logs", s.handleSourceLogs)
	mux.HandleFunc("POST /api/v1/sources/{id}/poll", s.handlePollSource)
	mux.HandleFunc("POST /api/v1/poll", s.handleJob(jobs.PollAll))

	mux.HandleFunc("GET /api/v1/tags", s.handleTags)
	mux.HandleFunc("GET /api/v1/trending", s.handleTrending)
	return mux
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.log.WithField("addr", srv.Addr).Info("technews server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.ArticleFilter{
		TrendingOnly:   q.Get("trending") == "true",
		FeaturedOnly:   q.Get("featured") == "true",
		BookmarkedOnly: q.Get("bookmarked") == "true",
		Search:         q.Get("q"),
		OrderBy:        q.Get("order"),
	}
	if v := q.Get("label"); v != "" {
		label, err := priority.ParseLabel(v, true)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		f.Label = label
	}
	if v := q.Get("source"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid source %q", v))
			return
		}
		f.SourceID = id
	}
	if since := q.Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			f.Since = t
		}
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))

	articles, err := s.store.ListArticles(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  articles,
		"count": len(articles),
	})
}

func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	a, err := s.store.GetArticle(ctx, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := s.store.IncrementViews(ctx, id); err != nil {
		s.log.WithField("article_id", id).WithError(err).Warn("increment views")
	} else {
		a.Views++
	}
	if a.Tags, err = s.store.ArticleTags(ctx, id); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := map[string]any{"data": a}
	if src, err := s.store.GetSource(ctx, a.SourceID); err == nil {
		resp["source"] = src.Name
		resp["final_score"] = a.FinalScore(src)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFlag(set func(store.Store, context.Context, int64, bool) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var body struct {
			Value bool `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
			return
		}
		if err := set(s.store, r.Context(), id, body.Value); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "value": body.Value})
	}
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sources, err := s.store.ListSources(ctx, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	counts, err := s.store.CountArticlesBySource(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	type sourceInfo struct {
		store.Source
		Articles int `json:"articles"`
	}
	infos := make([]sourceInfo, len(sources))
	for i, src := range sources {
		infos[i] = sourceInfo{Source: src, Articles: counts[src.ID]}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  infos,
		"count": len(infos),
	})
}

func (s *Server) handleSourceHealth(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	src, err := s.store.GetSource(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	report, err := s.monitor.Check(r.Context(), src, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": report})
}

func (s *Server) handleSourceLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	logs, err := s.store.RecentLogs(r.Context(), id, time.Time{}, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  logs,
		"count": len(logs),
	})
}

func (s *Server) handlePollSource(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.writeResult(w, s.runner.RunNow(r.Context(), jobs.PollSource, jobs.Args{SourceID: id}))
}

func (s *Server) handleArticleJob(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		s.writeResult(w, s.runner.RunNow(r.Context(), name, jobs.Args{ArticleID: id}))
	}
}

func (s *Server) handleJob(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeResult(w, s.runner.RunNow(r.Context(), name, jobs.Args{}))
	}
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.store.ListTags(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  tags,
		"count": len(tags),
	})
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	topics, err := s.store.ListTrendingTopics(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  topics,
		"count": len(topics),
	})
}

// writeResult reports job failures in the body; only a skipped run changes
// the status code.
func (s *Server) writeResult(w http.ResponseWriter, res *jobs.Result) {
	status := http.StatusOK
	if res.Status == jobs.StatusSkipped {
		status = http.StatusConflict
	}
	writeJSON(w, status, res)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid id %q", raw))
		return 0, false
	}
	return id, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	if store.IsNotFound(err) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeError(w, http.StatusInternalServerError, err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
