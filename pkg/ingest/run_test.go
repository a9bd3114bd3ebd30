package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/technews/internal/store"
	"github.com/elonfeng/technews/pkg/feed"
	"github.com/elonfeng/technews/pkg/priority"
)

const scenarioRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Scenario</title>
  <link>https://example.com</link>
  <description>scenario</description>
  <item>
    <title>OnePlus 13 Breaking Launch Event</title>
    <link>https://example.com/oneplus-13</link>
    <description>Phones today</description>
    <pubDate>Mon, 02 Feb 2026 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title></title>
    <link>https://example.com/untitled</link>
  </item>
</channel>
</rss>`

type failingFetcher struct{ err error }

func (f failingFetcher) Fetch(context.Context, string) (*feed.Result, error) { return nil, f.err }

func TestRunSourceEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(scenarioRSS))
	}))
	defer srv.Close()

	s := newTestStore(t)
	ctx := context.Background()
	src := newTestSource(t, s, "Scenario", srv.URL)
	e := newTestEngine(t, s)
	f := feed.NewFetcher(feed.Options{BaseDelay: time.Millisecond, Logger: quietLogger()})

	stats := e.RunSource(ctx, f, src)
	assert.True(t, stats.Success)
	assert.Equal(t, 2, stats.Found)
	assert.Equal(t, 1, stats.New)
	assert.Equal(t, 0, stats.Updated)
	assert.Equal(t, 0, stats.Errors)

	a, err := s.GetArticleByURL(ctx, "https://example.com/oneplus-13")
	require.NoError(t, err)
	assert.Equal(t, priority.High, a.Label)
	tags, err := s.ArticleTags(ctx, a.ID)
	require.NoError(t, err)
	var names []string
	for _, tg := range tags {
		names = append(names, tg.Name)
	}
	assert.ElementsMatch(t, []string{"OnePlus", "Breaking", "Launch"}, names)

	logs, err := s.RecentLogs(ctx, src.ID, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Success)
	assert.Equal(t, 2, logs[0].Found)
	assert.Equal(t, 1, logs[0].New)

	reloaded, err := s.GetSource(ctx, src.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastFetchedAt)

	again := e.RunSource(ctx, f, src)
	assert.Equal(t, 0, again.New)
	assert.Equal(t, 1, again.Updated)
}

func TestRunSourceFetchFailureStillLogs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	src := newTestSource(t, s, "Down", "https://down.example/feed.xml")
	e := newTestEngine(t, s)

	stats := e.RunSource(ctx, failingFetcher{err: errors.New("connection refused")}, src)
	assert.False(t, stats.Success)
	assert.Equal(t, "connection refused", stats.Error)

	logs, err := s.RecentLogs(ctx, src.ID, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Success)
	assert.Equal(t, "connection refused", logs[0].Error)

	reloaded, err := s.GetSource(ctx, src.ID)
	require.NoError(t, err)
	assert.NotNil(t, reloaded.LastFetchedAt)
}

func TestPollAllSkipsAfterCancel(t *testing.T) {
	s := newTestStore(t)
	e := newTestEngine(t, s)
	sources := []store.Source{
		*newTestSource(t, s, "A", "https://a.example/feed"),
		*newTestSource(t, s, "B", "https://b.example/feed"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats := e.PollAll(ctx, failingFetcher{err: errors.New("unused")}, sources, 2)
	require.Len(t, stats, 2)
	for _, st := range stats {
		assert.False(t, st.Success)
		assert.Equal(t, context.Canceled.Error(), st.Error)
	}

	logs, err := s.RecentLogs(context.Background(), sources[0].ID, time.Time{}, 10)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestPollAllRunsEverySource(t *testing.T) {
	s := newTestStore(t)
	e := newTestEngine(t, s)
	sources := []store.Source{
		*newTestSource(t, s, "A", "https://a.example/feed"),
		*newTestSource(t, s, "B", "https://b.example/feed"),
		*newTestSource(t, s, "C", "https://c.example/feed"),
	}

	stats := e.PollAll(context.Background(), failingFetcher{err: errors.New("boom")}, sources, 2)
	require.Len(t, stats, 3)
	for i, st := range stats {
		assert.Equal(t, sources[i].Name, st.Source)
	}
}
