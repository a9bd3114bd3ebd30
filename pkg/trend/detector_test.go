package trend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/technews/internal/store"
	"github.com/elonfeng/technews/pkg/priority"
)

func newTestStore(t *testing.T) *store.SQLStore {
	t.Helper()
	s, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "trend.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func matches(keys ...string) priority.Matches {
	m := make(priority.Matches, len(keys))
	for i, k := range keys {
		m[i] = priority.Match{Keyword: k, Label: priority.Medium}
	}
	return m
}

func insert(t *testing.T, s store.Store, srcID int64, url string, published time.Time, m priority.Matches, trending bool) *store.Article {
	t.Helper()
	a := &store.Article{
		Title: url, URL: url, SourceID: srcID, PublishedAt: published,
		Label: priority.Medium, Matches: m, Processed: true, Trending: trending,
	}
	ok, err := s.InsertArticle(context.Background(), a)
	require.NoError(t, err)
	require.True(t, ok)
	return a
}

func TestDetectMarksThreeOfFive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	src := &store.Source{Name: "Feed", URL: "https://example.com/feed", Active: true}
	_, err := s.EnsureSource(ctx, src)
	require.NoError(t, err)

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-time.Hour)
	var hot, cold []*store.Article
	for i, u := range []string{"a", "b", "c"} {
		hot = append(hot, insert(t, s, src.ID, "https://example.com/"+u, recent.Add(time.Duration(i)*time.Minute), matches("foldable"), false))
	}
	for _, u := range []string{"d", "e"} {
		cold = append(cold, insert(t, s, src.ID, "https://example.com/"+u, recent, matches("price"), false))
	}
	stale := insert(t, s, src.ID, "https://example.com/old", now.Add(-48*time.Hour), matches("foldable"), true)

	report, err := NewDetector(s, quietLogger()).Detect(ctx, now, 6)
	require.NoError(t, err)
	require.Len(t, report.Topics, 1)
	assert.Equal(t, Topic{Keyword: "foldable", Count: 3, Score: 12}, report.Topics[0])
	assert.Equal(t, 3, report.ArticlesMarked)

	for _, a := range hot {
		got, err := s.GetArticle(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, got.Trending, a.URL)
	}
	for _, a := range append(cold, stale) {
		got, err := s.GetArticle(ctx, a.ID)
		require.NoError(t, err)
		assert.False(t, got.Trending, a.URL)
	}

	snapshot, err := s.ListTrendingTopics(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	assert.Equal(t, "foldable", snapshot[0].Keyword)
	assert.Equal(t, 1, snapshot[0].Rank)
}

func TestRankOrdersByFrequencyThenFirstSeen(t *testing.T) {
	articles := []store.Article{
		{Matches: matches("b", "a")},
		{Matches: matches("a", "b", "c")},
		{Matches: matches("c", "a", "b")},
		{Matches: matches("c")},
		{Matches: matches("a", "d")},
	}
	d := NewDetector(nil, quietLogger())

	topics := d.rank(articles, 24)
	require.Len(t, topics, 3)
	assert.Equal(t, "a", topics[0].Keyword)
	assert.Equal(t, 4, topics[0].Count)
	assert.Equal(t, "b", topics[1].Keyword)
	assert.Equal(t, "c", topics[2].Keyword)
	assert.Equal(t, 3.0, topics[1].Score)

	d.WithThresholds(1, 2)
	assert.Len(t, d.rank(articles, 24), 2)
}

func TestDetectEmptyWindowClearsFlags(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	src := &store.Source{Name: "Feed", URL: "https://example.com/feed", Active: true}
	_, err := s.EnsureSource(ctx, src)
	require.NoError(t, err)

	now := time.Now().UTC()
	old := insert(t, s, src.ID, "https://example.com/old", now.Add(-72*time.Hour), matches("x"), true)

	report, err := NewDetector(s, quietLogger()).Detect(ctx, now, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultWindowHours, report.WindowHours)
	assert.Empty(t, report.Topics)

	got, err := s.GetArticle(ctx, old.ID)
	require.NoError(t, err)
	assert.False(t, got.Trending)
}
