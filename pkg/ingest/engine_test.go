package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/technews/internal/store"
	"github.com/elonfeng/technews/pkg/feed"
	"github.com/elonfeng/technews/pkg/priority"
)

func TestUpsertCreatesClassifiesAndTags(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	src := newTestSource(t, s, "Feed", "https://example.com/feed.xml")
	e := newTestEngine(t, s)

	published := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	out, err := e.Upsert(ctx, feed.RawEntry{
		Title:       "OnePlus 13 Breaking Launch Event",
		Link:        "https://example.com/oneplus-13",
		Description: "Phones today",
		PublishedAt: published,
	}, src)
	require.NoError(t, err)
	assert.Equal(t, Created, out)

	a, err := s.GetArticleByURL(ctx, "https://example.com/oneplus-13")
	require.NoError(t, err)
	assert.Equal(t, priority.High, a.Label)
	assert.True(t, a.Processed)
	assert.True(t, a.Breaking)
	assert.Equal(t, 20.0, a.Score)
	assert.True(t, a.PublishedAt.Equal(published))
	assert.Equal(t, []string{"oneplus", "launch", priority.BreakingIndicator}, a.Matches.Keys())

	tags, err := s.ArticleTags(ctx, a.ID)
	require.NoError(t, err)
	var names []string
	for _, tg := range tags {
		names = append(names, tg.Name)
	}
	assert.ElementsMatch(t, []string{"OnePlus", "Breaking", "Launch"}, names)
}

func TestUpsertIsIdempotentByURL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	src := newTestSource(t, s, "Feed", "https://example.com/feed.xml")
	e := newTestEngine(t, s)

	entry := feed.RawEntry{Title: "Pixel price cut", Link: "https://example.com/pixel"}
	out, err := e.Upsert(ctx, entry, src)
	require.NoError(t, err)
	assert.Equal(t, Created, out)

	before, err := s.GetArticleByURL(ctx, entry.Link)
	require.NoError(t, err)

	out, err = e.Upsert(ctx, entry, src)
	require.NoError(t, err)
	assert.Equal(t, Unchanged, out)

	entry.Description = "Now cheaper than ever"
	out, err = e.Upsert(ctx, entry, src)
	require.NoError(t, err)
	assert.Equal(t, Updated, out)

	after, err := s.GetArticleByURL(ctx, entry.Link)
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, "Now cheaper than ever", after.Description)
	assert.True(t, after.IngestedAt.Equal(before.IngestedAt))
	assert.Equal(t, before.Label, after.Label)

	list, err := s.ListArticles(ctx, store.ArticleFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUpsertClassifiesUnprocessedExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	src := newTestSource(t, s, "Feed", "https://example.com/feed.xml")
	e := newTestEngine(t, s)

	raw := &store.Article{Title: "iPhone update ships", URL: "https://example.com/iphone", SourceID: src.ID}
	ok, err := s.InsertArticle(ctx, raw)
	require.NoError(t, err)
	require.True(t, ok)

	out, err := e.Upsert(ctx, feed.RawEntry{Title: raw.Title, Link: raw.URL}, src)
	require.NoError(t, err)
	assert.Equal(t, Unchanged, out)

	a, err := s.GetArticle(ctx, raw.ID)
	require.NoError(t, err)
	assert.True(t, a.Processed)
	assert.Equal(t, priority.Medium, a.Label)
}

func TestUpsertConcurrentSameURLCreatesOnce(t *testing.T) {
	s := newTestStore(t)
	src := newTestSource(t, s, "Feed", "https://example.com/feed.xml")
	e := newTestEngine(t, s)

	const n = 8
	outcomes := make([]Outcome, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := e.Upsert(context.Background(), feed.RawEntry{Title: "Same story", Link: "https://example.com/same"}, src)
			assert.NoError(t, err)
			outcomes[i] = out
		}(i)
	}
	wg.Wait()

	created := 0
	for _, o := range outcomes {
		if o == Created {
			created++
		}
	}
	assert.Equal(t, 1, created)
}

func TestReclassifyUsesCurrentTable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	src := newTestSource(t, s, "Feed", "https://example.com/feed.xml")

	a := &store.Article{Title: "Pixel and iPhone compared", URL: "https://example.com/cmp", SourceID: src.ID, Processed: true}
	ok, err := s.InsertArticle(ctx, a)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := newTestEngine(t, s).Reclassify(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, priority.High, got.Label)

	stored, err := s.GetArticle(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, priority.High, stored.Label)
	assert.Equal(t, 20.0, stored.Score)

	_, err = newTestEngine(t, s).Reclassify(ctx, 9999)
	assert.True(t, store.IsNotFound(err))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "created", Created.String())
	assert.Equal(t, "updated", Updated.String())
	assert.Equal(t, "unchanged", Unchanged.String())
	assert.Equal(t, "unknown", Outcome(0).String())
}
