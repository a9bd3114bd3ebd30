package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/technews/internal/store"
)

func TestTagRulesMatchInTableOrder(t *testing.T) {
	rules := testRules(t)

	assert.Equal(t, []string{"OnePlus", "Breaking", "Launch"}, rules.Match("OnePlus 13 Breaking Launch Event", ""))
	assert.Equal(t, []string{"Apple", "Google"}, rules.Match("Pixel vs iPhone", "camera shootout"))
	assert.Empty(t, rules.Match("Weekend reading", "nothing here"))
	assert.Len(t, rules.All(), 6)
}

func TestNewTagRulesValidation(t *testing.T) {
	_, err := NewTagRules([]TagRule{{Name: " "}})
	assert.Error(t, err)

	_, err = NewTagRules([]TagRule{{Name: "A"}, {Name: "A"}})
	assert.Error(t, err)

	rules, err := NewTagRules([]TagRule{{Name: "A", Triggers: []string{" FOO ", ""}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"foo"}, rules.All()[0].Triggers)
}

func TestTaggerApplyCreatesAndLinksOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	src := newTestSource(t, s, "Feed", "https://example.com/feed.xml")

	a := &store.Article{Title: "Exclusive: Pixel launch date", URL: "https://example.com/a", SourceID: src.ID}
	ok, err := s.InsertArticle(ctx, a)
	require.NoError(t, err)
	require.True(t, ok)

	tagger := NewTagger(testRules(t), quietLogger())
	names, err := tagger.Apply(ctx, s, a)
	require.NoError(t, err)
	assert.Equal(t, []string{"Google", "Breaking", "Launch"}, names)

	_, err = tagger.Apply(ctx, s, a)
	require.NoError(t, err)

	tags, err := s.ArticleTags(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, tags, 3)

	all, err := s.ListTags(ctx)
	require.NoError(t, err)
	byName := map[string]store.Tag{}
	for _, tg := range all {
		byName[tg.Name] = tg
	}
	assert.Equal(t, "#4285F4", byName["Google"].Color)
	assert.Equal(t, store.DefaultTagColor, byName["Launch"].Color)
	assert.Equal(t, "Auto-generated tag for Launch", byName["Launch"].Description)
}
