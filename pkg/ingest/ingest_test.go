package ingest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/technews/internal/store"
	"github.com/elonfeng/technews/pkg/priority"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newTestStore(t *testing.T) *store.SQLStore {
	t.Helper()
	s, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestSource(t *testing.T, s store.Store, name, url string) *store.Source {
	t.Helper()
	src := &store.Source{Name: name, URL: url, Active: true}
	_, err := s.EnsureSource(context.Background(), src)
	require.NoError(t, err)
	return src
}

func testRules(t *testing.T) *TagRules {
	t.Helper()
	rules, err := NewTagRules([]TagRule{
		{Name: "Apple", Color: "#007AFF", Triggers: []string{"iphone", "ipad", "mac", "apple", "ios"}},
		{Name: "Google", Color: "#4285F4", Triggers: []string{"google", "pixel", "android"}},
		{Name: "OnePlus", Color: "#EB0028", Triggers: []string{"oneplus", "oxygen"}},
		{Name: "Breaking", Color: "#DC3545", Triggers: []string{"breaking", "urgent", "exclusive"}},
		{Name: "Launch", Triggers: []string{"launch", "announced", "release", "unveil"}},
		{Name: "Gaming", Color: "#17A2B8"},
	})
	require.NoError(t, err)
	return rules
}

func newTestEngine(t *testing.T, s store.Store) *Engine {
	t.Helper()
	table, err := priority.NewTable([]priority.Keyword{
		{Keyword: "iphone", Label: priority.High},
		{Keyword: "pixel", Label: priority.High},
		{Keyword: "oneplus", Label: priority.High},
		{Keyword: "launch", Label: priority.Medium},
		{Keyword: "update", Label: priority.Medium},
		{Keyword: "price", Label: priority.Low},
	})
	require.NoError(t, err)
	return NewEngine(s, priority.NewClassifier(table), NewTagger(testRules(t), quietLogger()), quietLogger())
}
