package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/technews/pkg/priority"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	table, err := cfg.KeywordTable()
	require.NoError(t, err)
	assert.Equal(t, len(cfg.Keywords), table.Len())

	rules, err := cfg.TagRules()
	require.NoError(t, err)
	assert.Equal(t, []string{"OnePlus", "Breaking", "Launch"}, rules.Match("OnePlus 13 Breaking Launch Event", ""))
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "technews.yaml")
	yml := `
database:
  driver: sqlite
  dsn: /tmp/x.db
schedule:
  refresh_interval: 10m
  trend_interval: nonsense
keywords:
  - keyword: Foldable
    label: high
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	t.Setenv("TECHNEWS_DB_DSN", "/tmp/override.db")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("OPENAI_API_KEY", "o-key")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/override.db", cfg.Database.DSN)
	assert.Equal(t, 10*time.Minute, cfg.Schedule.ParseRefreshInterval())
	assert.Equal(t, time.Hour, cfg.Schedule.ParseTrendInterval())
	assert.Equal(t, "gemini", cfg.Summary.Provider)
	assert.Equal(t, "g-key", cfg.Summary.APIKey)

	table, err := cfg.KeywordTable()
	require.NoError(t, err)
	assert.Equal(t, []priority.Keyword{{Keyword: "foldable", Label: priority.High}}, table.Rows())
}

func TestValidateRejects(t *testing.T) {
	cfg := Default()
	cfg.Keywords = append(cfg.Keywords, KeywordRule{Keyword: "x", Label: "urgent"})
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Database.Driver = "mysql"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Tags = append(cfg.Tags, TagRule{Name: " "})
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Summary.Provider = "bard"
	assert.Error(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
