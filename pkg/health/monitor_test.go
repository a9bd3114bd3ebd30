package health

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/technews/internal/store"
)

func newTestStore(t *testing.T) *store.SQLStore {
	t.Helper()
	s, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "health.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s store.Store, name string, lastFetched time.Time, results []bool) *store.Source {
	t.Helper()
	ctx := context.Background()
	src := &store.Source{Name: name, URL: "https://example.com/" + name, Active: true, IntervalMinutes: 10}
	_, err := s.EnsureSource(ctx, src)
	require.NoError(t, err)

	for i, ok := range results {
		l := &store.ScrapingLog{
			SourceID:  src.ID,
			FetchedAt: lastFetched.Add(-time.Duration(i) * time.Minute),
			Found:     4,
			Success:   ok,
		}
		if !ok {
			l.Found = 0
			l.Error = fmt.Sprintf("failure %d", i)
		}
		require.NoError(t, s.AddScrapingLog(ctx, l))
	}
	require.NoError(t, s.TouchSourceFetched(ctx, src.ID, lastFetched))
	src, err = s.GetSource(ctx, src.ID)
	require.NoError(t, err)
	return src
}

func TestCheckNineOfTenIsHealthy(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-5 * time.Minute)
	src := seed(t, s, "feed", last, []bool{true, true, true, true, false, true, true, true, true, true})

	r, err := NewMonitor(s).Check(context.Background(), src, now)
	require.NoError(t, err)
	assert.Equal(t, Healthy, r.Status)
	assert.Equal(t, 90.0, r.SuccessRate)
	assert.Equal(t, 4.0, r.AvgFound)
	assert.Equal(t, []string{"failure 4"}, r.RecentErrors)
	require.NotNil(t, r.LastSuccess)
	assert.True(t, r.LastSuccess.Equal(last))
}

func TestCheckOverdueForcesWarning(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-45 * time.Minute)

	healthy := seed(t, s, "quiet", last, []bool{true, true, true, true, true, true, true, true, true, false})
	r, err := NewMonitor(s).Check(context.Background(), healthy, now)
	require.NoError(t, err)
	assert.Equal(t, Warning, r.Status)
	assert.Equal(t, "Overdue for scraping by 45m0s", r.Message)

	failing := seed(t, s, "broken", last, []bool{false, false, false, true})
	r, err = NewMonitor(s).Check(context.Background(), failing, now)
	require.NoError(t, err)
	assert.Equal(t, Warning, r.Status)
	assert.Equal(t, 25.0, r.SuccessRate)
	assert.Len(t, r.RecentErrors, 3)
}

func TestCheckGrades(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-time.Minute)

	cases := []struct {
		name    string
		results []bool
		want    Status
		rate    float64
	}{
		{"seventy", []bool{true, true, true, true, true, true, true, false, false, false}, Warning, 70},
		{"third", []bool{true, false, false}, Error, 33.3},
		{"perfect", []bool{true}, Healthy, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := seed(t, s, tc.name, last, tc.results)
			r, err := NewMonitor(s).Check(context.Background(), src, now)
			require.NoError(t, err)
			assert.Equal(t, tc.want, r.Status)
			assert.Equal(t, tc.rate, r.SuccessRate)
		})
	}
}

func TestCheckAllUnknownWithoutLogs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	src := &store.Source{Name: "new", URL: "https://example.com/new", Active: true}
	_, err := s.EnsureSource(ctx, src)
	require.NoError(t, err)

	reports, err := NewMonitor(s).CheckAll(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, Unknown, reports[0].Status)
	assert.Equal(t, "No recent scraping activity", reports[0].Message)
	assert.Nil(t, reports[0].LastSuccess)
	assert.Len(t, Unhealthy(reports), 1)
}
