package priority

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecencyBonusBreakpoints(t *testing.T) {
	tests := []struct {
		hours float64
		want  float64
	}{
		{0, 15},
		{1, 15},
		{1.01, 10},
		{6, 10},
		{24, 5},
		{168, 2},
		{169, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RecencyBonus(tt.hours), "hours=%v", tt.hours)
	}
}

func TestRefreshedScore(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 25.0, RefreshedScore(Medium, now.Add(-30*time.Minute), now))
	assert.Equal(t, 30.0, RefreshedScore(High, now.Add(-6*time.Hour), now))
	assert.Equal(t, 25.0, RefreshedScore(High, now.Add(-7*time.Hour), now))
	assert.Equal(t, 1.0, RefreshedScore(Minimal, now.Add(-30*24*time.Hour), now))
	assert.Equal(t, 0.0, RecencyBonusAt(time.Time{}, now))
}
