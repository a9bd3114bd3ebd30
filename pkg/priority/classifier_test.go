package priority

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable(t *testing.T) *Table {
	t.Helper()
	table, err := NewTable([]Keyword{
		{Keyword: "iPhone", Label: High},
		{Keyword: "android", Label: Medium},
		{Keyword: "update", Label: Low},
		{Keyword: "launch", Label: Medium},
	})
	require.NoError(t, err)
	return table
}

func TestClassifyLabels(t *testing.T) {
	c := NewClassifier(testTable(t))

	tests := []struct {
		name        string
		title       string
		description string
		content     string
		want        Label
		wantKeys    []string
	}{
		{"two high hits", "New iPhone and another iPhone", "", "", High, []string{"iphone"}},
		{"one high hit", "iPhone update", "", "", Medium, []string{"iphone", "update"}},
		{"three medium hits", "Tips", "", "android android android launch", Medium, []string{"android", "launch"}},
		{"one medium hit", "Android tips", "", "", Low, []string{"android"}},
		{"low only", "Software update", "", "", Low, []string{"update"}},
		{"nothing", "Weather report", "sunny", "", Minimal, []string{}},
		{"occurrences capped but still high", "", "", "iphone iphone iphone iphone iphone", High, []string{"iphone"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, matches := c.Classify(tt.title, tt.description, tt.content)
			assert.Equal(t, tt.want, label)
			assert.Equal(t, tt.wantKeys, matches.Keys())
		})
	}
}

func TestClassifyBreakingOverride(t *testing.T) {
	c := NewClassifier(testTable(t))

	label, matches := c.Classify("Quiet day", "", "... this is BREAKING news ...")
	assert.Equal(t, High, label)
	got, ok := matches.Get(BreakingIndicator)
	require.True(t, ok)
	assert.Equal(t, High, got)

	// An empty table still yields high.
	label, _ = NewClassifier(nil).Classify("Just in: markets close", "", "")
	assert.Equal(t, High, label)
}

func TestClassifyDeterministic(t *testing.T) {
	c := NewClassifier(testTable(t))
	title, desc, content := "iPhone launch developing", "android update", "launch launch"

	l1, m1 := c.Classify(title, desc, content)
	l2, m2 := c.Classify(title, desc, content)
	assert.Equal(t, l1, l2)
	assert.True(t, m1.Equal(m2))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, m := c.Classify(title, desc, content)
			assert.Equal(t, l1, l)
			assert.True(t, m1.Equal(m))
		}()
	}
	wg.Wait()
}

func TestNewTableRejectsBadRows(t *testing.T) {
	_, err := NewTable([]Keyword{{Keyword: " ", Label: High}})
	assert.Error(t, err)

	_, err = NewTable([]Keyword{{Keyword: "x", Label: Minimal}})
	assert.Error(t, err)

	table, err := NewTable([]Keyword{{Keyword: "Pixel", Label: Low}, {Keyword: "pixel", Label: High}})
	require.NoError(t, err)
	assert.Equal(t, []Keyword{{Keyword: "pixel", Label: High}}, table.Rows())
}

func TestLegacyScore(t *testing.T) {
	assert.Equal(t, 20.0, LegacyScore(High))
	assert.Equal(t, 10.0, LegacyScore(Medium))
	assert.Equal(t, 5.0, LegacyScore(Low))
	assert.Equal(t, 1.0, LegacyScore(Minimal))
}

func TestMatchesJSONKeepsOrder(t *testing.T) {
	m := Matches{{Keyword: "zeta", Label: Low}, {Keyword: "alpha", Label: High}, {Keyword: BreakingIndicator, Label: High}}

	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":"low","alpha":"high","breaking_indicator":"high"}`, string(b))

	var back Matches
	require.NoError(t, back.Scan(string(b)))
	assert.True(t, m.Equal(back))

	var empty Matches
	require.NoError(t, empty.Scan(nil))
	assert.Empty(t, empty.Keys())
	assert.Error(t, empty.Scan(`{"x":"urgent"}`))
}
