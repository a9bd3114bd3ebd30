package priority

import (
	"fmt"
	"strings"
)

// maxOccurrences caps how often a single keyword can count, so keyword
// stuffing cannot dominate the total.
const maxOccurrences = 3

const breakingBonus = 6

// breakingIndicators force a high label whenever they appear anywhere in the text.
var breakingIndicators = []string{"breaking", "urgent", "exclusive", "just in", "developing"}

// Keyword is one row of the keyword table.
type Keyword struct {
	Keyword string
	Label   Label
}

// Table is an ordered, read-only keyword table.
type Table struct {
	rows []Keyword
}

// NewTable validates rows and returns an immutable table. Keywords are
// lowercased; duplicates keep their first position and last label.
func NewTable(rows []Keyword) (*Table, error) {
	t := &Table{rows: make([]Keyword, 0, len(rows))}
	index := make(map[string]int, len(rows))
	for _, r := range rows {
		kw := strings.ToLower(strings.TrimSpace(r.Keyword))
		if kw == "" {
			return nil, fmt.Errorf("keyword table: empty keyword")
		}
		if r.Label != High && r.Label != Medium && r.Label != Low {
			return nil, fmt.Errorf("keyword table: %q has invalid label %q", r.Keyword, r.Label)
		}
		if i, ok := index[kw]; ok {
			t.rows[i].Label = r.Label
			continue
		}
		index[kw] = len(t.rows)
		t.rows = append(t.rows, Keyword{Keyword: kw, Label: r.Label})
	}
	return t, nil
}

// Len returns the number of keywords.
func (t *Table) Len() int { return len(t.rows) }

// Rows returns a copy of the table rows.
func (t *Table) Rows() []Keyword {
	out := make([]Keyword, len(t.rows))
	copy(out, t.rows)
	return out
}

// Classifier assigns priority labels from a keyword table. It holds no
// mutable state and is safe for concurrent use.
type Classifier struct {
	table *Table
}

// NewClassifier creates a classifier over table.
func NewClassifier(table *Table) *Classifier {
	if table == nil {
		table = &Table{}
	}
	return &Classifier{table: table}
}

// Classify returns the priority label and the keywords that matched.
func (c *Classifier) Classify(title, description, content string) (Label, Matches) {
	full := strings.ToLower(title + " " + description + " " + content)
	lowerTitle := strings.ToLower(title)
	lowerDesc := strings.ToLower(description)

	matches := Matches{}
	var (
		total     float64
		highCount int
		medCount  int
	)

	for _, row := range c.table.rows {
		count := strings.Count(full, row.Keyword)
		if count == 0 {
			continue
		}
		if count > maxOccurrences {
			count = maxOccurrences
		}
		matches.set(row.Keyword, row.Label)

		multiplier := 1.0
		if strings.Contains(lowerTitle, row.Keyword) {
			multiplier = 2
		} else if strings.Contains(lowerDesc, row.Keyword) {
			multiplier = 1.5
		}
		total += row.Label.weight() * multiplier * float64(count)

		switch row.Label {
		case High:
			highCount += count
		case Medium:
			medCount += count
		}
	}

	breaking := false
	for _, ind := range breakingIndicators {
		if strings.Contains(full, ind) {
			breaking = true
			break
		}
	}
	if breaking {
		matches.set(BreakingIndicator, High)
		highCount++
		total += breakingBonus
	}

	switch {
	case highCount >= 2 || breaking:
		return High, matches
	case highCount >= 1 || medCount >= 3:
		return Medium, matches
	case medCount >= 1 || total > 0:
		return Low, matches
	}
	return Minimal, matches
}

// IsBreaking reports whether text contains a breaking-news indicator.
func IsBreaking(text string) bool {
	lower := strings.ToLower(text)
	for _, ind := range breakingIndicators {
		if strings.Contains(lower, ind) {
			return true
		}
	}
	return false
}
