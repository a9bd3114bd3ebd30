package priority

import (
	"fmt"
	"strings"
)

// Label is the coarse priority class assigned to an article.
type Label string

const (
	High    Label = "high"
	Medium  Label = "medium"
	Low     Label = "low"
	Minimal Label = "minimal"
)

// BreakingIndicator is the sentinel key recorded in Matches when breaking-news
// wording is found.
const BreakingIndicator = "breaking_indicator"

// AllLabels returns labels from highest to lowest.
func AllLabels() []Label {
	return []Label{High, Medium, Low, Minimal}
}

// ParseLabel validates a label string. Minimal is accepted only when
// allowMinimal is set; keyword tables never carry it.
func ParseLabel(s string, allowMinimal bool) (Label, error) {
	l := Label(strings.ToLower(strings.TrimSpace(s)))
	switch l {
	case High, Medium, Low:
		return l, nil
	case Minimal:
		if allowMinimal {
			return l, nil
		}
	}
	return "", fmt.Errorf("invalid priority label %q", s)
}

func (l Label) String() string { return string(l) }

// weight is the base contribution of a keyword carrying this label.
func (l Label) weight() float64 {
	switch l {
	case High:
		return 3
	case Medium:
		return 2
	case Low:
		return 1
	}
	return 0
}

// LegacyScore maps a label to the numeric score kept for ordering
// compatibility with older clients.
func LegacyScore(l Label) float64 {
	switch l {
	case High:
		return 20
	case Medium:
		return 10
	case Low:
		return 5
	}
	return 1
}

// UnmarshalText accepts any label including minimal.
func (l *Label) UnmarshalText(b []byte) error {
	parsed, err := ParseLabel(string(b), true)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

func (l Label) MarshalText() ([]byte, error) {
	return []byte(l), nil
}
