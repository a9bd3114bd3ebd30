package summary

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

const (
	minSentenceLen  = 20
	minParagraphLen = 50
	summaryLen      = 200
	topSentences    = 2
)

var sentenceEnd = regexp.MustCompile(`[.!?]+`)

// Extractive picks the two highest ranked sentences of description and
// content, in their original order. Sentences score by the corpus frequency
// of their words plus a bonus for appearing early.
func Extractive(content, description string) string {
	full := strings.TrimSpace(description + " " + content)
	if full == "" {
		return ""
	}

	var sentences []string
	for _, s := range sentenceEnd.Split(full, -1) {
		s = strings.TrimSpace(s)
		if len([]rune(s)) > minSentenceLen {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) <= topSentences {
		return truncate(full, summaryLen)
	}

	freq := make(map[string]int)
	words := make([][]string, len(sentences))
	for i, s := range sentences {
		words[i] = tokenize(s)
		for _, w := range words[i] {
			freq[w]++
		}
	}

	scores := make([]int, len(sentences))
	order := make([]int, len(sentences))
	for i := range sentences {
		for _, w := range words[i] {
			scores[i] += freq[w]
		}
		if bonus := 10 - i; bonus > 0 {
			scores[i] += bonus
		}
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	picked := order[:topSentences]
	sort.Ints(picked)
	parts := make([]string, len(picked))
	for i, idx := range picked {
		parts[i] = sentences[idx]
	}

	out := strings.Join(parts, ". ")
	if !strings.HasSuffix(out, ".") {
		out += "."
	}
	return out
}

// Fallback uses the description, else the first substantial paragraph of
// content, else a placeholder built from the title.
func Fallback(title, content, description string) string {
	if len([]rune(description)) > minParagraphLen {
		return truncate(description, summaryLen)
	}

	if content != "" {
		text := content
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(content)); err == nil {
			text = doc.Text()
		}
		for _, p := range strings.Split(text, "\n") {
			p = strings.TrimSpace(p)
			if len([]rune(p)) > minParagraphLen {
				return truncate(p, summaryLen)
			}
		}
	}

	if title != "" {
		return "Summary for: " + title
	}
	return "No summary available."
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}
