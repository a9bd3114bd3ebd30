package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/elonfeng/technews/internal/store"
)

// TagRule maps a tag to the lowercase substrings that assign it.
type TagRule struct {
	Name        string
	Color       string
	Description string
	Triggers    []string
}

// TagRules is an ordered, read-only rule table.
type TagRules struct {
	rules []TagRule
}

// NewTagRules validates and copies rules. Trigger matching is
// case-insensitive.
func NewTagRules(rules []TagRule) (*TagRules, error) {
	out := &TagRules{rules: make([]TagRule, 0, len(rules))}
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return nil, errors.New("tag rule: empty name")
		}
		if seen[name] {
			return nil, fmt.Errorf("tag rule: duplicate tag %q", name)
		}
		seen[name] = true

		triggers := make([]string, 0, len(r.Triggers))
		for _, tr := range r.Triggers {
			tr = strings.ToLower(strings.TrimSpace(tr))
			if tr != "" {
				triggers = append(triggers, tr)
			}
		}
		out.rules = append(out.rules, TagRule{
			Name:        name,
			Color:       strings.TrimSpace(r.Color),
			Description: r.Description,
			Triggers:    triggers,
		})
	}
	return out, nil
}

// All returns every rule, including palette-only tags without triggers.
func (r *TagRules) All() []TagRule {
	out := make([]TagRule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Match returns tag names whose triggers occur in title or description, in
// table order.
func (r *TagRules) Match(title, description string) []string {
	text := strings.ToLower(title + " " + description)
	var names []string
	for _, rule := range r.rules {
		for _, tr := range rule.Triggers {
			if strings.Contains(text, tr) {
				names = append(names, rule.Name)
				break
			}
		}
	}
	return names
}

func (r *TagRules) tagFor(name string) store.Tag {
	for _, rule := range r.rules {
		if rule.Name != name {
			continue
		}
		t := store.Tag{Name: rule.Name, Color: rule.Color, Description: rule.Description}
		if t.Description == "" {
			t.Description = "Auto-generated tag for " + rule.Name
		}
		return t
	}
	return store.Tag{Name: name, Description: "Auto-generated tag for " + name}
}

// Tagger attaches tags to articles from a TagRules table.
type Tagger struct {
	rules *TagRules
	log   logrus.FieldLogger
}

// NewTagger creates a tagger.
func NewTagger(rules *TagRules, logger logrus.FieldLogger) *Tagger {
	if rules == nil {
		rules = &TagRules{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Tagger{rules: rules, log: logger}
}

// Apply ensures and links every matching tag. Links are idempotent. It keeps
// going after a failing tag and returns the joined errors.
func (t *Tagger) Apply(ctx context.Context, s store.Store, a *store.Article) ([]string, error) {
	var (
		attached []string
		errs     []error
	)
	for _, name := range t.rules.Match(a.Title, a.Description) {
		tag, created, err := s.EnsureTag(ctx, t.rules.tagFor(name))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if created {
			t.log.WithFields(logrus.Fields{"tag": tag.Name}).Info("created tag")
		}
		if err := s.AttachTag(ctx, a.ID, tag.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		attached = append(attached, tag.Name)
	}
	return attached, errors.Join(errs...)
}
