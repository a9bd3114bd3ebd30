// Package summary produces short article summaries. A configured language
// model is tried first, then local sentence ranking, then plain truncation.
package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Tier records which method produced a summary.
type Tier string

const (
	TierModel      Tier = "model"
	TierExtractive Tier = "extractive"
	TierFallback   Tier = "fallback"
)

const maxPromptContent = 3000

const prompt = `You are a tech news summarizer. Create a concise, informative summary of this tech article in 2-3 sentences. Focus on key facts, impact, and relevance to the tech industry. Make it engaging and easy to understand.

Article to summarize:
%s

Summary:`

// Model is an external text generator.
type Model interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// Generator produces summaries and never fails.
type Generator struct {
	model   Model
	timeout time.Duration
	log     logrus.FieldLogger
}

// NewGenerator creates a generator. model may be nil to skip the first tier.
func NewGenerator(model Model, timeout time.Duration, logger logrus.FieldLogger) *Generator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Generator{model: model, timeout: timeout, log: logger}
}

// Generate returns a summary and the tier that produced it.
func (g *Generator) Generate(ctx context.Context, title, content, description string) (string, Tier) {
	if g.model != nil {
		text, err := g.complete(ctx, title, content, description)
		switch {
		case err != nil:
			g.log.WithFields(logrus.Fields{"model": g.model.Name()}).WithError(err).Warn("model summary failed")
		case text != "":
			return text, TierModel
		default:
			g.log.WithFields(logrus.Fields{"model": g.model.Name()}).Warn("model returned an empty summary")
		}
	}

	if text := Extractive(content, description); text != "" {
		return text, TierExtractive
	}
	return Fallback(title, content, description), TierFallback
}

func (g *Generator) complete(ctx context.Context, title, content, description string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n\n", title)
	if description != "" {
		fmt.Fprintf(&b, "Description: %s\n\n", description)
	}
	if content != "" {
		fmt.Fprintf(&b, "Content: %s", truncate(content, maxPromptContent))
	}

	text, err := g.model.Complete(ctx, fmt.Sprintf(prompt, b.String()))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// truncate cuts s to n runes and marks the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
