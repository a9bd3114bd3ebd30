package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/elonfeng/technews/internal/store"
	"github.com/elonfeng/technews/pkg/feed"
	"github.com/elonfeng/technews/pkg/priority"
)

// Outcome is what Upsert did with an entry.
type Outcome int

const (
	Created Outcome = iota + 1
	Updated
	Unchanged
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Unchanged:
		return "unchanged"
	}
	return "unknown"
}

// Engine turns raw feed entries into stored, classified, tagged articles.
type Engine struct {
	store      store.Store
	classifier *priority.Classifier
	tagger     *Tagger
	log        logrus.FieldLogger
	locks      *keyedMutex
	now        func() time.Time
}

// NewEngine creates an upsert engine. tagger may be nil.
func NewEngine(s store.Store, c *priority.Classifier, t *Tagger, logger logrus.FieldLogger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{
		store:      s,
		classifier: c,
		tagger:     t,
		log:        logger,
		locks:      newKeyedMutex(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Classify runs the classifier over an article's text.
func (e *Engine) Classify(title, description, content string) store.Classification {
	label, matches := e.classifier.Classify(title, description, content)
	return store.Classification{
		Label:    label,
		Matches:  matches,
		Score:    priority.LegacyScore(label),
		Breaking: matches.Has(priority.BreakingIndicator),
	}
}

// Upsert stores entry under src, keyed by its link. New articles and
// articles not yet processed are classified in the same transaction as the
// content write; tags are applied afterwards and their failures only logged.
func (e *Engine) Upsert(ctx context.Context, entry feed.RawEntry, src *store.Source) (Outcome, error) {
	unlock := e.locks.Lock(entry.Link)
	defer unlock()

	var (
		outcome    Outcome
		article    *store.Article
		classified bool
	)
	err := e.store.WithTx(ctx, func(tx store.Store) error {
		existing, err := tx.GetArticleByURL(ctx, entry.Link)
		switch {
		case store.IsNotFound(err):
			a := newArticle(entry, src, e.now())
			inserted, err := tx.InsertArticle(ctx, a)
			if err != nil {
				return err
			}
			if inserted {
				outcome, article = Created, a
				break
			}
			// Another writer stored the URL first; merge into its row.
			if existing, err = tx.GetArticleByURL(ctx, entry.Link); err != nil {
				return err
			}
			if outcome, err = e.merge(ctx, tx, existing, entry); err != nil {
				return err
			}
			article = existing
		case err != nil:
			return err
		default:
			if outcome, err = e.merge(ctx, tx, existing, entry); err != nil {
				return err
			}
			article = existing
		}

		if outcome != Created && article.Processed {
			return nil
		}
		c := e.Classify(article.Title, article.Description, article.Content)
		if err := tx.SaveClassification(ctx, article.ID, c); err != nil {
			return err
		}
		article.Label, article.Matches, article.Score = c.Label, c.Matches, c.Score
		article.Breaking, article.Processed = c.Breaking, true
		classified = true
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("upsert %s: %w", entry.Link, err)
	}

	if classified && e.tagger != nil {
		if _, err := e.tagger.Apply(ctx, e.store, article); err != nil {
			e.log.WithFields(logrus.Fields{"url": article.URL}).WithError(err).Warn("tag assignment failed")
		}
	}
	return outcome, nil
}

// merge rewrites the content fields only when one of them changed.
func (e *Engine) merge(ctx context.Context, tx store.Store, a *store.Article, entry feed.RawEntry) (Outcome, error) {
	next := store.ArticleContent{
		Title:       entry.Title,
		Description: entry.Description,
		Content:     entry.Content,
		Author:      entry.Author,
	}
	current := store.ArticleContent{
		Title:       a.Title,
		Description: a.Description,
		Content:     a.Content,
		Author:      a.Author,
	}
	if next == current {
		return Unchanged, nil
	}

	now := e.now()
	if err := tx.UpdateArticleContent(ctx, a.ID, next, now); err != nil {
		return 0, err
	}
	a.Title, a.Description, a.Content, a.Author = next.Title, next.Description, next.Content, next.Author
	a.UpdatedAt = now
	return Updated, nil
}

func newArticle(entry feed.RawEntry, src *store.Source, now time.Time) *store.Article {
	published := entry.PublishedAt
	if published.IsZero() {
		published = now
	}
	return &store.Article{
		Title:       entry.Title,
		URL:         entry.Link,
		Description: entry.Description,
		Content:     entry.Content,
		Author:      entry.Author,
		SourceID:    src.ID,
		PublishedAt: published,
		IngestedAt:  now,
		UpdatedAt:   now,
		Label:       priority.Minimal,
		Matches:     priority.Matches{},
	}
}

// Reclassify recomputes label, matches and legacy score for one article and
// reapplies tags.
func (e *Engine) Reclassify(ctx context.Context, articleID int64) (*store.Article, error) {
	a, err := e.store.GetArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(a.URL)
	defer unlock()

	c := e.Classify(a.Title, a.Description, a.Content)
	if err := e.store.SaveClassification(ctx, a.ID, c); err != nil {
		return nil, err
	}
	a.Label, a.Matches, a.Score, a.Breaking, a.Processed = c.Label, c.Matches, c.Score, c.Breaking, true

	if e.tagger != nil {
		if _, err := e.tagger.Apply(ctx, e.store, a); err != nil {
			e.log.WithFields(logrus.Fields{"url": a.URL}).WithError(err).Warn("tag assignment failed")
		}
	}
	return a, nil
}
