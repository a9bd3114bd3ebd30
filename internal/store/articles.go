package store

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/elonfeng/technews/pkg/priority"
)

const articleColumns = `id, title, url, description, content, summary, author, source_id,
	published_at, ingested_at, updated_at, priority_score, priority_label, keyword_matches,
	breaking, trending, featured, processed, archived, bookmarked, views`

// idChunk bounds IN lists so large trending runs stay under driver
// parameter limits.
const idChunk = 500

func (s *SQLStore) GetArticle(ctx context.Context, id int64) (*Article, error) {
	var a Article
	if err := s.get(ctx, &a, "SELECT "+articleColumns+" FROM articles WHERE id = ?", id); err != nil {
		return nil, errors.Wrapf(err, "get article %d", id)
	}
	return &a, nil
}

func (s *SQLStore) GetArticleByURL(ctx context.Context, url string) (*Article, error) {
	var a Article
	if err := s.get(ctx, &a, "SELECT "+articleColumns+" FROM articles WHERE url = ?", url); err != nil {
		return nil, errors.Wrapf(err, "get article %s", url)
	}
	return &a, nil
}

// InsertArticle stores a new article and sets a.ID. It returns false without
// an error when another writer already stored the URL.
func (s *SQLStore) InsertArticle(ctx context.Context, a *Article) (bool, error) {
	now := dbTime(time.Now())
	if a.IngestedAt.IsZero() {
		a.IngestedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.IngestedAt
	}
	if a.PublishedAt.IsZero() {
		a.PublishedAt = a.IngestedAt
	}
	if a.Label == "" {
		a.Label = priority.Minimal
	}
	a.IngestedAt = dbTime(a.IngestedAt)
	a.UpdatedAt = dbTime(a.UpdatedAt)
	a.PublishedAt = dbTime(a.PublishedAt)

	err := s.scalar(ctx, &a.ID, `
		INSERT INTO articles (title, url, description, content, summary, author, source_id,
			published_at, ingested_at, updated_at, priority_score, priority_label, keyword_matches,
			breaking, trending, featured, processed, archived, bookmarked, views)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (url) DO NOTHING
		RETURNING id
	`, a.Title, a.URL, a.Description, a.Content, a.Summary, a.Author, a.SourceID,
		a.PublishedAt, a.IngestedAt, a.UpdatedAt, a.Score, a.Label, a.Matches,
		a.Breaking, a.Trending, a.Featured, a.Processed, a.Archived, a.Bookmarked, a.Views)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "insert article %s", a.URL)
	}
	return true, nil
}

func (s *SQLStore) UpdateArticleContent(ctx context.Context, id int64, c ArticleContent, at time.Time) error {
	err := s.execOne(ctx, `
		UPDATE articles SET title = ?, description = ?, content = ?, author = ?, updated_at = ?
		WHERE id = ?
	`, c.Title, c.Description, c.Content, c.Author, dbTime(at), id)
	if err != nil {
		return errors.Wrapf(err, "update article %d", id)
	}
	return nil
}

// SaveClassification writes label, matches and score and marks the article
// processed.
func (s *SQLStore) SaveClassification(ctx context.Context, id int64, c Classification) error {
	err := s.execOne(ctx, `
		UPDATE articles SET priority_label = ?, keyword_matches = ?, priority_score = ?, breaking = ?, processed = ?
		WHERE id = ?
	`, c.Label, c.Matches, c.Score, c.Breaking, true, id)
	if err != nil {
		return errors.Wrapf(err, "save classification %d", id)
	}
	return nil
}

func (s *SQLStore) ListArticles(ctx context.Context, f ArticleFilter) ([]Article, error) {
	b := s.sb.Select(articleColumns).From("articles")

	if f.SourceID > 0 {
		b = b.Where(sq.Eq{"source_id": f.SourceID})
	}
	if f.Label != "" {
		b = b.Where(sq.Eq{"priority_label": f.Label})
	}
	if f.TrendingOnly {
		b = b.Where(sq.Eq{"trending": true})
	}
	if f.FeaturedOnly {
		b = b.Where(sq.Eq{"featured": true})
	}
	if f.BookmarkedOnly {
		b = b.Where(sq.Eq{"bookmarked": true})
	}
	if !f.Since.IsZero() {
		b = b.Where(sq.GtOrEq{"published_at": dbTime(f.Since)})
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		b = b.Where(sq.Or{
			sq.Like{"LOWER(title)": like},
			sq.Like{"LOWER(description)": like},
		})
	}

	switch f.OrderBy {
	case "published":
		b = b.OrderBy("published_at DESC", "id DESC")
	case "ingested":
		b = b.OrderBy("ingested_at DESC", "id DESC")
	default:
		b = b.OrderBy("priority_score DESC", "published_at DESC", "id DESC")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	b = b.Limit(uint64(limit))
	if f.Offset > 0 {
		b = b.Offset(uint64(f.Offset))
	}

	var out []Article
	if err := s.selectBuilder(ctx, &out, b); err != nil {
		return nil, errors.Wrap(err, "list articles")
	}
	return out, nil
}

func (s *SQLStore) ProcessedArticlesIngestedSince(ctx context.Context, since time.Time) ([]Article, error) {
	b := s.sb.Select(articleColumns).From("articles").
		Where(sq.GtOrEq{"ingested_at": dbTime(since)}).
		Where(sq.Eq{"processed": true}).
		OrderBy("id")
	var out []Article
	if err := s.selectBuilder(ctx, &out, b); err != nil {
		return nil, errors.Wrap(err, "articles ingested since")
	}
	return out, nil
}

// ArticlesPublishedSince returns the window in ingestion order, which keeps
// keyword first-seen order stable for trending ties.
func (s *SQLStore) ArticlesPublishedSince(ctx context.Context, since time.Time) ([]Article, error) {
	b := s.sb.Select(articleColumns).From("articles").
		Where(sq.GtOrEq{"published_at": dbTime(since)}).
		OrderBy("id")
	var out []Article
	if err := s.selectBuilder(ctx, &out, b); err != nil {
		return nil, errors.Wrap(err, "articles published since")
	}
	return out, nil
}

func (s *SQLStore) ArticlesWithoutSummary(ctx context.Context, limit int) ([]Article, error) {
	if limit <= 0 {
		limit = 20
	}
	b := s.sb.Select(articleColumns).From("articles").
		Where(sq.Eq{"summary": ""}).
		OrderBy("priority_score DESC", "published_at DESC").
		Limit(uint64(limit))
	var out []Article
	if err := s.selectBuilder(ctx, &out, b); err != nil {
		return nil, errors.Wrap(err, "articles without summary")
	}
	return out, nil
}

func (s *SQLStore) CountArticlesBySource(ctx context.Context) (map[int64]int, error) {
	rows, err := s.ext().QueryxContext(ctx, "SELECT source_id, COUNT(*) FROM articles GROUP BY source_id")
	if err != nil {
		return nil, errors.Wrap(err, "count articles by source")
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, errors.Wrap(err, "count articles by source")
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func (s *SQLStore) ClearTrending(ctx context.Context) (int64, error) {
	n, err := s.exec(ctx, "UPDATE articles SET trending = ? WHERE trending = ?", false, true)
	if err != nil {
		return 0, errors.Wrap(err, "clear trending")
	}
	return n, nil
}

func (s *SQLStore) MarkTrending(ctx context.Context, ids []int64) (int64, error) {
	var total int64
	for start := 0; start < len(ids); start += idChunk {
		end := start + idChunk
		if end > len(ids) {
			end = len(ids)
		}
		n, err := s.execBuilder(ctx, s.sb.Update("articles").
			Set("trending", true).
			Where(sq.Eq{"id": ids[start:end]}))
		if err != nil {
			return total, errors.Wrap(err, "mark trending")
		}
		total += n
	}
	return total, nil
}

// DeleteExpiredArticles removes articles published before cutoff unless they
// are featured or bookmarked.
func (s *SQLStore) DeleteExpiredArticles(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.tx == nil {
		var n int64
		err := s.WithTx(ctx, func(tx Store) error {
			var err error
			n, err = tx.DeleteExpiredArticles(ctx, cutoff)
			return err
		})
		return n, err
	}

	cutoff = dbTime(cutoff)
	const expired = "published_at < ? AND featured = ? AND bookmarked = ?"

	if _, err := s.exec(ctx,
		"DELETE FROM article_tags WHERE article_id IN (SELECT id FROM articles WHERE "+expired+")",
		cutoff, false, false); err != nil {
		return 0, errors.Wrap(err, "delete expired article tags")
	}
	n, err := s.exec(ctx, "DELETE FROM articles WHERE "+expired, cutoff, false, false)
	if err != nil {
		return 0, errors.Wrap(err, "delete expired articles")
	}
	return n, nil
}

func (s *SQLStore) SetSummary(ctx context.Context, id int64, summary string) error {
	if err := s.execOne(ctx, "UPDATE articles SET summary = ? WHERE id = ?", summary, id); err != nil {
		return errors.Wrapf(err, "set summary %d", id)
	}
	return nil
}

func (s *SQLStore) IncrementViews(ctx context.Context, id int64) error {
	if err := s.execOne(ctx, "UPDATE articles SET views = views + 1 WHERE id = ?", id); err != nil {
		return errors.Wrapf(err, "increment views %d", id)
	}
	return nil
}

func (s *SQLStore) SetFeatured(ctx context.Context, id int64, featured bool) error {
	if err := s.execOne(ctx, "UPDATE articles SET featured = ? WHERE id = ?", featured, id); err != nil {
		return errors.Wrapf(err, "set featured %d", id)
	}
	return nil
}

func (s *SQLStore) SetBookmarked(ctx context.Context, id int64, bookmarked bool) error {
	if err := s.execOne(ctx, "UPDATE articles SET bookmarked = ? WHERE id = ?", bookmarked, id); err != nil {
		return errors.Wrapf(err, "set bookmarked %d", id)
	}
	return nil
}
