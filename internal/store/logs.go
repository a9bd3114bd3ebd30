package store

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
)

const logColumns = "id, source_id, fetched_at, articles_found, articles_new, articles_updated, success, error, duration_ms"

func (s *SQLStore) AddScrapingLog(ctx context.Context, l *ScrapingLog) error {
	if l.FetchedAt.IsZero() {
		l.FetchedAt = time.Now()
	}
	l.FetchedAt = dbTime(l.FetchedAt)

	err := s.scalar(ctx, &l.ID, `
		INSERT INTO scraping_logs (source_id, fetched_at, articles_found, articles_new, articles_updated, success, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`, l.SourceID, l.FetchedAt, l.Found, l.New, l.Updated, l.Success, l.Error, l.DurationMS)
	if err != nil {
		return errors.Wrapf(err, "add scraping log for source %d", l.SourceID)
	}
	return nil
}

// RecentLogs returns up to limit logs for a source fetched at or after
// since, newest first.
func (s *SQLStore) RecentLogs(ctx context.Context, sourceID int64, since time.Time, limit int) ([]ScrapingLog, error) {
	b := s.sb.Select(logColumns).From("scraping_logs").
		Where(sq.Eq{"source_id": sourceID}).
		Where(sq.GtOrEq{"fetched_at": dbTime(since)}).
		OrderBy("fetched_at DESC", "id DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	var out []ScrapingLog
	if err := s.selectBuilder(ctx, &out, b); err != nil {
		return nil, errors.Wrapf(err, "recent logs for source %d", sourceID)
	}
	return out, nil
}

func (s *SQLStore) DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.exec(ctx, "DELETE FROM scraping_logs WHERE fetched_at < ?", dbTime(cutoff))
	if err != nil {
		return 0, errors.Wrap(err, "delete old logs")
	}
	return n, nil
}

// ReplaceTrendingTopics swaps the stored snapshot for topics.
func (s *SQLStore) ReplaceTrendingTopics(ctx context.Context, topics []TrendingTopic) error {
	if s.tx == nil {
		return s.WithTx(ctx, func(tx Store) error { return tx.ReplaceTrendingTopics(ctx, topics) })
	}

	if _, err := s.exec(ctx, "DELETE FROM trending_topics"); err != nil {
		return errors.Wrap(err, "clear trending topics")
	}
	for i := range topics {
		t := &topics[i]
		t.DetectedAt = dbTime(t.DetectedAt)
		err := s.scalar(ctx, &t.ID, `
			INSERT INTO trending_topics (keyword, frequency, score, position, detected_at)
			VALUES (?, ?, ?, ?, ?)
			RETURNING id
		`, t.Keyword, t.Count, t.Score, t.Rank, t.DetectedAt)
		if err != nil {
			return errors.Wrapf(err, "insert trending topic %s", t.Keyword)
		}
	}
	return nil
}

func (s *SQLStore) ListTrendingTopics(ctx context.Context) ([]TrendingTopic, error) {
	var out []TrendingTopic
	err := s.selectBuilder(ctx, &out, s.sb.
		Select("id", "keyword", "frequency", "score", "position", "detected_at").
		From("trending_topics").
		OrderBy("position"))
	if err != nil {
		return nil, errors.Wrap(err, "list trending topics")
	}
	return out, nil
}
