package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

const sourceColumns = "id, name, url, active, interval_minutes, weight, last_fetched_at, created_at, updated_at"

// EnsureSource inserts src unless a source with the same name exists. src is
// filled with the stored row either way; the bool reports creation.
func (s *SQLStore) EnsureSource(ctx context.Context, src *Source) (bool, error) {
	if src.IntervalMinutes <= 0 {
		src.IntervalMinutes = 10
	}
	if src.Weight == 0 {
		src.Weight = 1.0
	}
	now := dbTime(time.Now())

	var id int64
	err := s.scalar(ctx, &id, `
		INSERT INTO sources (name, url, active, interval_minutes, weight, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO NOTHING
		RETURNING id
	`, src.Name, src.URL, src.Active, src.IntervalMinutes, src.Weight, now, now)
	created := err == nil
	if err != nil && !IsNotFound(err) {
		return false, errors.Wrapf(err, "insert source %s", src.Name)
	}

	stored, err := s.GetSourceByName(ctx, src.Name)
	if err != nil {
		return false, err
	}
	*src = *stored
	return created, nil
}

func (s *SQLStore) GetSource(ctx context.Context, id int64) (*Source, error) {
	var src Source
	if err := s.get(ctx, &src, "SELECT "+sourceColumns+" FROM sources WHERE id = ?", id); err != nil {
		return nil, errors.Wrapf(err, "get source %d", id)
	}
	return &src, nil
}

func (s *SQLStore) GetSourceByName(ctx context.Context, name string) (*Source, error) {
	var src Source
	if err := s.get(ctx, &src, "SELECT "+sourceColumns+" FROM sources WHERE name = ?", name); err != nil {
		return nil, errors.Wrapf(err, "get source %q", name)
	}
	return &src, nil
}

func (s *SQLStore) ListSources(ctx context.Context, activeOnly bool) ([]Source, error) {
	b := s.sb.Select(sourceColumns).From("sources").OrderBy("id")
	if activeOnly {
		b = b.Where("active = ?", true)
	}
	var out []Source
	if err := s.selectBuilder(ctx, &out, b); err != nil {
		return nil, errors.Wrap(err, "list sources")
	}
	return out, nil
}

// TouchSourceFetched records the end of a fetch run, successful or not.
func (s *SQLStore) TouchSourceFetched(ctx context.Context, id int64, at time.Time) error {
	at = dbTime(at)
	if err := s.execOne(ctx, "UPDATE sources SET last_fetched_at = ?, updated_at = ? WHERE id = ?", at, at, id); err != nil {
		return errors.Wrapf(err, "touch source %d", id)
	}
	return nil
}

func (s *SQLStore) SetSourceActive(ctx context.Context, id int64, active bool) error {
	err := s.execOne(ctx, "UPDATE sources SET active = ?, updated_at = ? WHERE id = ?", active, dbTime(time.Now()), id)
	if err != nil {
		return errors.Wrapf(err, "set source %d active", id)
	}
	return nil
}

// DeleteSource removes a source with its articles, their tag links and its
// logs.
func (s *SQLStore) DeleteSource(ctx context.Context, id int64) error {
	if s.tx == nil {
		return s.WithTx(ctx, func(tx Store) error { return tx.DeleteSource(ctx, id) })
	}

	steps := []string{
		"DELETE FROM article_tags WHERE article_id IN (SELECT id FROM articles WHERE source_id = ?)",
		"DELETE FROM articles WHERE source_id = ?",
		"DELETE FROM scraping_logs WHERE source_id = ?",
	}
	for _, q := range steps {
		if _, err := s.exec(ctx, q, id); err != nil {
			return errors.Wrapf(err, "delete source %d", id)
		}
	}
	if err := s.execOne(ctx, "DELETE FROM sources WHERE id = ?", id); err != nil {
		return errors.Wrapf(err, "delete source %d", id)
	}
	return nil
}
