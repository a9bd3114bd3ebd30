package store

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// EnsureTag returns the tag named t.Name, creating it when missing. The bool
// reports whether this call created it.
func (s *SQLStore) EnsureTag(ctx context.Context, t Tag) (*Tag, bool, error) {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return nil, false, errors.New("ensure tag: empty name")
	}
	if t.Color == "" {
		t.Color = DefaultTagColor
	}

	var id int64
	err := s.scalar(ctx, &id, `
		INSERT INTO tags (name, color, description, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (name) DO NOTHING
		RETURNING id
	`, t.Name, t.Color, t.Description, dbTime(time.Now()))
	created := err == nil
	if err != nil && !IsNotFound(err) {
		return nil, false, errors.Wrapf(err, "insert tag %s", t.Name)
	}

	var stored Tag
	if err := s.get(ctx, &stored, "SELECT id, name, color, description, created_at FROM tags WHERE name = ?", t.Name); err != nil {
		return nil, false, errors.Wrapf(err, "get tag %s", t.Name)
	}
	return &stored, created, nil
}

// AttachTag links a tag to an article. Linking twice is a no-op.
func (s *SQLStore) AttachTag(ctx context.Context, articleID, tagID int64) error {
	_, err := s.exec(ctx, `
		INSERT INTO article_tags (article_id, tag_id) VALUES (?, ?)
		ON CONFLICT (article_id, tag_id) DO NOTHING
	`, articleID, tagID)
	if err != nil {
		return errors.Wrapf(err, "attach tag %d to article %d", tagID, articleID)
	}
	return nil
}

func (s *SQLStore) ArticleTags(ctx context.Context, articleID int64) ([]Tag, error) {
	var tags []Tag
	err := s.selectBuilder(ctx, &tags, s.sb.
		Select("t.id", "t.name", "t.color", "t.description", "t.created_at").
		From("tags t").
		Join("article_tags atg ON atg.tag_id = t.id").
		Where("atg.article_id = ?", articleID).
		OrderBy("t.id"))
	if err != nil {
		return nil, errors.Wrapf(err, "article tags %d", articleID)
	}
	return tags, nil
}

func (s *SQLStore) ListTags(ctx context.Context) ([]Tag, error) {
	var tags []Tag
	err := s.selectBuilder(ctx, &tags, s.sb.
		Select("id", "name", "color", "description", "created_at").
		From("tags").
		OrderBy("name"))
	if err != nil {
		return nil, errors.Wrap(err, "list tags")
	}
	return tags, nil
}
