package store

import (
	"time"

	"github.com/elonfeng/technews/pkg/priority"
)

// DefaultTagColor is used for tags created without an explicit color.
const DefaultTagColor = "#007bff"

// Source is a configured feed endpoint.
type Source struct {
	ID              int64      `db:"id" json:"id"`
	Name            string     `db:"name" json:"name"`
	URL             string     `db:"url" json:"url"`
	Active          bool       `db:"active" json:"active"`
	IntervalMinutes int        `db:"interval_minutes" json:"interval_minutes"`
	Weight          float64    `db:"weight" json:"weight"`
	LastFetchedAt   *time.Time `db:"last_fetched_at" json:"last_fetched_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Interval returns the poll interval, defaulting to 10 minutes.
func (s *Source) Interval() time.Duration {
	if s.IntervalMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// Due reports whether the source should be polled at now.
func (s *Source) Due(now time.Time) bool {
	if s.LastFetchedAt == nil {
		return true
	}
	return !now.Before(s.LastFetchedAt.Add(s.Interval()))
}

// Article is a deduplicated news item keyed by URL.
type Article struct {
	ID          int64            `db:"id" json:"id"`
	Title       string           `db:"title" json:"title"`
	URL         string           `db:"url" json:"url"`
	Description string           `db:"description" json:"description"`
	Content     string           `db:"content" json:"content"`
	Summary     string           `db:"summary" json:"summary"`
	Author      string           `db:"author" json:"author"`
	SourceID    int64            `db:"source_id" json:"source_id"`
	PublishedAt time.Time        `db:"published_at" json:"published_at"`
	IngestedAt  time.Time        `db:"ingested_at" json:"ingested_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
	Score       float64          `db:"priority_score" json:"priority_score"`
	Label       priority.Label   `db:"priority_label" json:"priority_label"`
	Matches     priority.Matches `db:"keyword_matches" json:"keyword_matches"`
	Breaking    bool             `db:"breaking" json:"breaking"`
	Trending    bool             `db:"trending" json:"trending"`
	Featured    bool             `db:"featured" json:"featured"`
	Processed   bool             `db:"processed" json:"processed"`
	Archived    bool             `db:"archived" json:"archived"`
	Bookmarked  bool             `db:"bookmarked" json:"bookmarked"`
	Views       int              `db:"views" json:"views"`

	Tags []Tag `db:"-" json:"tags,omitempty"`
}

// FinalScore is the display score weighted by the source's credibility.
func (a *Article) FinalScore(src *Source) float64 {
	if src == nil {
		return a.Score
	}
	return a.Score * src.Weight
}

// Tag is a named category shared between articles.
type Tag struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Color       string    `db:"color" json:"color"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ScrapingLog records one fetch attempt against a source.
type ScrapingLog struct {
	ID         int64     `db:"id" json:"id"`
	SourceID   int64     `db:"source_id" json:"source_id"`
	FetchedAt  time.Time `db:"fetched_at" json:"fetched_at"`
	Found      int       `db:"articles_found" json:"found"`
	New        int       `db:"articles_new" json:"new"`
	Updated    int       `db:"articles_updated" json:"updated"`
	Success    bool      `db:"success" json:"success"`
	Error      string    `db:"error" json:"error,omitempty"`
	DurationMS int64     `db:"duration_ms" json:"duration_ms"`
}

// Duration returns the wall-clock time of the run.
func (l *ScrapingLog) Duration() time.Duration {
	return time.Duration(l.DurationMS) * time.Millisecond
}

// TrendingTopic is one row of the latest trending snapshot.
type TrendingTopic struct {
	ID         int64     `db:"id" json:"id"`
	Keyword    string    `db:"keyword" json:"keyword"`
	Count      int       `db:"frequency" json:"count"`
	Score      float64   `db:"score" json:"score"`
	Rank       int       `db:"position" json:"rank"`
	DetectedAt time.Time `db:"detected_at" json:"detected_at"`
}

// ArticleContent is the set of fields the upsert engine diffs and rewrites.
type ArticleContent struct {
	Title       string
	Description string
	Content     string
	Author      string
}

// Classification is what the classifier writes back to an article.
type Classification struct {
	Label    priority.Label
	Matches  priority.Matches
	Score    float64
	Breaking bool
}

// ArticleFilter controls article listing.
type ArticleFilter struct {
	SourceID       int64
	Label          priority.Label
	TrendingOnly   bool
	FeaturedOnly   bool
	BookmarkedOnly bool
	Search         string
	Since          time.Time
	OrderBy        string // "priority" (default), "published", "ingested"
	Limit          int
	Offset         int
}
