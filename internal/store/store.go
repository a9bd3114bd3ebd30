package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, sql.ErrNoRows)
}

// Store is the persistence interface.
type Store interface {
	EnsureSource(ctx context.Context, src *Source) (bool, error)
	GetSource(ctx context.Context, id int64) (*Source, error)
	GetSourceByName(ctx context.Context, name string) (*Source, error)
	ListSources(ctx context.Context, activeOnly bool) ([]Source, error)
	TouchSourceFetched(ctx context.Context, id int64, at time.Time) error
	SetSourceActive(ctx context.Context, id int64, active bool) error
	DeleteSource(ctx context.Context, id int64) error

	GetArticle(ctx context.Context, id int64) (*Article, error)
	GetArticleByURL(ctx context.Context, url string) (*Article, error)
	InsertArticle(ctx context.Context, a *Article) (bool, error)
	UpdateArticleContent(ctx context.Context, id int64, c ArticleContent, at time.Time) error
	SaveClassification(ctx context.Context, id int64, c Classification) error
	ListArticles(ctx context.Context, f ArticleFilter) ([]Article, error)
	ProcessedArticlesIngestedSince(ctx context.Context, since time.Time) ([]Article, error)
	ArticlesPublishedSince(ctx context.Context, since time.Time) ([]Article, error)
	ArticlesWithoutSummary(ctx context.Context, limit int) ([]Article, error)
	CountArticlesBySource(ctx context.Context) (map[int64]int, error)
	ClearTrending(ctx context.Context) (int64, error)
	MarkTrending(ctx context.Context, ids []int64) (int64, error)
	DeleteExpiredArticles(ctx context.Context, cutoff time.Time) (int64, error)
	SetSummary(ctx context.Context, id int64, summary string) error
	IncrementViews(ctx context.Context, id int64) error
	SetFeatured(ctx context.Context, id int64, featured bool) error
	SetBookmarked(ctx context.Context, id int64, bookmarked bool) error

	EnsureTag(ctx context.Context, t Tag) (*Tag, bool, error)
	AttachTag(ctx context.Context, articleID, tagID int64) error
	ArticleTags(ctx context.Context, articleID int64) ([]Tag, error)
	ListTags(ctx context.Context) ([]Tag, error)

	AddScrapingLog(ctx context.Context, l *ScrapingLog) error
	RecentLogs(ctx context.Context, sourceID int64, since time.Time, limit int) ([]ScrapingLog, error)
	DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	ReplaceTrendingTopics(ctx context.Context, topics []TrendingTopic) error
	ListTrendingTopics(ctx context.Context) ([]TrendingTopic, error)

	// WithTx runs fn against a store bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(Store) error) error

	Close() error
}

// SQLStore implements Store on sqlx for SQLite and PostgreSQL.
type SQLStore struct {
	db     *sqlx.DB
	tx     *sqlx.Tx
	driver string
	sb     sq.StatementBuilderType
}

// Open connects to the database and runs migrations. For SQLite the DSN is
// a file path; pragmas are appended when the DSN carries no query string.
func Open(driver, dsn string) (*SQLStore, error) {
	switch driver {
	case DriverSQLite:
		if !strings.Contains(dsn, "?") {
			dsn += "?" + sqlitePragmas
		}
	case DriverPostgres:
	default:
		return nil, errors.Errorf("unsupported driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", driver)
	}
	if driver == DriverSQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schemaFor(driver)); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "run migrations")
	}

	return &SQLStore{
		db:     db,
		driver: driver,
		sb:     sq.StatementBuilder.PlaceholderFormat(placeholderFor(driver)),
	}, nil
}

func placeholderFor(driver string) sq.PlaceholderFormat {
	if driver == DriverPostgres {
		return sq.Dollar
	}
	return sq.Question
}

func (s *SQLStore) Close() error {
	if s.tx != nil {
		return errors.New("close called inside a transaction")
	}
	return s.db.Close()
}

func (s *SQLStore) ext() sqlx.ExtContext {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// rebind converts ? placeholders for the active driver.
func (s *SQLStore) rebind(query string) string {
	return s.db.Rebind(query)
}

func (s *SQLStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if s.tx != nil {
		return errors.New("nested transactions are not supported")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}

	txStore := *s
	txStore.tx = tx

	if err := fn(&txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rollback failed: %v", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

func (s *SQLStore) get(ctx context.Context, dest any, query string, args ...any) error {
	err := sqlx.GetContext(ctx, s.ext(), dest, s.rebind(query), args...)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	return err
}

// scalar scans a single column from the first returned row.
func (s *SQLStore) scalar(ctx context.Context, dest any, query string, args ...any) error {
	err := s.ext().QueryRowxContext(ctx, s.rebind(query), args...).Scan(dest)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	return err
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.ext().ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// execOne is exec that reports ErrNotFound when no row was touched.
func (s *SQLStore) execOne(ctx context.Context, query string, args ...any) error {
	n, err := s.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) selectBuilder(ctx context.Context, dest any, b sq.SelectBuilder) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "build query")
	}
	return sqlx.SelectContext(ctx, s.ext(), dest, query, args...)
}

func (s *SQLStore) execBuilder(ctx context.Context, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "build query")
	}
	res, err := s.ext().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// dbTime normalises timestamps so that SQLite's text comparison and
// Postgres' microsecond precision agree.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
