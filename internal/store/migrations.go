package store

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sources (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    name             TEXT NOT NULL UNIQUE,
    url              TEXT NOT NULL,
    active           BOOLEAN NOT NULL DEFAULT 1,
    interval_minutes INTEGER NOT NULL DEFAULT 10,
    weight           REAL NOT NULL DEFAULT 1.0,
    last_fetched_at  DATETIME,
    created_at       DATETIME NOT NULL,
    updated_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS articles (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    title           TEXT NOT NULL,
    url             TEXT NOT NULL UNIQUE,
    description     TEXT NOT NULL DEFAULT '',
    content         TEXT NOT NULL DEFAULT '',
    summary         TEXT NOT NULL DEFAULT '',
    author          TEXT NOT NULL DEFAULT '',
    source_id       INTEGER NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
    published_at    DATETIME NOT NULL,
    ingested_at     DATETIME NOT NULL,
    updated_at      DATETIME NOT NULL,
    priority_score  REAL NOT NULL DEFAULT 0,
    priority_label  TEXT NOT NULL DEFAULT 'minimal',
    keyword_matches TEXT NOT NULL DEFAULT '{}',
    breaking        BOOLEAN NOT NULL DEFAULT 0,
    trending        BOOLEAN NOT NULL DEFAULT 0,
    featured        BOOLEAN NOT NULL DEFAULT 0,
    processed       BOOLEAN NOT NULL DEFAULT 0,
    archived        BOOLEAN NOT NULL DEFAULT 0,
    bookmarked      BOOLEAN NOT NULL DEFAULT 0,
    views           INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_articles_score_published ON articles(priority_score DESC, published_at DESC);
CREATE INDEX IF NOT EXISTS idx_articles_ingested ON articles(ingested_at DESC);
CREATE INDEX IF NOT EXISTS idx_articles_source_published ON articles(source_id, published_at DESC);
CREATE INDEX IF NOT EXISTS idx_articles_label_published ON articles(priority_label, published_at DESC);

CREATE TABLE IF NOT EXISTS tags (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    name        TEXT NOT NULL UNIQUE,
    color       TEXT NOT NULL DEFAULT '#007bff',
    description TEXT NOT NULL DEFAULT '',
    created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS article_tags (
    article_id INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
    tag_id     INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    PRIMARY KEY (article_id, tag_id)
);

CREATE TABLE IF NOT EXISTS scraping_logs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    source_id   INTEGER NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
    fetched_at  DATETIME NOT NULL,
    articles_found   INTEGER NOT NULL DEFAULT 0,
    articles_new     INTEGER NOT NULL DEFAULT 0,
    articles_updated INTEGER NOT NULL DEFAULT 0,
    success     BOOLEAN NOT NULL DEFAULT 0,
    error       TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_logs_source_fetched ON scraping_logs(source_id, fetched_at DESC);

CREATE TABLE IF NOT EXISTS trending_topics (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    keyword     TEXT NOT NULL,
    frequency   INTEGER NOT NULL,
    score       REAL NOT NULL,
    position    INTEGER NOT NULL,
    detected_at DATETIME NOT NULL
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sources (
    id               BIGSERIAL PRIMARY KEY,
    name             TEXT NOT NULL UNIQUE,
    url              TEXT NOT NULL,
    active           BOOLEAN NOT NULL DEFAULT TRUE,
    interval_minutes INTEGER NOT NULL DEFAULT 10,
    weight           DOUBLE PRECISION NOT NULL DEFAULT 1.0,
    last_fetched_at  TIMESTAMPTZ,
    created_at       TIMESTAMPTZ NOT NULL,
    updated_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS articles (
    id              BIGSERIAL PRIMARY KEY,
    title           TEXT NOT NULL,
    url             TEXT NOT NULL UNIQUE,
    description     TEXT NOT NULL DEFAULT '',
    content         TEXT NOT NULL DEFAULT '',
    summary         TEXT NOT NULL DEFAULT '',
    author          TEXT NOT NULL DEFAULT '',
    source_id       BIGINT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
    published_at    TIMESTAMPTZ NOT NULL,
    ingested_at     TIMESTAMPTZ NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL,
    priority_score  DOUBLE PRECISION NOT NULL DEFAULT 0,
    priority_label  TEXT NOT NULL DEFAULT 'minimal',
    keyword_matches TEXT NOT NULL DEFAULT '{}',
    breaking        BOOLEAN NOT NULL DEFAULT FALSE,
    trending        BOOLEAN NOT NULL DEFAULT FALSE,
    featured        BOOLEAN NOT NULL DEFAULT FALSE,
    processed       BOOLEAN NOT NULL DEFAULT FALSE,
    archived        BOOLEAN NOT NULL DEFAULT FALSE,
    bookmarked      BOOLEAN NOT NULL DEFAULT FALSE,
    views           INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_articles_score_published ON articles(priority_score DESC, published_at DESC);
CREATE INDEX IF NOT EXISTS idx_articles_ingested ON articles(ingested_at DESC);
CREATE INDEX IF NOT EXISTS idx_articles_source_published ON articles(source_id, published_at DESC);
CREATE INDEX IF NOT EXISTS idx_articles_label_published ON articles(priority_label, published_at DESC);

CREATE TABLE IF NOT EXISTS tags (
    id          BIGSERIAL PRIMARY KEY,
    name        TEXT NOT NULL UNIQUE,
    color       TEXT NOT NULL DEFAULT '#007bff',
    description TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS article_tags (
    article_id BIGINT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
    tag_id     BIGINT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    PRIMARY KEY (article_id, tag_id)
);

CREATE TABLE IF NOT EXISTS scraping_logs (
    id          BIGSERIAL PRIMARY KEY,
    source_id   BIGINT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
    fetched_at  TIMESTAMPTZ NOT NULL,
    articles_found   INTEGER NOT NULL DEFAULT 0,
    articles_new     INTEGER NOT NULL DEFAULT 0,
    articles_updated INTEGER NOT NULL DEFAULT 0,
    success     BOOLEAN NOT NULL DEFAULT FALSE,
    error       TEXT NOT NULL DEFAULT '',
    duration_ms BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_logs_source_fetched ON scraping_logs(source_id, fetched_at DESC);

CREATE TABLE IF NOT EXISTS trending_topics (
    id          BIGSERIAL PRIMARY KEY,
    keyword     TEXT NOT NULL,
    frequency   INTEGER NOT NULL,
    score       DOUBLE PRECISION NOT NULL,
    position    INTEGER NOT NULL,
    detected_at TIMESTAMPTZ NOT NULL
);
`

func schemaFor(driver string) string {
	if driver == DriverPostgres {
		return postgresSchema
	}
	return sqliteSchema
}
