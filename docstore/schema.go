package docstore

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL REFERENCES users(id),
    title       TEXT NOT NULL DEFAULT '',
    source_kind TEXT NOT NULL,              -- 'pdf' | 'article'
    source_ref  TEXT NOT NULL DEFAULT '',   -- upload filename or article URL
    raw_text    TEXT NOT NULL DEFAULT '',
    quality     REAL NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(user_id, created_at);

CREATE TABLE IF NOT EXISTS pages (
    document_id  TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    page_number  INTEGER NOT NULL,
    start_offset INTEGER NOT NULL,
    end_offset   INTEGER NOT NULL,
    PRIMARY KEY (document_id, page_number)
);

CREATE TABLE IF NOT EXISTS translation_usage (
    id            TEXT PRIMARY KEY,
    user_id       TEXT NOT NULL REFERENCES users(id),
    document_id   TEXT NOT NULL,
    mode          TEXT NOT NULL,
    source_chars  INTEGER NOT NULL,
    context_chars INTEGER NOT NULL,
    output_chars  INTEGER NOT NULL,
    cached        INTEGER NOT NULL,
    created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_user_time ON translation_usage(user_id, created_at);

CREATE TABLE IF NOT EXISTS translation_cache (
    cache_key  TEXT PRIMARY KEY,
    payload    BLOB NOT NULL,
    expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_expiry ON translation_cache(expires_at);
`
