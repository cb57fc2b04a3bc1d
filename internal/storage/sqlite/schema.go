package sqlite

const schema = `
-- Users (tenants). Created on first external login.
CREATE TABLE IF NOT EXISTS users (
    user_id TEXT PRIMARY KEY,
    email TEXT NOT NULL DEFAULT '',
    name TEXT NOT NULL DEFAULT '',
    provider TEXT NOT NULL DEFAULT '',
    api_key TEXT NOT NULL UNIQUE,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_login DATETIME
);

-- Monitored sites, keyed per tenant.
CREATE TABLE IF NOT EXISTS sites (
    site_url TEXT NOT NULL,
    user_id TEXT NOT NULL,
    process_interval_hours INTEGER NOT NULL DEFAULT 24,
    last_processed DATETIME,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (site_url, user_id)
);

-- Payload files discovered through schema maps. is_active=0 is a tombstone
-- awaiting its removal job; id rows are kept until the job drains them.
CREATE TABLE IF NOT EXISTS files (
    file_url TEXT NOT NULL,
    user_id TEXT NOT NULL,
    site_url TEXT NOT NULL,
    schema_map TEXT NOT NULL DEFAULT '',
    last_read_time DATETIME,
    number_of_items INTEGER NOT NULL DEFAULT 0,
    is_manual INTEGER NOT NULL DEFAULT 0,
    is_active INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (file_url, user_id)
);

CREATE INDEX IF NOT EXISTS idx_files_site ON files(site_url, user_id, is_active);
CREATE INDEX IF NOT EXISTS idx_files_map ON files(schema_map, user_id, is_active);

-- Object ids per (file, user). COUNT over (user_id, id) is the per-user
-- reference count gating index insert and delete.
CREATE TABLE IF NOT EXISTS ids (
    file_url TEXT NOT NULL,
    user_id TEXT NOT NULL,
    id TEXT NOT NULL,
    PRIMARY KEY (file_url, user_id, id)
);

CREATE INDEX IF NOT EXISTS idx_ids_ref ON ids(user_id, id);

-- Per-file processing errors. Append-only, cleared on success.
CREATE TABLE IF NOT EXISTS processing_errors (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    file_url TEXT NOT NULL,
    user_id TEXT NOT NULL,
    error_type TEXT NOT NULL,
    error_message TEXT NOT NULL DEFAULT '',
    error_details TEXT NOT NULL DEFAULT '',
    occurred_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_errors_file ON processing_errors(file_url, user_id);
`
