package mysql

// Key columns are ascii_bin so composite indexes stay under InnoDB's
// 3072-byte limit and comparisons are byte-wise like the sqlite backend.
// URLs and ids are normalized ASCII before they reach the store.
const schema = `
-- Users (tenants). Created on first external login.
CREATE TABLE IF NOT EXISTS users (
    user_id VARCHAR(255) CHARACTER SET ascii COLLATE ascii_bin NOT NULL,
    email VARCHAR(320) NOT NULL DEFAULT '',
    name VARCHAR(255) NOT NULL DEFAULT '',
    provider VARCHAR(64) NOT NULL DEFAULT '',
    api_key VARCHAR(64) CHARACTER SET ascii COLLATE ascii_bin NOT NULL,
    created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
    last_login DATETIME(6) NULL,
    PRIMARY KEY (user_id),
    UNIQUE KEY uq_users_api_key (api_key)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

-- Monitored sites, keyed per tenant.
CREATE TABLE IF NOT EXISTS sites (
    site_url VARCHAR(500) CHARACTER SET ascii COLLATE ascii_bin NOT NULL,
    user_id VARCHAR(255) CHARACTER SET ascii COLLATE ascii_bin NOT NULL,
    process_interval_hours INT NOT NULL DEFAULT 24,
    last_processed DATETIME(6) NULL,
    is_active TINYINT(1) NOT NULL DEFAULT 1,
    created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
    PRIMARY KEY (site_url, user_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

-- Payload files discovered through schema maps. is_active=0 is a tombstone
-- awaiting its removal job; id rows are kept until the job drains them.
CREATE TABLE IF NOT EXISTS files (
    file_url VARCHAR(500) CHARACTER SET ascii COLLATE ascii_bin NOT NULL,
    user_id VARCHAR(255) CHARACTER SET ascii COLLATE ascii_bin NOT NULL,
    site_url VARCHAR(500) CHARACTER SET ascii COLLATE ascii_bin NOT NULL,
    schema_map VARCHAR(500) CHARACTER SET ascii COLLATE ascii_bin NOT NULL DEFAULT '',
    last_read_time DATETIME(6) NULL,
    number_of_items INT NOT NULL DEFAULT 0,
    is_manual TINYINT(1) NOT NULL DEFAULT 0,
    is_active TINYINT(1) NOT NULL DEFAULT 1,
    PRIMARY KEY (file_url, user_id),
    KEY idx_files_site (site_url, user_id, is_active),
    KEY idx_files_map (schema_map, user_id, is_active)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

-- Object ids per (file, user). COUNT over (user_id, id) is the per-user
-- reference count gating index insert and delete.
CREATE TABLE IF NOT EXISTS ids (
    file_url VARCHAR(500) CHARACTER SET ascii COLLATE ascii_bin NOT NULL,
    user_id VARCHAR(255) CHARACTER SET ascii COLLATE ascii_bin NOT NULL,
    id VARCHAR(500) CHARACTER SET ascii COLLATE ascii_bin NOT NULL,
    PRIMARY KEY (file_url, user_id, id),
    KEY idx_ids_ref (user_id, id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

-- Per-file processing errors. Append-only, cleared on success.
CREATE TABLE IF NOT EXISTS processing_errors (
    id BIGINT NOT NULL AUTO_INCREMENT,
    file_url VARCHAR(500) CHARACTER SET ascii COLLATE ascii_bin NOT NULL,
    user_id VARCHAR(255) CHARACTER SET ascii COLLATE ascii_bin NOT NULL,
    error_type VARCHAR(64) NOT NULL,
    error_message TEXT NOT NULL,
    error_details TEXT NOT NULL,
    occurred_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
    PRIMARY KEY (id),
    KEY idx_errors_file (file_url, user_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`
