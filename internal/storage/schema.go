package storage

const schema = `
-- The 'blobs' table is a flat key-value store. Each value is written whole.
CREATE TABLE IF NOT EXISTS blobs (
    key TEXT PRIMARY KEY,
    value BLOB NOT NULL,
    updated_at DATETIME NOT NULL
);
`
