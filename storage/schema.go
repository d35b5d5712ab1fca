package storage

// schemaSQL is the DDL for all tables. AUTOINCREMENT on pdf_files keeps the
// upload counter monotonic: SQLite then never reuses a deleted row's id.
const schemaSQL = `
-- Upload registry; the id is the process-wide upload counter
CREATE TABLE IF NOT EXISTS pdf_files (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    filename TEXT NOT NULL,
    file_url TEXT NOT NULL,
    path TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Query audit log
CREATE TABLE IF NOT EXISTS query_log (
    id INTEGER PRIMARY KEY,
    query TEXT NOT NULL,
    envelope_type TEXT,
    status TEXT,
    duration_ms INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_pdf_files_created ON pdf_files(created_at);
CREATE INDEX IF NOT EXISTS idx_query_log_created ON query_log(created_at);
`
