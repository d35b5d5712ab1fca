// Package storage persists the upload registry and the query log in
// SQLite. The registry's AUTOINCREMENT id doubles as the monotonic upload
// counter used for blob keys, so ids are never reused within a database.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// PDFFile is a row of the upload registry.
type PDFFile struct {
	ID        int64  `json:"id"`
	Filename  string `json:"filename"`
	FileURL   string `json:"file_url"`
	Path      string `json:"path"`
	CreatedAt string `json:"created_at"`
}

// QueryLog is one answered query for the audit log.
type QueryLog struct {
	Query        string `json:"query"`
	EnvelopeType string `json:"envelope_type"`
	Status       string `json:"status"`
	DurationMs   int64  `json:"duration_ms"`
}

// Store wraps the SQLite database for all clauselens persistence.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema.
func New(dbPath string) (*Store, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}

	// Run pending migrations.
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// --- Upload registry ---

// RegisterPDF inserts an upload and returns its id. Ids come from an
// AUTOINCREMENT column, so every upload gets a fresh, strictly increasing
// number even across deletes.
func (s *Store) RegisterPDF(ctx context.Context, filename, fileURL, path string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO pdf_files (filename, file_url, path)
		VALUES (?, ?, ?)
	`, filename, fileURL, path)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdatePDFURL rewrites the stored URL of an upload, used after the blob
// store assigns the public address.
func (s *Store) UpdatePDFURL(ctx context.Context, id int64, fileURL string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE pdf_files SET file_url = ? WHERE id = ?", fileURL, id)
	return err
}

// GetPDF retrieves an upload by id.
func (s *Store) GetPDF(ctx context.Context, id int64) (*PDFFile, error) {
	f := &PDFFile{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, filename, file_url, path, created_at
		FROM pdf_files WHERE id = ?
	`, id).Scan(&f.ID, &f.Filename, &f.FileURL, &f.Path, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ListPDFs returns all uploads, newest first.
func (s *Store) ListPDFs(ctx context.Context) ([]PDFFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, file_url, path, created_at
		FROM pdf_files ORDER BY id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []PDFFile
	for rows.Next() {
		var f PDFFile
		if err := rows.Scan(&f.ID, &f.Filename, &f.FileURL, &f.Path, &f.CreatedAt); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// --- Query log ---

// LogQuery records an answered query. Logging failures are the caller's
// to ignore; they never block a response.
func (s *Store) LogQuery(ctx context.Context, q QueryLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_log (query, envelope_type, status, duration_ms)
		VALUES (?, ?, ?, ?)
	`, q.Query, q.EnvelopeType, q.Status, q.DurationMs)
	return err
}

// CountQueries returns the number of logged queries.
func (s *Store) CountQueries(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM query_log").Scan(&n)
	return n, err
}
