package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps documents in a single table; each Write is one
// statement, so readers never see partial content.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "./data/subtitles.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS subtitles (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`)
	return err
}

func (s *SQLiteStore) Write(ctx context.Context, id, content string) error {
	if err := validID(id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subtitles (id, content, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at
	`, id, content, time.Now())
	if err != nil {
		return fmt.Errorf("failed to store subtitle: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Read(ctx context.Context, id string) ([]string, error) {
	var content string
	err := s.db.QueryRowContext(ctx, `SELECT content FROM subtitles WHERE id = ?`, id).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read subtitle: %w", err)
	}
	return strings.Split(content, "\n"), nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
