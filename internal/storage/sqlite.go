package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jwebster45206/campaign-engine/pkg/storage"
	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS campaign_blobs (
	campaign_id TEXT NOT NULL,
	name        TEXT NOT NULL,
	data        BLOB NOT NULL,
	updated_at  INTEGER NOT NULL,
	PRIMARY KEY (campaign_id, name)
)`

// SQLiteStorage implements storage.BlobStore in a single SQLite file.
type SQLiteStorage struct {
	db     *sql.DB
	logger *slog.Logger
}

// Ensure SQLiteStorage implements BlobStore interface
var _ storage.BlobStore = (*SQLiteStorage)(nil)

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
	}

	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	logger.Info("SQLite storage opened", "path", cleanPath)
	return &SQLiteStorage{db: db, logger: logger}, nil
}

func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping failed: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStorage) Get(ctx context.Context, campaignID, name string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM campaign_blobs WHERE campaign_id = ? AND name = ?`,
		campaignID, name,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		s.logger.Error("Failed to load document", "campaign_id", campaignID, "name", name, "error", err)
		return nil, fmt.Errorf("sqlite select failed: %w", err)
	}
	return data, nil
}

func (s *SQLiteStorage) Put(ctx context.Context, campaignID, name string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO campaign_blobs (campaign_id, name, data, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (campaign_id, name) DO UPDATE SET
		   data = excluded.data,
		   updated_at = excluded.updated_at`,
		campaignID, name, data, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		s.logger.Error("Failed to save document", "campaign_id", campaignID, "name", name, "error", err)
		return fmt.Errorf("sqlite upsert failed: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Delete(ctx context.Context, campaignID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM campaign_blobs WHERE campaign_id = ?`, campaignID); err != nil {
		return fmt.Errorf("sqlite delete failed: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT campaign_id FROM campaign_blobs ORDER BY campaign_id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite list failed: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite scan failed: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
