// Package store persists delivery records in an embedded SQLite file: one
// row per message relayed to Telegram (so the sweeper can delete it later)
// and one row per uploaded asset mapping its source URL to the Telegram
// file_id obtained from the first upload.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"release-relay/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite file at path and applies the
// schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA busy_timeout = 5000")

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordSent appends a sent-message row. The remote send already succeeded
// when this is called; callers log a failure here instead of propagating it.
func (s *Store) RecordSent(ctx context.Context, chatID, messageID int64) error {
	return s.RecordSentAt(ctx, chatID, messageID, time.Now())
}

func (s *Store) RecordSentAt(ctx context.Context, chatID, messageID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sent_messages(chat_id, message_id, sent_at) VALUES(?,?,?)`,
		chatID, messageID, at.UnixMilli(),
	)
	return err
}

// CachedFileID looks up the Telegram file_id previously recorded for an
// asset URL. The second return value is false when no entry exists.
func (s *Store) CachedFileID(ctx context.Context, assetURL string) (string, bool, error) {
	var fileID string
	err := s.db.QueryRowContext(ctx,
		`SELECT file_id FROM file_cache WHERE asset_url = ?`, assetURL,
	).Scan(&fileID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return fileID, true, nil
}

// PutFileID records the file_id for an asset URL. The URL is a uniqueness
// key and the first successful upload wins: a second insert for the same URL
// is a no-op.
func (s *Store) PutFileID(ctx context.Context, assetURL, fileID string) error {
	return s.PutFileIDAt(ctx, assetURL, fileID, time.Now())
}

func (s *Store) PutFileIDAt(ctx context.Context, assetURL, fileID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO file_cache(asset_url, file_id, created_at) VALUES(?,?,?)`,
		assetURL, fileID, at.UnixMilli(),
	)
	return err
}

// SentBefore returns all sent-message rows older than the cutoff, oldest
// first.
func (s *Store) SentBefore(ctx context.Context, cutoff time.Time) ([]models.SentMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, message_id, sent_at FROM sent_messages WHERE sent_at < ? ORDER BY sent_at`,
		cutoff.UnixMilli(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SentMessage
	for rows.Next() {
		var m models.SentMessage
		var ms int64
		if err := rows.Scan(&m.ID, &m.ChatID, &m.MessageID, &ms); err != nil {
			return nil, err
		}
		m.SentAt = time.UnixMilli(ms)
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteSent removes a sent-message row by id. Deleting an already-removed
// row is a no-op, so a sweep interrupted mid-pass can safely repeat.
func (s *Store) DeleteSent(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sent_messages WHERE id = ?`, id)
	return err
}

// DeleteCacheBefore removes file-cache rows older than the cutoff and
// reports how many were deleted. The cache is purely local; no remote call
// is involved.
func (s *Store) DeleteCacheBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM file_cache WHERE created_at < ?`, cutoff.UnixMilli(),
	)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
