package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const sourceColumns = `
	id, type, name, source_url, source_id, COALESCE(feed_url, '') AS feed_url,
	display_summary, last_synced_at, last_import_attempt,
	COALESCE(location, '') AS location, metadata, created_at`

// SourceRepo handles database operations for content sources
type SourceRepo struct {
	db *DB
}

func NewSourceRepository(db *DB) *SourceRepo {
	return &SourceRepo{db: db}
}

// CreateSource inserts a source and returns the stored row
func (r *SourceRepo) CreateSource(ctx context.Context, source NewSource) (*ContentSource, error) {
	created := ContentSource{
		ID:             uuid.NewString(),
		Type:           source.Type,
		Name:           source.Name,
		SourceURL:      source.SourceURL,
		SourceID:       source.SourceID,
		FeedURL:        source.FeedURL,
		DisplaySummary: source.DisplaySummary,
		Location:       source.Location,
		Metadata:       source.Metadata,
		CreatedAt:      time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO content_sources (
			id, type, name, source_url, source_id, feed_url,
			display_summary, location, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, created.ID, created.Type, created.Name, created.SourceURL, created.SourceID,
		nullString(created.FeedURL), created.DisplaySummary, nullString(created.Location),
		created.Metadata, created.CreatedAt)
	if err != nil {
		return nil, wrapError("create content source", err)
	}

	return &created, nil
}

func (r *SourceRepo) GetSource(ctx context.Context, id string) (*ContentSource, error) {
	var source ContentSource
	err := r.db.GetContext(ctx, &source, `SELECT `+sourceColumns+` FROM content_sources WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content source: %w", err)
	}
	return &source, nil
}

// ListSources returns sources newest first, optionally restricted to one type
func (r *SourceRepo) ListSources(ctx context.Context, filter SourceFilter) ([]ContentSource, error) {
	query := `SELECT ` + sourceColumns + ` FROM content_sources`
	var args []any
	if filter.Type != "" {
		query += ` WHERE type = ?`
		args = append(args, filter.Type)
	}
	query += ` ORDER BY created_at DESC`

	sources := []ContentSource{}
	if err := r.db.SelectContext(ctx, &sources, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list content sources: %w", err)
	}
	return sources, nil
}

// DeleteSource removes a source. Its content rows are kept.
func (r *SourceRepo) DeleteSource(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM content_sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete content source: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete content source: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountRecentAttempts counts other sources for feedURL whose last import
// attempt happened after since.
func (r *SourceRepo) CountRecentAttempts(ctx context.Context, feedURL, excludeID string, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM content_sources
		WHERE feed_url = ?
		  AND id <> ?
		  AND last_import_attempt IS NOT NULL
		  AND last_import_attempt > ?
	`, feedURL, excludeID, since.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to count recent import attempts: %w", err)
	}
	return count, nil
}

func (r *SourceRepo) StampImportAttempt(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE content_sources SET last_import_attempt = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to stamp import attempt: %w", err)
	}
	return nil
}

// MarkSynced records a successful content import for the given sources
func (r *SourceRepo) MarkSynced(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE content_sources SET last_synced_at = ? WHERE id IN (?)`, at.UTC(), ids)
	if err != nil {
		return fmt.Errorf("failed to build sync update: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to mark sources synced: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
