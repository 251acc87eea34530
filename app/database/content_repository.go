package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContentRepo handles database operations for content items
type ContentRepo struct {
	db *DB
}

func NewContentRepository(db *DB) *ContentRepo {
	return &ContentRepo{db: db}
}

// UpsertContent stores items in one transaction. Rows sharing an external id
// are updated in place.
func (r *ContentRepo) UpsertContent(ctx context.Context, items []NewContent) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO content (
			id, type, title, description, content_url, thumbnail_url,
			source, source_id, published_at, external_id, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (external_id) DO UPDATE SET
			type = excluded.type,
			title = excluded.title,
			description = excluded.description,
			content_url = excluded.content_url,
			thumbnail_url = excluded.thumbnail_url,
			source = excluded.source,
			source_id = excluded.source_id,
			published_at = excluded.published_at,
			metadata = excluded.metadata
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare content upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, item := range items {
		_, err := stmt.ExecContext(ctx,
			uuid.NewString(), item.Type, item.Title, nullString(item.Description),
			item.ContentURL, nullString(item.ThumbnailURL), item.Source,
			nullString(item.SourceID), item.PublishedAt.UTC(), nullString(item.ExternalID),
			item.Metadata, now)
		if err != nil {
			return wrapError("upsert content", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit content upsert: %w", err)
	}
	return nil
}

// ListContent returns the public feed newest first. Descriptions of sources
// that opted out of summaries are blanked.
func (r *ContentRepo) ListContent(ctx context.Context, filter ContentFilter) ([]ContentItem, error) {
	var (
		where []string
		args  []any
	)

	if filter.Type != "" && filter.Type != "all" {
		where = append(where, "c.type = ?")
		args = append(args, filter.Type)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		where = append(where, `(LOWER(c.title) LIKE ? ESCAPE '\' OR LOWER(COALESCE(c.description, '')) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}

	query := `
		SELECT c.id, c.type, c.title,
		       CASE WHEN s.display_summary = 0 THEN '' ELSE COALESCE(c.description, '') END AS description,
		       c.content_url, COALESCE(c.thumbnail_url, '') AS thumbnail_url, c.source,
		       COALESCE(c.source_id, '') AS source_id, c.published_at,
		       COALESCE(c.external_id, '') AS external_id, c.metadata, c.created_at
		FROM content c
		LEFT JOIN content_sources s ON s.id = c.source_id`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY c.published_at DESC, c.created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += "\n\t\tLIMIT ? OFFSET ?"
	args = append(args, limit, max(filter.Offset, 0))

	items := []ContentItem{}
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}
	return items, nil
}

func (r *ContentRepo) CountContent(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM content`); err != nil {
		return 0, fmt.Errorf("failed to count content: %w", err)
	}
	return count, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
