package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Source types accepted by content_sources.type.
const (
	SourceTypeWordPress = "wordpress"
	SourceTypePodcast   = "podcast"
	SourceTypeYouTube   = "youtube"
)

// JSONMap is a free-form JSON object stored as TEXT.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return string(data), nil
}

func (m *JSONMap) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("unsupported metadata type %T", src)
	}
	if len(data) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(data, m)
}

// ContentSource is a registered origin of content (a feed or a channel).
type ContentSource struct {
	ID                string     `db:"id" json:"id"`
	Type              string     `db:"type" json:"type"`
	Name              string     `db:"name" json:"name"`
	SourceURL         string     `db:"source_url" json:"source_url"`
	SourceID          string     `db:"source_id" json:"source_id"`
	FeedURL           string     `db:"feed_url" json:"feed_url"`
	DisplaySummary    bool       `db:"display_summary" json:"display_summary"`
	LastSyncedAt      *time.Time `db:"last_synced_at" json:"last_synced_at"`
	LastImportAttempt *time.Time `db:"last_import_attempt" json:"last_import_attempt"`
	Location          string     `db:"location" json:"location,omitempty"`
	Metadata          JSONMap    `db:"metadata" json:"metadata,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}

type NewSource struct {
	Type           string
	Name           string
	SourceURL      string
	SourceID       string
	FeedURL        string
	DisplaySummary bool
	Location       string
	Metadata       JSONMap
}

// ContentItem is one row of the unified public feed.
type ContentItem struct {
	ID           string    `db:"id" json:"id"`
	Type         string    `db:"type" json:"type"`
	Title        string    `db:"title" json:"title"`
	Description  string    `db:"description" json:"description"`
	ContentURL   string    `db:"content_url" json:"content_url"`
	ThumbnailURL string    `db:"thumbnail_url" json:"thumbnail_url"`
	Source       string    `db:"source" json:"source"`
	SourceID     string    `db:"source_id" json:"source_id,omitempty"`
	PublishedAt  time.Time `db:"published_at" json:"published_at"`
	ExternalID   string    `db:"external_id" json:"external_id,omitempty"`
	Metadata     JSONMap   `db:"metadata" json:"metadata,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// NewContent is an item to upsert. An empty ExternalID never conflicts.
type NewContent struct {
	Type         string
	Title        string
	Description  string
	ContentURL   string
	ThumbnailURL string
	Source       string
	SourceID     string
	PublishedAt  time.Time
	ExternalID   string
	Metadata     JSONMap
}

type SourceFilter struct {
	Type string
}

type ContentFilter struct {
	Type   string // "" or "all" for every type
	Query  string
	Limit  int
	Offset int
}
