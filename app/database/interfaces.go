package database

import (
	"context"
	"time"
)

type SourceRepository interface {
	CreateSource(ctx context.Context, source NewSource) (*ContentSource, error)
	GetSource(ctx context.Context, id string) (*ContentSource, error)
	ListSources(ctx context.Context, filter SourceFilter) ([]ContentSource, error)
	DeleteSource(ctx context.Context, id string) error
	CountRecentAttempts(ctx context.Context, feedURL, excludeID string, since time.Time) (int, error)
	StampImportAttempt(ctx context.Context, id string, at time.Time) error
	MarkSynced(ctx context.Context, ids []string, at time.Time) error
}

type ContentRepository interface {
	UpsertContent(ctx context.Context, items []NewContent) error
	ListContent(ctx context.Context, filter ContentFilter) ([]ContentItem, error)
	CountContent(ctx context.Context) (int, error)
}

var (
	_ SourceRepository  = (*SourceRepo)(nil)
	_ ContentRepository = (*ContentRepo)(nil)
)
