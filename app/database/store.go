package database

import (
	"context"
	"fmt"
	"time"

	"github.com/lysyi3m/content-hub/app/auth"
)

// ImportLimiter decides whether a feed may be imported now.
type ImportLimiter interface {
	Allow(ctx context.Context, sourceID, feedURL string) (bool, error)
}

// AttemptLimiter rate-limits imports using content_sources.last_import_attempt.
// The check and the stamp are separate statements, so two processes sharing
// the database can both pass the check.
type AttemptLimiter struct {
	sources  SourceRepository
	cooldown time.Duration
	now      func() time.Time
}

func NewAttemptLimiter(sources SourceRepository, cooldown time.Duration) *AttemptLimiter {
	return &AttemptLimiter{
		sources:  sources,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Allow refuses the import when another source for the same feed URL was
// attempted within the cooldown, and stamps the attempt otherwise.
func (l *AttemptLimiter) Allow(ctx context.Context, sourceID, feedURL string) (bool, error) {
	now := l.now().UTC()

	if feedURL != "" {
		recent, err := l.sources.CountRecentAttempts(ctx, feedURL, sourceID, now.Add(-l.cooldown))
		if err != nil {
			return false, err
		}
		if recent > 0 {
			return false, nil
		}
	}

	if err := l.sources.StampImportAttempt(ctx, sourceID, now); err != nil {
		return false, err
	}
	return true, nil
}

// Store is the content store used by the importers and the HTTP API.
type Store struct {
	sources SourceRepository
	content ContentRepository
	users   *UserRepo
	limiter ImportLimiter
}

// NewStore builds a Store over db. A nil limiter falls back to an
// AttemptLimiter with the given cooldown.
func NewStore(db *DB, limiter ImportLimiter, cooldown time.Duration) *Store {
	sources := NewSourceRepository(db)
	if limiter == nil {
		limiter = NewAttemptLimiter(sources, cooldown)
	}
	return &Store{
		sources: sources,
		content: NewContentRepository(db),
		users:   NewUserRepository(db),
		limiter: limiter,
	}
}

// GetCurrentUser returns the user attached to ctx, or nil when anonymous.
func (s *Store) GetCurrentUser(ctx context.Context) (*auth.User, error) {
	return auth.UserFromContext(ctx), nil
}

func (s *Store) IsAdmin(ctx context.Context, userID string) (bool, error) {
	return s.users.IsAdmin(ctx, userID)
}

func (s *Store) CheckImportRateLimit(ctx context.Context, sourceID string) (bool, error) {
	source, err := s.sources.GetSource(ctx, sourceID)
	if err != nil {
		return false, fmt.Errorf("failed to load source for rate limit: %w", err)
	}
	return s.limiter.Allow(ctx, source.ID, source.FeedURL)
}

func (s *Store) CreateContentSource(ctx context.Context, source NewSource) (*ContentSource, error) {
	return s.sources.CreateSource(ctx, source)
}

// InsertContent upserts items and stamps last_synced_at on their sources.
func (s *Store) InsertContent(ctx context.Context, items []NewContent) error {
	if err := s.content.UpsertContent(ctx, items); err != nil {
		return err
	}

	seen := make(map[string]bool)
	var ids []string
	for _, item := range items {
		if item.SourceID != "" && !seen[item.SourceID] {
			seen[item.SourceID] = true
			ids = append(ids, item.SourceID)
		}
	}
	return s.sources.MarkSynced(ctx, ids, time.Now())
}

func (s *Store) DeleteContentSource(ctx context.Context, id string) error {
	return s.sources.DeleteSource(ctx, id)
}

func (s *Store) ListContentSources(ctx context.Context, filter SourceFilter) ([]ContentSource, error) {
	return s.sources.ListSources(ctx, filter)
}

func (s *Store) ListContent(ctx context.Context, filter ContentFilter) ([]ContentItem, error) {
	return s.content.ListContent(ctx, filter)
}

func (s *Store) CountContent(ctx context.Context) (int, error) {
	return s.content.CountContent(ctx)
}
