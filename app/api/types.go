package api

import (
	"context"

	"github.com/lysyi3m/content-hub/app/auth"
	"github.com/lysyi3m/content-hub/app/cache"
	"github.com/lysyi3m/content-hub/app/database"
	"github.com/lysyi3m/content-hub/app/feed"
	"github.com/lysyi3m/content-hub/app/importer"
	"github.com/lysyi3m/content-hub/app/tasks"
)

type ContentStore interface {
	ListContentSources(ctx context.Context, filter database.SourceFilter) ([]database.ContentSource, error)
	DeleteContentSource(ctx context.Context, id string) error
	ListContent(ctx context.Context, filter database.ContentFilter) ([]database.ContentItem, error)
	CountContent(ctx context.Context) (int, error)
}

type Authenticator interface {
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*auth.User, error)
}

type NotificationLister interface {
	List() []importer.Notification
}

// HealthChecker reports the state of an optional backend such as Redis.
type HealthChecker interface {
	Health(ctx context.Context) map[string]any
}

type PresetSource interface {
	GetPreset(kind feed.Kind) []feed.Entry
	GetPresetCount() int
}

var (
	_ ContentStore       = (*database.Store)(nil)
	_ Authenticator      = (*auth.Service)(nil)
	_ NotificationLister = (*importer.Recorder)(nil)
	_ PresetSource       = (*feed.PresetCache)(nil)
	_ HealthChecker      = (*cache.ImportLimiter)(nil)
)

type Handler struct {
	store         ContentStore
	auth          Authenticator
	parser        feed.ParseClient
	importers     map[feed.Kind]*importer.Importer
	presets       PresetSource
	notifications NotificationLister
	scheduler     tasks.TaskSchedulerInterface
	version       string
	rss           *RSSGenerator
	checks        map[string]HealthChecker
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateFeedRequest struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}
