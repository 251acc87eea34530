package tasks

import (
	"context"

	"github.com/lysyi3m/content-hub/app/feed"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the HTTP API to run import batches off the request goroutine.
// Example usage:
//
//	scheduler := NewScheduler(1, time.Hour, authService)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewImportFeedsTask(importer, user))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// FeedImporter runs one import batch for a feed kind.
type FeedImporter interface {
	Kind() feed.Kind
	ParseFeeds(ctx context.Context) error
}

// SessionPurger removes expired login sessions.
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}
