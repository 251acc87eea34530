package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/content-hub/app/auth"
	"github.com/lysyi3m/content-hub/app/importer"
)

// ImportFeedsTask runs an importer's pending batch on behalf of a user.
// It is never retried: a second run would register the sources again.
type ImportFeedsTask struct {
	Task
	importer FeedImporter
	user     *auth.User
}

func NewImportFeedsTask(imp FeedImporter, user *auth.User) *ImportFeedsTask {
	task := NewTask(TaskTypeImportFeeds, string(imp.Kind()))
	task.MaxRetries = 0

	return &ImportFeedsTask{
		Task:     task,
		importer: imp,
		user:     user,
	}
}

func (t *ImportFeedsTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := t.importer.ParseFeeds(auth.WithUser(ctx, t.user))
	if errors.Is(err, importer.ErrImportInProgress) {
		slog.Warn("Import already running, skipping", "type", "ImportFeeds", "kind", t.Subject)
		return nil
	}
	if err != nil {
		slog.Error("Task failed", "type", "ImportFeeds", "kind", t.Subject, "error", err)
		return fmt.Errorf("failed to import feeds: %w", err)
	}

	slog.Info("Task completed",
		"type", "ImportFeeds",
		"kind", t.Subject,
		"duration", t.GetDuration())

	return nil
}
