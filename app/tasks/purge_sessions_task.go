package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

type PurgeSessionsTask struct {
	Task
	purger SessionPurger
}

func NewPurgeSessionsTask(purger SessionPurger) *PurgeSessionsTask {
	return &PurgeSessionsTask{
		Task:   NewTask(TaskTypePurgeSessions, "sessions"),
		purger: purger,
	}
}

func (t *PurgeSessionsTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	purged, err := t.purger.PurgeExpired(ctx)
	if err != nil {
		slog.Error("Task failed", "type", "PurgeSessions", "error", err)
		return fmt.Errorf("failed to purge expired sessions: %w", err)
	}

	slog.Info("Task completed",
		"type", "PurgeSessions",
		"purged", purged,
		"duration", t.GetDuration())

	return nil
}
