package importer

import (
	"log/slog"
	"sync"
	"time"
)

type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notification is a user-facing message about an import.
type Notification struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Variant     Variant   `json:"variant"`
	Kind        string    `json:"kind"`
	At          time.Time `json:"at"`
}

type Notifier interface {
	Notify(n Notification)
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct{}

func (LogNotifier) Notify(n Notification) {
	if n.Variant == VariantDestructive {
		slog.Warn("Import notification", "kind", n.Kind, "title", n.Title, "description", n.Description)
		return
	}
	slog.Info("Import notification", "kind", n.Kind, "title", n.Title, "description", n.Description)
}

// Recorder keeps the most recent notifications for the admin API and
// forwards each one to next.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
	limit int
	next  Notifier
}

func NewRecorder(limit int, next Notifier) *Recorder {
	if limit <= 0 {
		limit = 50
	}
	return &Recorder{limit: limit, next: next}
}

func (r *Recorder) Notify(n Notification) {
	if n.At.IsZero() {
		n.At = time.Now()
	}

	r.mu.Lock()
	r.items = append(r.items, n)
	if len(r.items) > r.limit {
		r.items = r.items[len(r.items)-r.limit:]
	}
	r.mu.Unlock()

	if r.next != nil {
		r.next.Notify(n)
	}
}

// List returns notifications newest first
func (r *Recorder) List() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Notification, len(r.items))
	for i, n := range r.items {
		out[len(r.items)-1-i] = n
	}
	return out
}
