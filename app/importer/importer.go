package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/content-hub/app/database"
	"github.com/lysyi3m/content-hub/app/feed"
)

const (
	progressStart = 10
	progressSpan  = 80
	progressDone  = 100

	DefaultResetDelay = 2 * time.Second
	DefaultCooldown   = 15 * time.Minute
)

// AfterFunc runs f once d has elapsed. It matches time.AfterFunc without the timer.
type AfterFunc func(d time.Duration, f func())

func realAfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}

// Importer owns the pending feed entries of one feed kind and drives their
// import. Feeds of a batch are processed one at a time; a failing feed stops
// the batch without undoing feeds already imported.
type Importer struct {
	kind       feed.Kind
	store      Store
	parser     feed.ParseClient
	notifier   Notifier
	resetDelay time.Duration
	cooldown   time.Duration
	afterFunc  AfterFunc
	now        func() time.Time

	mu        sync.Mutex
	feeds     []feed.Entry
	phase     Phase
	loading   bool
	progress  int
	status    string
	lastError string
	runID     uint64
	observers []func(State)
}

func NewImporter(kind feed.Kind, store Store, parser feed.ParseClient, notifier Notifier, resetDelay, cooldown time.Duration) *Importer {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if resetDelay <= 0 {
		resetDelay = DefaultResetDelay
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Importer{
		kind:       kind,
		store:      store,
		parser:     parser,
		notifier:   notifier,
		resetDelay: resetDelay,
		cooldown:   cooldown,
		afterFunc:  realAfterFunc,
		now:        time.Now,
		feeds:      []feed.Entry{feed.NewEntry()},
		phase:      PhaseIdle,
	}
}

func (im *Importer) Kind() feed.Kind {
	return im.kind
}

// OnChange registers an observer called with a snapshot after every state change.
func (im *Importer) OnChange(fn func(State)) {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.observers = append(im.observers, fn)
}

func (im *Importer) Snapshot() State {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.snapshotLocked()
}

func (im *Importer) snapshotLocked() State {
	feeds := make([]feed.Entry, len(im.feeds))
	copy(feeds, im.feeds)
	return State{
		Kind:     im.kind,
		Feeds:    feeds,
		Phase:    im.phase,
		Loading:  im.loading,
		Progress: im.progress,
		Status:   im.status,
		Error:    im.lastError,
	}
}

// update applies fn under the lock and then notifies observers.
func (im *Importer) update(fn func()) {
	im.mu.Lock()
	fn()
	snap := im.snapshotLocked()
	observers := append([]func(State){}, im.observers...)
	im.mu.Unlock()

	for _, observe := range observers {
		observe(snap)
	}
}

func (im *Importer) Busy() bool {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.loading
}

// SetFeeds replaces the pending list, for example with a preset.
func (im *Importer) SetFeeds(entries []feed.Entry) {
	im.update(func() {
		im.feeds = append([]feed.Entry{}, entries...)
	})
}

func (im *Importer) AddFeed() {
	im.update(func() {
		im.feeds = append(im.feeds, feed.NewEntry())
	})
}

func (im *Importer) RemoveFeed(index int) error {
	var err error
	im.update(func() {
		if index < 0 || index >= len(im.feeds) {
			err = ErrFeedIndex
			return
		}
		im.feeds = append(im.feeds[:index:index], im.feeds[index+1:]...)
	})
	return err
}

// UpdateFeed sets one field of a pending entry. field is "name", "url" or
// "displaySummary"; the value must be a string for the first two and a bool
// for the last.
func (im *Importer) UpdateFeed(index int, field string, value any) error {
	var err error
	im.update(func() {
		if index < 0 || index >= len(im.feeds) {
			err = ErrFeedIndex
			return
		}
		entry := &im.feeds[index]
		switch field {
		case "name", "url":
			s, ok := value.(string)
			if !ok {
				err = fmt.Errorf("field %s expects a string, got %T", field, value)
				return
			}
			if field == "name" {
				entry.Name = s
			} else {
				entry.URL = s
			}
		case "displaySummary":
			b, ok := value.(bool)
			if !ok {
				err = fmt.Errorf("field %s expects a bool, got %T", field, value)
				return
			}
			entry.DisplaySummary = b
		default:
			err = fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
	})
	return err
}

// ParseFeeds imports every pending feed. It returns ErrImportInProgress,
// without touching any state, when a batch is already running.
func (im *Importer) ParseFeeds(ctx context.Context) error {
	var (
		entries []feed.Entry
		run     uint64
		busy    bool
	)
	im.update(func() {
		if im.loading {
			busy = true
			return
		}
		im.runID++
		run = im.runID
		entries = append([]feed.Entry{}, im.feeds...)
		im.loading = true
		im.lastError = ""
		im.phase = PhaseValidating
		im.progress = 0
		im.status = ""
	})
	if busy {
		return ErrImportInProgress
	}

	defer im.scheduleReset(run)

	slog.Info("Import started", "kind", im.kind, "feeds", len(entries))

	if err := im.runBatch(ctx, entries); err != nil {
		im.fail(err)
		return err
	}

	im.update(func() {
		im.phase = PhaseCompleted
		im.progress = progressDone
		im.status = "Import completed successfully!"
		im.loading = false
		im.feeds = []feed.Entry{feed.NewEntry()}
	})

	slog.Info("Import completed", "kind", im.kind, "feeds", len(entries))
	im.notifier.Notify(Notification{
		Title:       "Success",
		Description: im.successMessage(),
		Variant:     VariantDefault,
		Kind:        string(im.kind),
		At:          im.now(),
	})
	return nil
}

func (im *Importer) runBatch(ctx context.Context, entries []feed.Entry) error {
	if len(entries) == 0 {
		return newError(KindValidation, nil, "Please add at least one feed")
	}

	// names and URLs are checked before the store is consulted for duplicates
	if err := feed.ValidateBatch(entries, nil); err != nil {
		return validationError(err)
	}

	existing, err := im.store.ListContentSources(ctx, database.SourceFilter{Type: string(im.kind)})
	if err != nil {
		return newError(KindStoreFailure, err, "Failed to load existing sources: %v", err)
	}
	existingURLs := make([]string, 0, len(existing))
	for _, source := range existing {
		existingURLs = append(existingURLs, source.FeedURL)
	}
	if err := feed.ValidateBatch(entries, existingURLs); err != nil {
		return validationError(err)
	}

	im.update(func() {
		im.phase = PhaseAuthorizing
		im.progress = progressStart
		im.status = "Initializing feed parser..."
	})

	if err := im.authorize(ctx); err != nil {
		return err
	}

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return im.feedError(newError(KindCancelled, err, "Import cancelled"), i, entry)
		}

		im.update(func() {
			im.phase = PhaseRegistering
			im.status = fmt.Sprintf("Processing feed %d of %d...", i+1, len(entries))
		})

		count, err := im.importFeed(ctx, entry)
		if err != nil {
			return im.feedError(err, i, entry)
		}

		slog.Info("Feed imported", "kind", im.kind, "name", entry.Name, "url", entry.URL, "items", count)

		im.update(func() {
			im.progress = progressStart + progressSpan*(i+1)/len(entries)
		})
	}

	return nil
}

func (im *Importer) authorize(ctx context.Context) error {
	user, err := im.store.GetCurrentUser(ctx)
	if err != nil {
		return newError(KindAuthenticationRequired, err, "Authentication error: %v", err)
	}
	if user == nil {
		return newError(KindAuthenticationRequired, nil, "You must be logged in to perform this action")
	}

	isAdmin, err := im.store.IsAdmin(ctx, user.ID)
	if err != nil {
		return newError(KindStoreFailure, err, "Failed to verify admin status: %v", err)
	}
	if !isAdmin {
		return newError(KindNotAuthorized, nil, "You must be an admin to manage content sources")
	}
	return nil
}

func (im *Importer) importFeed(ctx context.Context, entry feed.Entry) (int, error) {
	source, err := im.store.CreateContentSource(ctx, database.NewSource{
		Type:           string(im.kind),
		Name:           entry.Name,
		SourceURL:      entry.URL,
		SourceID:       entry.URL,
		FeedURL:        entry.URL,
		DisplaySummary: entry.DisplaySummary,
	})
	if err != nil {
		return 0, newError(KindSourceCreationFailed, err, "Failed to add content source: %v", err)
	}
	if source == nil {
		return 0, newError(KindSourceCreationFailed, nil, "Failed to create content source")
	}

	im.update(func() { im.phase = PhaseRateLimitChecking })

	allowed, err := im.store.CheckImportRateLimit(ctx, source.ID)
	if err != nil {
		return 0, newError(KindRateLimitExceeded, err, "Failed to check rate limit: %v", err)
	}
	if !allowed {
		return 0, newError(KindRateLimitExceeded, nil,
			"Rate limit exceeded. Please wait %d minutes between imports.", int(im.cooldown.Minutes()))
	}

	im.update(func() { im.phase = PhaseParsing })

	displaySummary := entry.DisplaySummary
	resp, err := im.parser.Parse(ctx, feed.ParseRequest{
		URL:            entry.URL,
		SourceID:       source.ID,
		DisplaySummary: &displaySummary,
	})
	if err != nil {
		return 0, newError(KindParseFailed, err, "%s", err.Error())
	}
	if resp == nil || len(resp.Items) == 0 {
		return 0, newError(KindNoArticlesFound, nil, "%s", im.emptyMessage())
	}

	im.update(func() { im.phase = PhaseInserting })

	rows := im.contentRows(entry, source, resp.Items)
	if err := im.store.InsertContent(ctx, rows); err != nil {
		return 0, newError(KindContentInsertFailed, err, "Failed to insert content: %v", err)
	}
	return len(rows), nil
}

// contentRows maps parsed items onto content rows for this feed kind.
func (im *Importer) contentRows(entry feed.Entry, source *database.ContentSource, items []feed.ParsedItem) []database.NewContent {
	importedAt := im.now().UTC()
	rows := make([]database.NewContent, 0, len(items))

	for _, item := range items {
		row := database.NewContent{
			Type:         im.kind.ContentType(),
			Title:        item.Title,
			Description:  item.Description,
			ThumbnailURL: item.Thumbnail,
			Source:       entry.Name,
			SourceID:     source.ID,
			PublishedAt:  publishedAt(item.PubDate, importedAt),
			ExternalID:   item.GUID,
		}

		switch im.kind {
		case feed.KindPodcast:
			row.ContentURL = firstNonEmpty(item.URL, item.Link)
			row.Metadata = database.JSONMap{
				"duration": item.Duration,
				"author":   item.Author,
			}
		default:
			row.ContentURL = firstNonEmpty(item.Link, item.URL)
			row.Metadata = database.JSONMap{
				"categories": item.Categories,
				"tags":       item.Tags,
				"author":     item.Author,
			}
		}

		rows = append(rows, row)
	}
	return rows
}

// publishedAt parses an RFC 3339 date. Items without a usable date are
// stamped with the import time.
func publishedAt(pubDate string, fallback time.Time) time.Time {
	if pubDate == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339, pubDate)
	if err != nil {
		return fallback
	}
	return t.UTC()
}

func validationError(err error) *Error {
	importErr := newError(KindValidation, err, "%s", err.Error())
	var validationErr *feed.ValidationError
	if errors.As(err, &validationErr) {
		importErr.Index = validationErr.Index
	}
	return importErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (im *Importer) feedError(err error, index int, entry feed.Entry) error {
	var importErr *Error
	if errors.As(err, &importErr) {
		importErr.Index = index
		importErr.Feed = entry.Name
		return importErr
	}
	return &Error{Kind: KindParseFailed, Message: err.Error(), Feed: entry.Name, Index: index, Err: err}
}

func (im *Importer) fail(err error) {
	im.update(func() {
		im.phase = PhaseFailed
		im.lastError = err.Error()
		im.loading = false
	})

	slog.Error("Import failed", "kind", im.kind, "error_kind", KindOf(err), "error", err)
	im.notifier.Notify(Notification{
		Title:       "Error",
		Description: err.Error(),
		Variant:     VariantDestructive,
		Kind:        string(im.kind),
		At:          im.now(),
	})
}

// scheduleReset returns the transient state to idle after the reset delay,
// unless a newer batch has started in the meantime.
func (im *Importer) scheduleReset(run uint64) {
	im.afterFunc(im.resetDelay, func() {
		im.update(func() {
			if im.runID != run || im.loading {
				return
			}
			im.phase = PhaseIdle
			im.progress = 0
			im.status = ""
			im.lastError = ""
		})
	})
}

func (im *Importer) successMessage() string {
	if im.kind == feed.KindPodcast {
		return "Podcast feeds parsed and episodes imported successfully"
	}
	return "WordPress feeds parsed and articles imported successfully"
}

func (im *Importer) emptyMessage() string {
	if im.kind == feed.KindPodcast {
		return "No episodes found in feed"
	}
	return "No articles found in feed"
}
