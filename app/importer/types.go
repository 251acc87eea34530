package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/lysyi3m/content-hub/app/auth"
	"github.com/lysyi3m/content-hub/app/database"
	"github.com/lysyi3m/content-hub/app/feed"
)

// Phase is the step an import batch is currently in.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseValidating        Phase = "validating"
	PhaseAuthorizing       Phase = "authorizing"
	PhaseRegistering       Phase = "registering"
	PhaseRateLimitChecking Phase = "rate_limit_checking"
	PhaseParsing           Phase = "parsing"
	PhaseInserting         Phase = "inserting"
	PhaseCompleted         Phase = "completed"
	PhaseFailed            Phase = "failed"
)

// Store is the content store an importer talks to. Every method is a remote
// call and may fail independently.
type Store interface {
	GetCurrentUser(ctx context.Context) (*auth.User, error)
	IsAdmin(ctx context.Context, userID string) (bool, error)
	CheckImportRateLimit(ctx context.Context, sourceID string) (bool, error)
	CreateContentSource(ctx context.Context, source database.NewSource) (*database.ContentSource, error)
	InsertContent(ctx context.Context, items []database.NewContent) error
	DeleteContentSource(ctx context.Context, id string) error
	ListContentSources(ctx context.Context, filter database.SourceFilter) ([]database.ContentSource, error)
}

var _ Store = (*database.Store)(nil)

// State is a point-in-time copy of an importer, safe to hand to callers.
type State struct {
	Kind     feed.Kind    `json:"kind"`
	Feeds    []feed.Entry `json:"feeds"`
	Phase    Phase        `json:"phase"`
	Loading  bool         `json:"isLoading"`
	Progress int          `json:"progress"`
	Status   string       `json:"status"`
	Error    string       `json:"error"`
}

type ErrorKind string

const (
	KindValidation             ErrorKind = "Validation"
	KindAuthenticationRequired ErrorKind = "AuthenticationRequired"
	KindNotAuthorized          ErrorKind = "NotAuthorized"
	KindStoreFailure           ErrorKind = "StoreFailure"
	KindSourceCreationFailed   ErrorKind = "SourceCreationFailed"
	KindRateLimitExceeded      ErrorKind = "RateLimitExceeded"
	KindParseFailed            ErrorKind = "ParseFailed"
	KindNoArticlesFound        ErrorKind = "NoArticlesFound"
	KindContentInsertFailed    ErrorKind = "ContentInsertFailed"
	KindCancelled              ErrorKind = "Cancelled"
)

var (
	ErrImportInProgress = errors.New("an import is already in progress")
	ErrFeedIndex        = errors.New("feed index out of range")
	ErrUnknownField     = errors.New("unknown feed field")
)

// Error is the terminal error of a batch. Feed is empty for errors raised
// before the per-feed loop.
type Error struct {
	Kind    ErrorKind
	Message string
	Feed    string
	Index   int
	Err     error
}

func (e *Error) Error() string {
	if e.Feed != "" {
		return fmt.Sprintf("%s: %s", e.Feed, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Index: -1, Err: err}
}

// KindOf returns the ErrorKind carried by err, or "" for foreign errors.
func KindOf(err error) ErrorKind {
	var importErr *Error
	if errors.As(err, &importErr) {
		return importErr.Kind
	}
	return ""
}
