package feed

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorKind string

const (
	ErrNoURLProvided         ErrorKind = "NoUrlProvided"
	ErrInvalidURLFormat      ErrorKind = "InvalidUrlFormat"
	ErrFetchTimeout          ErrorKind = "FetchTimeout"
	ErrFetchFailed           ErrorKind = "FetchFailed"
	ErrFeedTooLarge          ErrorKind = "FeedTooLarge"
	ErrInvalidFeedFormat     ErrorKind = "InvalidFeedFormat"
	ErrMissingChannelOrItems ErrorKind = "MissingChannelOrItems"
	ErrParseFailure          ErrorKind = "ParseFailure"
)

var kindStatus = map[ErrorKind]int{
	ErrNoURLProvided:         http.StatusBadRequest,
	ErrInvalidURLFormat:      http.StatusBadRequest,
	ErrFetchTimeout:          http.StatusGatewayTimeout,
	ErrFetchFailed:           http.StatusBadGateway,
	ErrFeedTooLarge:          http.StatusRequestEntityTooLarge,
	ErrInvalidFeedFormat:     http.StatusUnprocessableEntity,
	ErrMissingChannelOrItems: http.StatusUnprocessableEntity,
	ErrParseFailure:          http.StatusInternalServerError,
}

// Error is returned by every stage of the parse function. None of the kinds
// are retried by the function itself.
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int // upstream HTTP status for FetchFailed
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus is the status the parse function answers with for this error.
func (e *Error) HTTPStatus() int {
	if status, ok := kindStatus[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func newError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of a parse error, or "" for foreign errors.
func KindOf(err error) ErrorKind {
	var feedErr *Error
	if errors.As(err, &feedErr) {
		return feedErr.Kind
	}
	return ""
}

// kindForStatus recovers an error kind from a remote parse function status.
// Several kinds share a status; the first listed wins.
func kindForStatus(status int) ErrorKind {
	switch status {
	case http.StatusBadRequest:
		return ErrInvalidURLFormat
	case http.StatusGatewayTimeout:
		return ErrFetchTimeout
	case http.StatusBadGateway:
		return ErrFetchFailed
	case http.StatusRequestEntityTooLarge:
		return ErrFeedTooLarge
	case http.StatusUnprocessableEntity:
		return ErrInvalidFeedFormat
	default:
		return ErrParseFailure
	}
}
