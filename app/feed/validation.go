package feed

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

const (
	MinNameLength = 3
	MaxNameLength = 50
)

type ValidationReason string

const (
	InvalidName  ValidationReason = "invalid_name"
	InvalidURL   ValidationReason = "invalid_url"
	DuplicateURL ValidationReason = "duplicate"
)

var validationMessages = map[ValidationReason]string{
	InvalidName:  "Feed names must be between 3 and 50 characters",
	InvalidURL:   "Please enter valid feed URLs (must start with http:// or https://)",
	DuplicateURL: "One or more feeds have already been imported",
}

// ValidationError reports the first entry of a batch that failed validation.
type ValidationError struct {
	Reason ValidationReason
	Index  int
}

func (e *ValidationError) Error() string {
	return validationMessages[e.Reason]
}

// ValidateURL reports whether rawURL is an absolute http(s) URL.
func ValidateURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

func ValidateName(name string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	return n >= MinNameLength && n <= MaxNameLength
}

// IsDuplicate compares feed URLs literally: trailing slashes and query
// order are significant.
func IsDuplicate(feedURL string, existingFeedURLs []string) bool {
	for _, existing := range existingFeedURLs {
		if existing == feedURL {
			return true
		}
	}
	return false
}

// ValidateBatch checks entries in order and stops at the first failure.
// Within an entry the name is checked before the URL, and the URL before
// the duplicate check.
func ValidateBatch(entries []Entry, existingFeedURLs []string) error {
	for i, entry := range entries {
		if !ValidateName(entry.Name) {
			return &ValidationError{Reason: InvalidName, Index: i}
		}
		if !ValidateURL(entry.URL) {
			return &ValidationError{Reason: InvalidURL, Index: i}
		}
		if IsDuplicate(entry.URL, existingFeedURLs) {
			return &ValidationError{Reason: DuplicateURL, Index: i}
		}
	}
	return nil
}
