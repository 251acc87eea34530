package feed

import (
	"errors"
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url      string
		expected bool
	}{
		{"https://example.com/feed", true},
		{"http://example.com/feed?format=rss", true},
		{"invalid-url", false},
		{"", false},
		{"ftp://example.com/feed", false},
		{"example.com/feed", false},
		{"https://", false},
		{"http://[::1", false},
		{"httpx://example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := ValidateURL(tt.url); got != tt.expected {
				t.Errorf("ValidateURL(%q) = %v, expected %v", tt.url, got, tt.expected)
			}
		})
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"Test Blog", true},
		{"ab", false},
		{"abc", true},
		{"   ab   ", false},
		{"", false},
		{"12345678901234567890123456789012345678901234567890", true},
		{"123456789012345678901234567890123456789012345678901", false},
		{"Блог", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateName(tt.name); got != tt.expected {
				t.Errorf("ValidateName(%q) = %v, expected %v", tt.name, got, tt.expected)
			}
		})
	}
}

func TestIsDuplicate_LiteralComparison(t *testing.T) {
	existing := []string{"https://example.com/feed"}

	if !IsDuplicate("https://example.com/feed", existing) {
		t.Error("Expected identical URL to be a duplicate")
	}
	if IsDuplicate("https://example.com/feed/", existing) {
		t.Error("Expected trailing slash variant not to be treated as duplicate")
	}
	if IsDuplicate("https://example.com/feed", nil) {
		t.Error("Expected no duplicate against empty source list")
	}
}

func TestValidateBatch(t *testing.T) {
	existing := []string{"https://known.example.com/feed"}

	tests := []struct {
		name     string
		entries  []Entry
		reason   ValidationReason
		index    int
		expected string
	}{
		{
			name:     "invalid name",
			entries:  []Entry{{Name: "ab", URL: "https://example.com/feed"}},
			reason:   InvalidName,
			expected: "Feed names must be between 3 and 50 characters",
		},
		{
			name:     "invalid url",
			entries:  []Entry{{Name: "Test Blog", URL: "invalid-url"}},
			reason:   InvalidURL,
			expected: "Please enter valid feed URLs (must start with http:// or https://)",
		},
		{
			name:     "duplicate",
			entries:  []Entry{{Name: "Test Blog", URL: "https://known.example.com/feed"}},
			reason:   DuplicateURL,
			expected: "One or more feeds have already been imported",
		},
		{
			name: "name checked before url",
			entries: []Entry{
				{Name: "Good Blog", URL: "https://example.com/a"},
				{Name: "x", URL: "not a url"},
			},
			reason:   InvalidName,
			index:    1,
			expected: "Feed names must be between 3 and 50 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatch(tt.entries, existing)
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("Expected ValidationError, got: %v", err)
			}
			if validationErr.Reason != tt.reason {
				t.Errorf("Expected reason %s, got %s", tt.reason, validationErr.Reason)
			}
			if validationErr.Index != tt.index {
				t.Errorf("Expected index %d, got %d", tt.index, validationErr.Index)
			}
			if err.Error() != tt.expected {
				t.Errorf("Expected message %q, got %q", tt.expected, err.Error())
			}
		})
	}

	valid := []Entry{{Name: "Test Blog", URL: "https://example.com/feed"}}
	if err := ValidateBatch(valid, existing); err != nil {
		t.Errorf("Expected valid batch, got: %v", err)
	}
}
