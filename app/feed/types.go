package feed

import (
	"context"
	"fmt"
)

// Kind identifies the flavour of feed being imported.
type Kind string

const (
	KindWordPress Kind = "wordpress"
	KindPodcast   Kind = "podcast"
)

// Content types stored for imported items.
const (
	ContentTypeVideo   = "video"
	ContentTypeBlog    = "blog"
	ContentTypePodcast = "podcast"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindWordPress, KindPodcast:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown feed kind: %q", s)
	}
}

// ContentType maps a feed kind to the content type of its items.
func (k Kind) ContentType() string {
	if k == KindPodcast {
		return ContentTypePodcast
	}
	return ContentTypeBlog
}

// Entry is a feed queued for import by an administrator.
type Entry struct {
	Name           string `json:"name" yaml:"name"`
	URL            string `json:"url" yaml:"url"`
	DisplaySummary bool   `json:"displaySummary" yaml:"display_summary"`
}

// NewEntry returns the blank entry the import form starts with.
func NewEntry() Entry {
	return Entry{DisplaySummary: true}
}

type ParseRequest struct {
	URL            string `json:"url"`
	SourceID       string `json:"sourceId,omitempty"`
	DisplaySummary *bool  `json:"displaySummary,omitempty"`
}

type ParseResponse struct {
	Items []ParsedItem `json:"items"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// ParsedItem is one normalized feed entry. String fields are never omitted
// and slices are never nil so the JSON shape is stable for callers.
type ParsedItem struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Link        string   `json:"link"`
	GUID        string   `json:"guid"`
	PubDate     string   `json:"pubDate"`
	Duration    string   `json:"duration"`
	Author      string   `json:"author"`
	Thumbnail   string   `json:"thumbnail"`
	Categories  []string `json:"categories"`
	Tags        []string `json:"tags"`
}

// ParseClient invokes the parse function, either in-process or remotely.
type ParseClient interface {
	Parse(ctx context.Context, req ParseRequest) (*ParseResponse, error)
}
