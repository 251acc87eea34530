package feed

import (
	"context"
	"log/slog"
	"strings"
)

type FeedFetcher interface {
	Run(ctx context.Context, url string) ([]byte, error)
}

type FeedParser interface {
	Run(data []byte) ([]ParsedItem, error)
}

var (
	_ FeedFetcher = (*Fetcher)(nil)
	_ FeedParser  = (*Parser)(nil)
	_ ParseClient = (*Service)(nil)
)

// Service is the in-process parse function: fetch, bound, sniff, parse.
type Service struct {
	fetcher FeedFetcher
	parser  FeedParser
}

func NewService(fetcher FeedFetcher, parser FeedParser) *Service {
	return &Service{
		fetcher: fetcher,
		parser:  parser,
	}
}

func (s *Service) Parse(ctx context.Context, req ParseRequest) (*ParseResponse, error) {
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return nil, newError(ErrNoURLProvided, nil, "No URL provided")
	}
	if !ValidateURL(url) {
		return nil, newError(ErrInvalidURLFormat, nil, "Invalid URL format")
	}

	slog.Info("Fetching feed", "url", url, "source_id", req.SourceID)

	data, err := s.fetcher.Run(ctx, url)
	if err != nil {
		slog.Error("Feed fetch failed", "url", url, "kind", KindOf(err), "error", err)
		return nil, err
	}

	if !LooksLikeFeed(data) {
		slog.Error("Payload is not a feed", "url", url, "bytes", len(data))
		return nil, newError(ErrInvalidFeedFormat, nil, "Invalid feed format: not an RSS or Atom document")
	}

	items, err := s.parser.Run(data)
	if err != nil {
		slog.Error("Feed parse failed", "url", url, "kind", KindOf(err), "error", err)
		return nil, err
	}

	slog.Info("Feed parsed", "url", url, "items", len(items), "bytes", len(data))

	return &ParseResponse{Items: items}, nil
}
