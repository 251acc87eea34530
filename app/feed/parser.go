package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const DefaultMaxItems = 50

type Parser struct {
	gofeedParser *gofeed.Parser
	summarizer   *Summarizer
	maxItems     int
}

func NewParser(maxItems int) *Parser {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &Parser{
		gofeedParser: gofeed.NewParser(),
		summarizer:   NewSummarizer(MaxDescriptionLength),
		maxItems:     maxItems,
	}
}

// LooksLikeFeed is a cheap check run before the full parse.
func LooksLikeFeed(data []byte) bool {
	lower := bytes.ToLower(data)
	return bytes.Contains(lower, []byte("<rss")) || bytes.Contains(lower, []byte("<feed"))
}

func (p *Parser) Run(data []byte) ([]ParsedItem, error) {
	lower := bytes.ToLower(data)
	if bytes.Contains(lower, []byte("<rss")) && !bytes.Contains(lower, []byte("<channel")) {
		return nil, newError(ErrMissingChannelOrItems, nil, "Invalid RSS format: missing channel")
	}

	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, newError(ErrParseFailure, err, "Failed to parse feed: %v", err)
	}

	if len(feed.Items) == 0 {
		return nil, newError(ErrMissingChannelOrItems, nil, "Invalid RSS format: missing items")
	}

	channelImage := p.channelImage(feed)

	limit := min(len(feed.Items), p.maxItems)
	items := make([]ParsedItem, 0, limit)
	for _, item := range feed.Items[:limit] {
		if item == nil {
			continue
		}
		items = append(items, p.normalizeItem(item, channelImage))
	}

	return items, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item, channelImage string) ParsedItem {
	normalized := ParsedItem{
		Title:       strings.TrimSpace(item.Title),
		Description: p.summarizer.Description(item.Description, item.Content),
		Link:        strings.TrimSpace(item.Link),
		GUID:        strings.TrimSpace(cmp.Or(item.GUID, item.Link)),
		PubDate:     formatDate(item),
		Author:      p.extractAuthor(item),
		Thumbnail:   cmp.Or(p.itemImage(item), channelImage),
		Categories:  nonNil(item.Categories),
		Tags:        []string{},
	}

	normalized.URL = normalized.Link
	for _, enclosure := range item.Enclosures {
		if enclosure != nil && enclosure.URL != "" {
			normalized.URL = enclosure.URL
			break
		}
	}

	if item.ITunesExt != nil {
		normalized.Duration = strings.TrimSpace(item.ITunesExt.Duration)
	}

	// gofeed appends dc:subject to Categories; those belong to Tags only
	if item.DublinCoreExt != nil {
		normalized.Tags = nonNil(item.DublinCoreExt.Subject)
		normalized.Categories = withoutSubjects(normalized.Categories, normalized.Tags)
	}

	return normalized
}

// formatDate renders the publication date as RFC 3339 in UTC. Missing or
// unparseable dates yield "" rather than an error.
func formatDate(item *gofeed.Item) string {
	var t *time.Time
	switch {
	case item.PublishedParsed != nil:
		t = item.PublishedParsed
	case item.UpdatedParsed != nil:
		t = item.UpdatedParsed
	default:
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func (p *Parser) extractAuthor(item *gofeed.Item) string {
	if item.ITunesExt != nil && strings.TrimSpace(item.ITunesExt.Author) != "" {
		return strings.TrimSpace(item.ITunesExt.Author)
	}
	if item.Author != nil {
		if author := p.formatAuthor(item.Author.Name, item.Author.Email); author != "" {
			return author
		}
	}
	for _, author := range item.Authors {
		if author == nil {
			continue
		}
		if formatted := p.formatAuthor(author.Name, author.Email); formatted != "" {
			return formatted
		}
	}
	if item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0 {
		return strings.TrimSpace(item.DublinCoreExt.Creator[0])
	}
	return ""
}

func (p *Parser) formatAuthor(name, email string) string {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name != "" && email != "" {
		return fmt.Sprintf("%s (%s)", name, email)
	} else if name != "" {
		return name
	}
	return email
}

func (p *Parser) itemImage(item *gofeed.Item) string {
	if item.ITunesExt != nil && item.ITunesExt.Image != "" {
		return item.ITunesExt.Image
	}
	if media, ok := item.Extensions["media"]; ok {
		for _, thumb := range media["thumbnail"] {
			if url := thumb.Attrs["url"]; url != "" {
				return url
			}
		}
		for _, content := range media["content"] {
			if content.Attrs["medium"] == "image" || strings.HasPrefix(content.Attrs["type"], "image/") {
				if url := content.Attrs["url"]; url != "" {
					return url
				}
			}
		}
	}
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	return ""
}

func (p *Parser) channelImage(feed *gofeed.Feed) string {
	if feed.Image != nil && feed.Image.URL != "" {
		return feed.Image.URL
	}
	if feed.ITunesExt != nil && feed.ITunesExt.Image != "" {
		return feed.ITunesExt.Image
	}
	return ""
}

// withoutSubjects drops one trailing occurrence of each subject, so a
// category that also appears as a subject is kept.
func withoutSubjects(categories, subjects []string) []string {
	out := append([]string{}, categories...)
	for _, subject := range subjects {
		for i := len(out) - 1; i >= 0; i-- {
			if out[i] == subject {
				out = append(out[:i], out[i+1:]...)
				break
			}
		}
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
