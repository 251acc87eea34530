package feed

import (
	"log/slog"
	"strings"

	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

const MaxDescriptionLength = 1000

// Summarizer turns feed HTML into bounded plain text.
type Summarizer struct {
	maxLength int
}

func NewSummarizer(maxLength int) *Summarizer {
	if maxLength <= 0 {
		maxLength = MaxDescriptionLength
	}
	return &Summarizer{maxLength: maxLength}
}

// Description summarizes an item description. When the feed leaves the
// description empty the full content is summarized instead.
func (s *Summarizer) Description(description, content string) string {
	if text := StripHTML(description); text != "" {
		return Truncate(text, s.maxLength)
	}
	if strings.TrimSpace(content) == "" {
		return ""
	}
	return Truncate(s.fromContent(content), s.maxLength)
}

func (s *Summarizer) fromContent(content string) string {
	doc := "<html><body><article>" + content + "</article></body></html>"
	article, err := readability.FromReader(strings.NewReader(doc), nil)
	if err != nil {
		slog.Debug("Readability extraction failed, stripping markup", "error", err)
		return StripHTML(content)
	}

	text := collapseWhitespace(article.TextContent)
	if text == "" {
		return StripHTML(content)
	}
	return text
}

// StripHTML returns the text content of an HTML fragment with runs of
// whitespace collapsed. Script and style bodies are dropped.
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return collapseWhitespace(fragment)
	}

	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	skip := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return collapseWhitespace(b.String())
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script", "style":
				skip++
			case "br", "p", "div", "li":
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script", "style":
				if skip > 0 {
					skip--
				}
			case "p", "div", "li":
				b.WriteByte(' ')
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}
}

// Truncate cuts s to at most max runes after NFC normalization.
func Truncate(s string, max int) string {
	s = norm.NFC.String(s)
	if max <= 0 {
		return s
	}

	count := 0
	for i := range s {
		if count == max {
			return strings.TrimSpace(s[:i])
		}
		count++
	}
	return s
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
