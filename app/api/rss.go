package api

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/lysyi3m/content-hub/app/database"
)

// RSSGenerator renders the public content feed as RSS 2.0
type RSSGenerator struct {
	baseURL string
}

func NewRSSGenerator(baseURL string) *RSSGenerator {
	return &RSSGenerator{baseURL: strings.TrimRight(baseURL, "/")}
}

// Generate writes the channel for the given content type filter
func (g *RSSGenerator) Generate(contentType string, items []database.ContentItem) string {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	title := "Content Hub"
	if contentType != "" && contentType != "all" {
		title = fmt.Sprintf("Content Hub - %s", contentType)
	}
	g.writeElement(&buf, "title", title, 4)
	g.writeElement(&buf, "link", g.baseURL+"/", 4)
	g.writeElement(&buf, "description", "Latest videos, articles and podcast episodes", 4)

	if g.baseURL != "" {
		buf.WriteString("    <atom:link href=\"")
		xml.EscapeText(&buf, []byte(g.selfLink(contentType)))
		buf.WriteString("\" rel=\"self\" type=\"application/rss+xml\" />\n")
	}

	g.writeElement(&buf, "lastBuildDate", time.Now().Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", "Content-Hub/1.0", 4)

	for _, item := range items {
		g.writeItem(&buf, item)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String()
}

func (g *RSSGenerator) selfLink(contentType string) string {
	link := g.baseURL + "/api/content/rss"
	if contentType != "" && contentType != "all" {
		link += "?type=" + contentType
	}
	return link
}

func (g *RSSGenerator) writeItem(buf *bytes.Buffer, item database.ContentItem) {
	buf.WriteString("    <item>\n")

	guid := item.ExternalID
	if guid == "" {
		guid = item.ID
	}
	fmt.Fprintf(buf, "      <guid isPermaLink=\"%t\">", isURL(guid))
	xml.EscapeText(buf, []byte(guid))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", item.Title, 6)
	g.writeElement(buf, "link", item.ContentURL, 6)

	// Summaries hidden by the source arrive blank
	g.writeElement(buf, "description", item.Description, 6)

	if !item.PublishedAt.IsZero() {
		g.writeElement(buf, "pubDate", item.PublishedAt.Format(time.RFC1123Z), 6)
	}

	g.writeElement(buf, "category", item.Type, 6)
	g.writeElement(buf, "source", item.Source, 6)

	if item.ThumbnailURL != "" {
		buf.WriteString("      <enclosure url=\"")
		xml.EscapeText(buf, []byte(item.ThumbnailURL))
		buf.WriteString("\" type=\"image/jpeg\" length=\"0\" />\n")
	}

	buf.WriteString("    </item>\n")
}

func (g *RSSGenerator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	buf.WriteString(strings.Repeat(" ", indent))
	buf.WriteString("<" + tag + ">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</" + tag + ">\n")
}

// isURL decides the guid isPermaLink attribute
func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
