package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/talk-less/talkless/models"
)

// RSSFetcher pulls entries from an RSS/Atom feed and normalizes each entry's
// body to plain text.
type RSSFetcher struct {
	parser *gofeed.Parser
	strict *bluemonday.Policy

	// StrictDates, when true, skips entries missing both PublishedParsed
	// and UpdatedParsed instead of falling back to the fetch time.
	StrictDates bool
}

// NewRSSFetcher returns an RSSFetcher backed by a shared gofeed parser and a
// singleton strict sanitization policy.
func NewRSSFetcher(strictDates bool) *RSSFetcher {
	return &RSSFetcher{
		parser:      gofeed.NewParser(),
		strict:      bluemonday.StrictPolicy(),
		StrictDates: strictDates,
	}
}

func (f *RSSFetcher) Fetch(ctx context.Context, source models.Source) ([]models.Article, error) {
	feed, err := f.parser.ParseURLWithContext(source.Endpoint, ctx)
	if err != nil {
		return nil, fmt.Errorf("ingest: parsing feed for %s: %w", source.Name, err)
	}

	now := time.Now()
	articles := make([]models.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		published, ok := resolvePublished(item, now, f.StrictDates)
		if !ok {
			continue
		}

		body := item.Content
		if body == "" {
			body = item.Description
		}

		title := strings.TrimSpace(item.Title)
		articles = append(articles, models.Article{
			ID:          resolveArticleID(source.ID, item.Link, title, published),
			SourceID:    source.ID,
			SourceName:  source.Name,
			Title:       title,
			URL:         item.Link,
			Author:      authorOf(item),
			PublishedAt: published,
			Content:     f.plainText(body, item.Link),
			FetchedAt:   now,
		})
	}
	return articles, nil
}

// plainText extracts readable body text from an HTML fragment. It first
// tries go-readability, which understands full documents and article
// boundary heuristics; when that fails (most feed entries are body
// fragments, not full documents) it falls back to bluemonday's strict
// policy, which just strips every tag.
func (f *RSSFetcher) plainText(html, sourceURL string) string {
	html = strings.TrimSpace(html)
	if html == "" {
		return ""
	}
	if art, err := readability.FromReader(strings.NewReader(html), mustParseURL(sourceURL)); err == nil {
		if text := strings.TrimSpace(art.TextContent); text != "" {
			return collapseParagraphs(text)
		}
	}
	return collapseParagraphs(strings.TrimSpace(f.strict.Sanitize(html)))
}

// resolvePublished picks an entry's publish time, falling back to
// UpdatedParsed and then to now unless strict is set, in which case an
// entry missing both parsed dates is skipped entirely.
func resolvePublished(item *gofeed.Item, now time.Time, strict bool) (time.Time, bool) {
	switch {
	case item.PublishedParsed != nil:
		return *item.PublishedParsed, true
	case item.UpdatedParsed != nil:
		return *item.UpdatedParsed, true
	case strict:
		return time.Time{}, false
	default:
		return now, true
	}
}

func authorOf(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	if len(item.Authors) > 0 {
		return item.Authors[0].Name
	}
	return ""
}

// collapseParagraphs normalizes whitespace within each paragraph while
// keeping paragraph boundaries intact: runs of blank lines become a single
// "\n\n" separator, and intra-paragraph runs of spaces/tabs/newlines
// collapse to a single space.
func collapseParagraphs(s string) string {
	paragraphs := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n\n")
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}
