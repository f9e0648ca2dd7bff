package ingest

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// articleID derives a deterministic id for an article from its source and
// canonical URL, so the same story fetched twice in the same or a later run
// always maps to the same id. When no canonical URL is available it returns
// "" and leaves the fallback to resolveArticleID.
func articleID(sourceID, url string) string {
	url = strings.TrimSpace(url)
	if url == "" {
		return ""
	}
	h := sha256.Sum256([]byte(sourceID + "|" + url))
	return fmt.Sprintf("%x", h[:16])
}

// articleIDFallback derives an id from the (source, title, published)
// tuple, used when a fetched entry has no canonical URL.
func articleIDFallback(sourceID, title string, published time.Time) string {
	h := sha256.Sum256([]byte(sourceID + "|" + strings.TrimSpace(title) + "|" + published.UTC().Format(time.RFC3339)))
	return fmt.Sprintf("%x", h[:16])
}

// resolveArticleID picks articleID when url is present and falls back to
// articleIDFallback otherwise.
func resolveArticleID(sourceID, url, title string, published time.Time) string {
	if id := articleID(sourceID, url); id != "" {
		return id
	}
	return articleIDFallback(sourceID, title, published)
}
