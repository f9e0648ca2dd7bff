package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/talk-less/talkless/models"
)

// APIFetcher retrieves articles from a JSON HTTP endpoint using a
// per-source field-mapping table, since API sources rarely agree on field
// names for title/url/content/published_at/author.
type APIFetcher struct {
	Client *http.Client
}

// NewAPIFetcher returns an APIFetcher with a bounded-timeout HTTP client.
func NewAPIFetcher() *APIFetcher {
	return &APIFetcher{Client: &http.Client{Timeout: 20 * time.Second}}
}

func (f *APIFetcher) Fetch(ctx context.Context, source models.Source) ([]models.Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("ingest: building request for %s: %w", source.Name, err)
	}
	if source.CredentialEnv != "" {
		if key := lookupCredential(source.CredentialEnv); key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ingest: fetching %s: %w", source.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ingest: %s returned status %s", source.Name, resp.Status)
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("ingest: decoding response from %s: %w", source.Name, err)
	}

	items := extractResults(raw, source.ResultsField)
	now := time.Now()
	articles := make([]models.Article, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		url := stringField(m, source.FieldMap["url"], "url")
		title := strings.TrimSpace(stringField(m, source.FieldMap["title"], "title"))
		if url == "" && title == "" {
			continue
		}
		published := timeField(m, source.FieldMap["published_at"], "published_at", now)
		articles = append(articles, models.Article{
			ID:          resolveArticleID(source.ID, url, title, published),
			SourceID:    source.ID,
			SourceName:  source.Name,
			Title:       title,
			URL:         url,
			Author:      stringField(m, source.FieldMap["author"], "author"),
			PublishedAt: published,
			Content:     strings.TrimSpace(stringField(m, source.FieldMap["content"], "content")),
			FetchedAt:   now,
		})
	}
	return articles, nil
}

// extractResults finds the array of result items in raw, either at the
// configured resultsField or, if unset, at a small set of common keys.
func extractResults(raw map[string]any, resultsField string) []any {
	keys := []string{"articles", "results", "items", "data"}
	if resultsField != "" {
		keys = append([]string{resultsField}, keys...)
	}
	for _, k := range keys {
		if v, ok := raw[k].([]any); ok {
			return v
		}
	}
	return nil
}

func stringField(m map[string]any, mapped, fallback string) string {
	key := mapped
	if key == "" {
		key = fallback
	}
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func timeField(m map[string]any, mapped, fallback string, def time.Time) time.Time {
	s := stringField(m, mapped, fallback)
	if s == "" {
		return def
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return def
}
