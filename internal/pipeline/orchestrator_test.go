package pipeline

import (
	"context"
	"fmt"
	"log"
	"testing"
	"time"

	"github.com/talk-less/talkless/config"
	"github.com/talk-less/talkless/internal/bias"
	"github.com/talk-less/talkless/internal/cache"
	"github.com/talk-less/talkless/internal/group"
	"github.com/talk-less/talkless/internal/ingest"
	"github.com/talk-less/talkless/internal/ratelimit"
	"github.com/talk-less/talkless/internal/store"
	"github.com/talk-less/talkless/internal/summarize"
	"github.com/talk-less/talkless/internal/telemetry"
	"github.com/talk-less/talkless/models"
)

type fakeFetcher struct {
	articles []models.Article
}

func (f *fakeFetcher) Fetch(_ context.Context, source models.Source) ([]models.Article, error) {
	var out []models.Article
	for _, a := range f.articles {
		if a.SourceID == source.ID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeCompleter struct{}

func (f *fakeCompleter) Complete(_ context.Context, _ string, _ float64, prompt string) (string, error) {
	return "Widespread flooding hit the region overnight, displacing thousands. " +
		"[Source: Alpha News] Officials opened emergency shelters within hours. " +
		"[Source: Beta Wire] Recovery crews were dispatched at first light to the hardest hit districts.", nil
}

func testSources() []models.Source {
	return []models.Source{
		{ID: "s1", Name: "Alpha News", Kind: models.SourceKindRSS, Enabled: true, RequestsPerMinute: 60},
		{ID: "s2", Name: "Beta Wire", Kind: models.SourceKindRSS, Enabled: true, RequestsPerMinute: 60},
	}
}

func testArticles(now time.Time) []models.Article {
	body := "Flooding overwhelmed the riverside districts this week as officials scrambled to respond to the crisis."
	return []models.Article{
		{ID: "a1", SourceID: "s1", SourceName: "Alpha News", Title: "Flooding hits region", URL: "https://a/1", Content: body, PublishedAt: now, FetchedAt: now},
		{ID: "a2", SourceID: "s2", SourceName: "Beta Wire", Title: "Flooding hits region", URL: "https://b/1", Content: body, PublishedAt: now, FetchedAt: now},
	}
}

func newTestOrchestrator(t *testing.T, articles []models.Article) *Orchestrator {
	t.Helper()
	logger := log.Default()

	fetcher := &fakeFetcher{articles: articles}
	ingestor := ingest.New(ratelimit.New(60), cache.NewMemoryCache(), 7*24*time.Hour, 30*time.Minute, 250*time.Millisecond, 4, false, logger)
	ingestor.RSS = fetcher
	ingestor.API = fetcher

	rules, err := bias.Compile(config.BiasRulesConfig{MinConfidence: "low", PerArticleThreshold: 100})
	if err != nil {
		t.Fatalf("compile rules: %v", err)
	}
	detector := bias.NewDetector(rules)

	grouper := group.New(group.NewLocalHashEmbedder(64), 0.5, 2, 12, 16, 256, logger)

	summarizer := &summarize.Summarizer{
		Completer:                &fakeCompleter{},
		Logger:                   logger,
		Model:                    "test-model",
		Temperature:              0.3,
		MaxTemperature:           0.3,
		MinSummaryLength:         20,
		MaxSummaryLength:         2000,
		MaxRetries:               1,
		RequiredCitationCoverage: 1,
		MinCopiedSpan:            10,
		MinDistinctSources:       2,
		MinArticlesPerGroup:      2,
		PerArticleTokenBudget:    400,
		MaxConcurrentSummaries:   2,
		RequestsPerMinute:        600,
	}

	sink := store.NewLogSink(logger)
	counters := telemetry.Counters{}

	return New(ingestor, detector, rules, grouper, summarizer, sink, counters, time.Minute, logger)
}

func TestOrchestrator_Run_ProducesReportWithGroupAndSummary(t *testing.T) {
	o := newTestOrchestrator(t, testArticles(time.Now()))
	report, err := o.Run(context.Background(), "run-1", testSources())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.ArticlesFetched != 2 {
		t.Fatalf("expected 2 articles fetched, got %d", report.ArticlesFetched)
	}
	if report.GroupsFormed != 1 {
		t.Fatalf("expected 1 group formed, got %d", report.GroupsFormed)
	}
	if report.SummariesOK != 1 {
		t.Fatalf("expected 1 summary generated, got %d", report.SummariesOK)
	}
	if report.Partial {
		t.Fatalf("expected a clean run to not be partial")
	}
}

func TestOrchestrator_Run_RecordsSourceFailureWithoutAbortingRun(t *testing.T) {
	logger := log.Default()
	failing := &erroringFetcher{}
	ingestor := ingest.New(ratelimit.New(60), cache.NewMemoryCache(), 7*24*time.Hour, 30*time.Minute, 250*time.Millisecond, 4, false, logger)
	ingestor.RSS = failing
	ingestor.API = failing

	rules, err := bias.Compile(config.BiasRulesConfig{MinConfidence: "low", PerArticleThreshold: 100})
	if err != nil {
		t.Fatalf("compile rules: %v", err)
	}
	o := &Orchestrator{
		Ingestor:   ingestor,
		Detector:   bias.NewDetector(rules),
		Rules:      rules,
		Grouper:    group.New(group.NewLocalHashEmbedder(64), 0.5, 2, 12, 16, 256, logger),
		Summarizer: &summarize.Summarizer{Completer: &fakeCompleter{}, MaxConcurrentSummaries: 1, RequestsPerMinute: 600, MinDistinctSources: 2, MinArticlesPerGroup: 2, MinSummaryLength: 20, MaxSummaryLength: 2000, MaxTemperature: 1},
		Sink:       store.NewLogSink(logger),
		Logger:     logger,
	}

	report, err := o.Run(context.Background(), "run-2", testSources())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Partial {
		t.Fatalf("expected a partial run when every source fails")
	}
	if len(report.SourceFailures) != 2 {
		t.Fatalf("expected 2 source failures, got %v", report.SourceFailures)
	}
}

type erroringFetcher struct{}

func (erroringFetcher) Fetch(context.Context, models.Source) ([]models.Article, error) {
	return nil, errBoom
}

var errBoom = fmt.Errorf("fetch failed")
