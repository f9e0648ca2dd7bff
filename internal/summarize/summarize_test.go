package summarize

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/talk-less/talkless/models"
)

var errBoom = errors.New("provider unavailable")

type fakeCompleter struct {
	responses []string
	err       error
	calls     int
}

func (f *fakeCompleter) Complete(ctx context.Context, model string, temperature float64, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	return f.responses[idx], nil
}

func testGroupAndArticles() (models.Group, map[string]models.Article) {
	articles := map[string]models.Article{
		"a1": {ID: "a1", SourceID: "s1", SourceName: "Alpha News", Title: "story", Content: "the quick brown fox jumps over the lazy dog repeatedly"},
		"a2": {ID: "a2", SourceID: "s2", SourceName: "Beta Times", Title: "story", Content: "a different account of the same event happened yesterday"},
	}
	g := models.Group{
		ID:               "g1",
		MemberArticleIDs: []string{"a1", "a2"},
		SourceIDs:        []string{"s1", "s2"},
	}
	return g, articles
}

func TestSummarizeAll_AcceptsValidSummaryOnFirstTry(t *testing.T) {
	g, articles := testGroupAndArticles()
	text := "This is a well formed summary that stays within bounds and cites sources properly. [Source: Alpha News] [Source: Beta Times]"
	completer := &fakeCompleter{responses: []string{text}}

	s := &Summarizer{
		Completer:                completer,
		Model:                    "test-model",
		Temperature:              0.2,
		MaxTemperature:           0.3,
		MinSummaryLength:         10,
		MaxSummaryLength:         1000,
		MaxRetries:               2,
		RequiredCitationCoverage: 2,
		MinCopiedSpan:            10,
		MinDistinctSources:       2,
		MinArticlesPerGroup:      2,
		MaxConcurrentSummaries:   2,
		RequestsPerMinute:        6000,
	}

	results := s.SummarizeAll(context.Background(), []models.Group{g}, articles)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Summary == nil {
		t.Fatalf("expected an accepted summary, got failure %q", results[0].Failure)
	}
	if results[0].Summary.Confidence != models.ConfidenceHigh {
		t.Fatalf("expected high confidence on first-try accept, got %s", results[0].Summary.Confidence)
	}
}

func TestSummarizeAll_SkipsIneligibleGroup(t *testing.T) {
	g := models.Group{ID: "g2", MemberArticleIDs: []string{"a1"}, SourceIDs: []string{"s1"}}
	s := &Summarizer{Completer: &fakeCompleter{responses: []string{"x"}}, MaxConcurrentSummaries: 1, RequestsPerMinute: 60}
	results := s.SummarizeAll(context.Background(), []models.Group{g}, map[string]models.Article{})
	if len(results) != 0 {
		t.Fatalf("expected ineligible group to produce no result, got %d", len(results))
	}
}

func TestValidate_RejectsCopiedSpan(t *testing.T) {
	g, articles := testGroupAndArticles()
	text := "the quick brown fox jumps over the lazy dog repeatedly [Source: Alpha News] [Source: Beta Times]"
	result := Validate(text, g, articles, 10, 1000, 2, 10, 0.2, 0.3)
	if result.Accepted {
		t.Fatalf("expected copied span to be rejected")
	}
}

func TestValidate_RejectsInsufficientCitationCoverage(t *testing.T) {
	g, articles := testGroupAndArticles()
	text := "A summary with only one citation present in the body text here. [Source: Alpha News]"
	result := Validate(text, g, articles, 10, 1000, 2, 10, 0.2, 0.3)
	if result.Accepted {
		t.Fatalf("expected insufficient citation coverage to be rejected")
	}
}

func TestExtractCitations_MatchesCaseInsensitively(t *testing.T) {
	names := map[string]string{"Alpha News": "a1"}
	got := ExtractCitations("some text [Source: alpha news] more text", names)
	if got["Alpha News"] != "a1" {
		t.Fatalf("expected case-insensitive match, got %v", got)
	}
}

func TestBuildPrompt_IncludesPriorViolation(t *testing.T) {
	g, articles := testGroupAndArticles()
	prompt, err := BuildPrompt(g, articles, 10, 1000, 50, "copied a phrase")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !contains(prompt, "copied a phrase") {
		t.Fatalf("expected prompt to mention the prior violation")
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}

// sequenceCompleter returns steps[i] on the i-th call, clamping to the last
// step once exhausted, letting a test script a rejection or error on an
// early attempt followed by a clean response on retry.
type sequenceCompleter struct {
	steps []completerStep
	calls int
}

type completerStep struct {
	text string
	err  error
}

func (f *sequenceCompleter) Complete(context.Context, string, float64, string) (string, error) {
	idx := f.calls
	if idx >= len(f.steps) {
		idx = len(f.steps) - 1
	}
	f.calls++
	step := f.steps[idx]
	return step.text, step.err
}

func TestSummarizeGroup_RetriesOnceAfterCopiedSpanThenAccepts(t *testing.T) {
	g, articles := testGroupAndArticles()
	copied := "the quick brown fox jumps over the lazy dog repeatedly [Source: Alpha News] [Source: Beta Times]"
	clean := "This is a well formed summary that stays within bounds and cites sources properly. [Source: Alpha News] [Source: Beta Times]"

	completer := &sequenceCompleter{steps: []completerStep{{text: copied}, {text: clean}}}
	s := &Summarizer{
		Completer:                completer,
		Model:                    "test-model",
		Temperature:              0.2,
		MaxTemperature:           0.3,
		MinSummaryLength:         10,
		MaxSummaryLength:         1000,
		MaxRetries:               2,
		RequiredCitationCoverage: 2,
		MinCopiedSpan:            10,
		MinDistinctSources:       2,
		MinArticlesPerGroup:      2,
		MaxConcurrentSummaries:   1,
		RequestsPerMinute:        6000,
	}

	results := s.SummarizeAll(context.Background(), []models.Group{g}, articles)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Summary == nil {
		t.Fatalf("expected the retried attempt to be accepted, got failure %q", results[0].Failure)
	}
	if results[0].Summary.Retries != 1 {
		t.Fatalf("expected exactly 1 retry, got %d", results[0].Summary.Retries)
	}
	if results[0].Summary.Validation != models.ValidationAccepted {
		t.Fatalf("expected validation accepted, got %s", results[0].Summary.Validation)
	}
}

func TestSummarizeGroup_QuotaErrorSkipsGroupWithoutRetrying(t *testing.T) {
	g, articles := testGroupAndArticles()
	quotaErr := &CompletionError{Kind: ErrorKindQuota, Err: errBoom}

	completer := &sequenceCompleter{steps: []completerStep{{err: quotaErr}}}
	s := &Summarizer{
		Completer:                completer,
		Model:                    "test-model",
		Temperature:              0.2,
		MaxTemperature:           0.3,
		MinSummaryLength:         10,
		MaxSummaryLength:         1000,
		MaxRetries:               3,
		RequiredCitationCoverage: 2,
		MinCopiedSpan:            10,
		MinDistinctSources:       2,
		MinArticlesPerGroup:      2,
		MaxConcurrentSummaries:   1,
		RequestsPerMinute:        6000,
	}

	results := s.SummarizeAll(context.Background(), []models.Group{g}, articles)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Summary != nil {
		t.Fatalf("expected quota error to skip the group, got a summary")
	}
	if completer.calls != 1 {
		t.Fatalf("expected quota error to skip retries entirely, got %d calls", completer.calls)
	}
	if !contains(results[0].Failure, "quota") {
		t.Fatalf("expected failure reason to mention quota, got %q", results[0].Failure)
	}
}

func TestSummarizer_UsesTimeoutContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	time.Sleep(2 * time.Millisecond)

	g, articles := testGroupAndArticles()
	s := &Summarizer{Completer: &fakeCompleter{responses: []string{"x"}}, MaxConcurrentSummaries: 1, RequestsPerMinute: 60, MinDistinctSources: 2, MinArticlesPerGroup: 2}
	results := s.SummarizeAll(ctx, []models.Group{g}, articles)
	if len(results) != 1 || results[0].Summary != nil {
		t.Fatalf("expected the expired context to prevent a successful summary, got %+v", results)
	}
}
