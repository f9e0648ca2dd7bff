package summarize

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/talk-less/talkless/models"
)

// Summarizer produces one validated Summary per eligible Group.
type Summarizer struct {
	Completer Completer
	Logger    *log.Logger

	Model                    string
	Temperature              float64
	MaxTemperature           float64
	MinSummaryLength         int
	MaxSummaryLength         int
	MaxRetries               int
	RequiredCitationCoverage int
	MinCopiedSpan            int
	MinDistinctSources       int
	MinArticlesPerGroup      int
	PerArticleTokenBudget    int
	MaxConcurrentSummaries   int
	RequestsPerMinute        int

	limiter *rate.Limiter
	once    sync.Once
}

// Result pairs a Group with its outcome: either a Summary or a failure
// reason, mirroring the Orchestrator's need to record group failures.
type Result struct {
	GroupID string
	Summary *models.Summary
	Failure string

	// FailureKind classifies Failure for callers that want to wrap it in a
	// typed error: "llm" for a Completer failure (see LLMKind for which
	// kind), "validation" for a rejected candidate summary, "config" for a
	// prompt-construction failure, or "" when Summary is non-nil or when
	// waiting on the provider request-rate limiter failed (context done).
	FailureKind string
	LLMKind     string
}

// SummarizeAll summarizes every eligible group concurrently, subject to
// MaxConcurrentSummaries in flight and RequestsPerMinute against the
// provider.
func (s *Summarizer) SummarizeAll(ctx context.Context, groups []models.Group, articlesByID map[string]models.Article) []Result {
	s.once.Do(s.initLimiter)

	sem := make(chan struct{}, maxInt(1, s.MaxConcurrentSummaries))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var results []Result

	for _, g := range groups {
		if !s.eligible(g) {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(group models.Group) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := s.limiter.Wait(ctx); err != nil {
				mu.Lock()
				results = append(results, Result{GroupID: group.ID, Failure: err.Error()})
				mu.Unlock()
				return
			}

			res := s.summarizeGroup(ctx, group, articlesByID)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}(g)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].GroupID < results[j].GroupID })
	return results
}

func (s *Summarizer) initLimiter() {
	rpm := s.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	s.limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1)
}

func (s *Summarizer) eligible(g models.Group) bool {
	minMembers := s.MinArticlesPerGroup
	if minMembers <= 0 {
		minMembers = 2
	}
	minSources := s.MinDistinctSources
	if minSources <= 0 {
		minSources = 2
	}
	return len(g.MemberArticleIDs) >= minMembers && len(g.SourceIDs) >= minSources
}

func (s *Summarizer) summarizeGroup(ctx context.Context, group models.Group, articlesByID map[string]models.Article) Result {
	priorViolation := ""
	failureKind := ""
	llmKind := ""
	retries := 0

	for attempt := 0; attempt <= s.MaxRetries; attempt++ {
		prompt, err := BuildPrompt(group, articlesByID, s.MinSummaryLength, s.MaxSummaryLength, s.PerArticleTokenBudget, priorViolation)
		if err != nil {
			return Result{GroupID: group.ID, Failure: "building prompt: " + err.Error(), FailureKind: "config"}
		}

		text, err := s.completeWithBackoff(ctx, prompt)
		if err != nil {
			if ce, ok := AsCompletionError(err); ok && (ce.Kind == ErrorKindPermanent || ce.Kind == ErrorKindQuota) {
				return Result{GroupID: group.ID, Failure: err.Error(), FailureKind: "llm", LLMKind: string(ce.Kind)}
			}
			priorViolation = "the LLM provider failed: " + err.Error()
			failureKind = "llm"
			llmKind = string(ErrorKindTransient)
			retries++
			continue
		}

		result := Validate(text, group, articlesByID, s.MinSummaryLength, s.MaxSummaryLength, s.RequiredCitationCoverage, s.MinCopiedSpan, s.Temperature, s.MaxTemperature)
		if result.Accepted {
			sourceNames := sourceNameMap(group, articlesByID)
			citations := ExtractCitations(text, sourceNames)
			coverage := citationCoverageRatio(citations, sourceNames)
			return Result{GroupID: group.ID, Summary: &models.Summary{
				ID:            group.ID + ":" + PromptVersion,
				GroupID:       group.ID,
				Text:          text,
				Citations:     citations,
				Model:         s.Model,
				Temperature:   s.Temperature,
				PromptVersion: PromptVersion,
				Retries:       retries,
				Confidence:    confidenceFromRetries(retries, s.MaxRetries, coverage),
				Validation:    models.ValidationAccepted,
				CreatedAt:     time.Now(),
			}}
		}

		priorViolation = result.Reason
		failureKind = "validation"
		llmKind = ""
		retries++
	}

	return Result{GroupID: group.ID, Failure: priorViolation, FailureKind: failureKind, LLMKind: llmKind}
}

// completeWithBackoff retries transient errors with exponential backoff,
// matching the executor's checkpoint-retry discipline; permanent and quota
// errors return immediately without spending a retry.
func (s *Summarizer) completeWithBackoff(ctx context.Context, prompt string) (string, error) {
	var text string
	op := func() error {
		t, err := s.Completer.Complete(ctx, s.Model, s.Temperature, prompt)
		if err != nil {
			if ce, ok := AsCompletionError(err); ok && (ce.Kind == ErrorKindPermanent || ce.Kind == ErrorKindQuota) {
				return backoff.Permanent(err)
			}
			return err
		}
		text = t
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.MaxRetries)), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return "", err
	}
	return text, nil
}

func sourceNameMap(group models.Group, articlesByID map[string]models.Article) map[string]string {
	m := map[string]string{}
	for _, id := range group.MemberArticleIDs {
		if a, ok := articlesByID[id]; ok {
			m[a.SourceName] = id
		}
	}
	return m
}

// citationCoverageRatio reports the fraction of a group's member sources
// that landed a citation in the accepted summary, in [0, 1].
func citationCoverageRatio(citations, sourceNames map[string]string) float64 {
	if len(sourceNames) == 0 {
		return 0
	}
	return float64(len(citations)) / float64(len(sourceNames))
}

// confidenceFromRetries derives a Summary's Confidence from validation
// retries and citation coverage: zero retries with full source coverage is
// high confidence, exhausting the retry budget or covering fewer than half
// of the sources is low confidence, and everything else is medium.
func confidenceFromRetries(retries, maxRetries int, coverageRatio float64) models.Confidence {
	switch {
	case retries == 0 && coverageRatio >= 1:
		return models.ConfidenceHigh
	case maxRetries > 0 && retries >= maxRetries:
		return models.ConfidenceLow
	case coverageRatio < 0.5:
		return models.ConfidenceLow
	default:
		return models.ConfidenceMedium
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
