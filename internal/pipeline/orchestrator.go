package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/talk-less/talkless/internal/bias"
	"github.com/talk-less/talkless/internal/group"
	"github.com/talk-less/talkless/internal/ingest"
	"github.com/talk-less/talkless/internal/store"
	"github.com/talk-less/talkless/internal/summarize"
	"github.com/talk-less/talkless/internal/telemetry"
	"github.com/talk-less/talkless/models"
)

var errEmptyArticleContent = errors.New("empty content after normalization")

// Orchestrator drives one run of the fetch -> detect -> group -> perspective
// -> summarize -> report -> emit pipeline. It owns no retry logic of its
// own; every stage already knows how to fail gracefully, so the
// Orchestrator's job is sequencing, deadline propagation, and RunReport
// assembly.
type Orchestrator struct {
	Ingestor   *ingest.Ingestor
	Detector   *bias.Detector
	Rules      *bias.RuleSet
	Grouper    *group.Grouper
	Summarizer *summarize.Summarizer
	Sink       store.Sink
	Counters   telemetry.Counters
	Logger     *log.Logger

	RunDeadline time.Duration
}

// New wires an Orchestrator from its already-constructed stage components.
func New(
	ingestor *ingest.Ingestor,
	detector *bias.Detector,
	rules *bias.RuleSet,
	grouper *group.Grouper,
	summarizer *summarize.Summarizer,
	sink store.Sink,
	counters telemetry.Counters,
	runDeadline time.Duration,
	logger *log.Logger,
) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		Ingestor:    ingestor,
		Detector:    detector,
		Rules:       rules,
		Grouper:     grouper,
		Summarizer:  summarizer,
		Sink:        sink,
		Counters:    counters,
		RunDeadline: runDeadline,
		Logger:      logger,
	}
}

// Run executes one full pipeline run against the given sources and returns
// the assembled RunReport. Run never returns a non-nil error for
// per-source, per-article, or per-group failures — those land in the
// report. It returns an error only when persisting the report itself
// fails, which the caller treats as a run-level failure.
func (o *Orchestrator) Run(ctx context.Context, runID string, sources []models.Source) (models.RunReport, error) {
	if o.RunDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, time.Now().Add(o.RunDeadline))
		defer cancel()
	}

	report := models.RunReport{
		RunID:          runID,
		StartedAt:      time.Now(),
		BiasAggregate:  map[string]int{},
		PerStage:       map[string]models.StageStats{},
		SourceFailures: map[string]string{},
	}

	// Stage 1: fetch.
	fetchStart := time.Now()
	articles, fetchReports := o.Ingestor.FetchAll(ctx, sources)
	for _, fr := range fetchReports {
		if fr.Err != nil {
			sourceErr := &SourceError{SourceID: fr.SourceID, Err: fr.Err}
			report.SourceFailures[fr.SourceID] = sourceErr.Error()
			report.Partial = true
		}
		if fr.CacheErrors > 0 {
			cacheErr := &CacheError{Op: fr.SourceID, Err: fmt.Errorf("%d cache operation(s) degraded to uncached", fr.CacheErrors)}
			o.Logger.Printf("run %s: %v", runID, cacheErr)
		}
	}

	// Articles that survived fetch but carry no body text cannot be scored,
	// grouped, or cited, so they are excluded here rather than propagated
	// silently into detection and grouping.
	validArticles := make([]models.Article, 0, len(articles))
	var articleFailures int
	for _, a := range articles {
		if strings.TrimSpace(a.Content) == "" {
			o.Logger.Printf("run %s: %v", runID, &ArticleError{ArticleID: a.ID, Err: errEmptyArticleContent})
			articleFailures++
			continue
		}
		validArticles = append(validArticles, a)
	}
	articles = validArticles

	report.PerStage["fetch"] = models.StageStats{Count: len(articles), Failures: articleFailures, Duration: time.Since(fetchStart)}
	report.ArticlesFetched = len(articles)
	if o.Counters.ArticlesFetched != nil {
		o.Counters.ArticlesFetched.Add(ctx, int64(len(articles)))
	}
	if err := o.Sink.PersistArticles(ctx, runID, articles); err != nil {
		o.Logger.Printf("run %s: persist articles: %v", runID, err)
		report.Partial = true
	}

	articlesByID := make(map[string]models.Article, len(articles))
	for _, a := range articles {
		articlesByID[a.ID] = a
	}

	// Stage 2: detect (bias indicators, scored per article before grouping
	// so the transparency report can attach to each article independent of
	// whether it ends up in an eligible group).
	detectStart := time.Now()
	indicatorsByArticle := make(map[string][]models.BiasIndicator, len(articles))
	scores := make(map[string]float64, len(articles))
	for _, a := range articles {
		indicators := o.Detector.Detect(a)
		indicatorsByArticle[a.ID] = indicators
		scores[a.ID] = bias.AggregateScore(indicators, len(a.Content))
	}
	report.PerStage["detect"] = models.StageStats{Count: len(articles), Duration: time.Since(detectStart)}
	transparency := bias.BuildReport(o.Rules, indicatorsByArticle, articlesByID, scores)
	for kind, count := range transparency.ByKind {
		report.BiasAggregate[string(kind)] = count
	}

	// Stage 3: group.
	groupStart := time.Now()
	groups, embedFailures := o.Grouper.GroupArticles(ctx, articles, sources)
	for _, ef := range embedFailures {
		o.Logger.Printf("run %s: %v", runID, &EmbeddingError{BatchSize: ef.BatchSize, Err: ef.Err})
	}
	report.PerStage["group"] = models.StageStats{Count: len(groups), Failures: len(embedFailures), Duration: time.Since(groupStart)}
	report.GroupsFormed = len(groups)
	if o.Counters.GroupsFormed != nil {
		o.Counters.GroupsFormed.Add(ctx, int64(len(groups)))
	}
	if err := o.Sink.PersistGroups(ctx, runID, groups); err != nil {
		o.Logger.Printf("run %s: persist groups: %v", runID, err)
		report.Partial = true
	}

	// Stage 4: perspective metrics are already attached to each Group by
	// GroupArticles; nothing further to compute here.

	// Stage 5: summarize.
	summarizeStart := time.Now()
	results := o.Summarizer.SummarizeAll(ctx, groups, articlesByID)
	var summaries []models.Summary
	var failures int
	for _, r := range results {
		if r.Summary != nil {
			summaries = append(summaries, *r.Summary)
			continue
		}
		failures++
		reason := r.Failure
		switch r.FailureKind {
		case "llm":
			reason = (&LLMError{Kind: r.LLMKind, Err: errors.New(r.Failure)}).Error()
		case "validation":
			reason = (&ValidationError{GroupID: r.GroupID, Reason: r.Failure}).Error()
		}
		report.GroupFailures = append(report.GroupFailures, models.GroupFailure{GroupID: r.GroupID, Reason: reason})
	}
	report.PerStage["summarize"] = models.StageStats{Count: len(summaries), Failures: failures, Duration: time.Since(summarizeStart)}
	report.SummariesOK = len(summaries)
	if o.Counters.SummariesOK != nil {
		o.Counters.SummariesOK.Add(ctx, int64(len(summaries)))
	}
	if o.Counters.SummariesFailed != nil {
		o.Counters.SummariesFailed.Add(ctx, int64(failures))
	}
	if failures > 0 {
		report.Partial = true
	}
	if err := o.Sink.PersistSummaries(ctx, runID, summaries); err != nil {
		o.Logger.Printf("run %s: persist summaries: %v", runID, err)
		report.Partial = true
	}

	// Groups that never became eligible for summarization (too few members
	// or sources) still belong in the report as coverage gaps rather than
	// silent omissions.
	summarizedIDs := make(map[string]bool, len(summaries))
	for _, s := range summaries {
		summarizedIDs[s.GroupID] = true
	}
	failedIDs := make(map[string]bool, len(report.GroupFailures))
	for _, f := range report.GroupFailures {
		failedIDs[f.GroupID] = true
	}
	for _, g := range groups {
		if !summarizedIDs[g.ID] && !failedIDs[g.ID] {
			report.GroupFailures = append(report.GroupFailures, models.GroupFailure{
				GroupID: g.ID,
				Reason:  "not eligible for summarization",
			})
		}
	}
	sort.Slice(report.GroupFailures, func(i, j int) bool { return report.GroupFailures[i].GroupID < report.GroupFailures[j].GroupID })

	report.FinishedAt = time.Now()
	report.DurationMS = report.FinishedAt.Sub(report.StartedAt).Milliseconds()

	if err := o.Sink.PersistRunReport(ctx, report); err != nil {
		return report, fmt.Errorf("persist run report: %w", err)
	}
	return report, nil
}
