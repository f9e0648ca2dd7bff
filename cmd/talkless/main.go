// Command talkless runs the Talk-Less processing core: one invocation
// fetches configured sources, detects bias indicators, groups articles into
// stories, summarizes eligible groups, and emits a RunReport, mirroring the
// teacher's cmd/root.go + cmd/serve.go cobra layout.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/talk-less/talkless/config"
	"github.com/talk-less/talkless/internal/bias"
	"github.com/talk-less/talkless/internal/cache"
	"github.com/talk-less/talkless/internal/group"
	"github.com/talk-less/talkless/internal/ingest"
	"github.com/talk-less/talkless/internal/pipeline"
	"github.com/talk-less/talkless/internal/ratelimit"
	"github.com/talk-less/talkless/internal/store"
	"github.com/talk-less/talkless/internal/summarize"
	"github.com/talk-less/talkless/internal/telemetry"
)

func main() {
	root := &cobra.Command{Use: "talkless"}
	root.AddCommand(runCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCMD() *cobra.Command {
	var cfgPath string
	var once bool
	var scheduled bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the Talk-Less pipeline once or on a schedule",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("fatal configuration error: %v", r)
				}
			}()

			cfg := config.Load(cfgPath)
			logger := log.New(os.Stdout, "[talkless] ", log.LstdFlags)

			components, closeFn, err := build(cfg, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			if once || cfg.General.ScheduleCron == "" || !scheduled {
				return runOnce(cmd.Context(), components, cfg, logger)
			}
			return runScheduled(cmd.Context(), components, cfg, logger)
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "directory holding sources.yaml/pipeline.yaml/bias_rules.yaml")
	cmd.Flags().BoolVar(&once, "once", false, "run a single pass and exit, ignoring --scheduled")
	cmd.Flags().BoolVar(&scheduled, "scheduled", false, "loop forever, running on general.schedule_cron")

	return cmd
}

// runtimeComponents bundles the constructed stage components an Orchestrator
// needs for one or many runs.
type runtimeComponents struct {
	orchestrator *pipeline.Orchestrator
	telemetry    *telemetry.Telemetry
}

func build(cfg *config.Config, logger *log.Logger) (*runtimeComponents, func(), error) {
	var c cache.Cache
	if cfg.Cache.Endpoint != "" {
		c = cache.NewRedisCache(redis.NewClient(&redis.Options{Addr: cfg.Cache.Endpoint}))
	} else {
		c = cache.NewMemoryCache()
	}

	limiter := ratelimit.New(30)
	ingestor := ingest.New(limiter, c, cfg.General.MaxArticleAge, cfg.Cache.TTL, cfg.Cache.OpTimeout, cfg.General.MaxConcurrentFetch, cfg.General.StrictRSSDates, logger)

	rules, err := bias.Compile(cfg.BiasRules)
	if err != nil {
		return nil, nil, &pipeline.ConfigError{Err: err}
	}
	detector := bias.NewDetector(rules)

	embedder := embedderFor(cfg.Grouping)
	grouper := group.New(
		embedder,
		cfg.Grouping.SimilarityThreshold,
		cfg.Grouping.MinArticlesPerGroup,
		cfg.Grouping.MaxArticlesPerGroup,
		cfg.Grouping.EmbeddingBatchSize,
		cfg.Grouping.FirstNTokensForEmbed,
		logger,
	)

	completer, err := completerFor(cfg.Summarization)
	if err != nil {
		return nil, nil, &pipeline.ConfigError{Err: err}
	}
	summarizer := &summarize.Summarizer{
		Completer:                completer,
		Logger:                   logger,
		Model:                    cfg.Summarization.Model,
		Temperature:              cfg.Summarization.Temperature,
		MaxTemperature:           cfg.Summarization.MaxTemperature,
		MinSummaryLength:         cfg.Summarization.MinSummaryLength,
		MaxSummaryLength:         cfg.Summarization.MaxSummaryLength,
		MaxRetries:               cfg.Summarization.MaxRetries,
		RequiredCitationCoverage: cfg.Summarization.RequiredCitationCoverage,
		MinCopiedSpan:            cfg.Summarization.MinCopiedSpan,
		MinDistinctSources:       cfg.Summarization.MinDistinctSources,
		MinArticlesPerGroup:      cfg.Grouping.MinArticlesPerGroup,
		PerArticleTokenBudget:    cfg.Summarization.PerArticleTokenBudget,
		MaxConcurrentSummaries:   cfg.Summarization.MaxConcurrentSummaries,
		RequestsPerMinute:        cfg.Summarization.RequestsPerMinute,
	}

	t, meter, err := telemetry.Setup(cfg.Telemetry)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry setup: %w", err)
	}
	counters, err := telemetry.NewCounters(meter)
	if err != nil {
		logger.Printf("telemetry: counter registration failed: %v", err)
	}

	sink := store.NewLogSink(logger)

	orch := pipeline.New(ingestor, detector, rules, grouper, summarizer, sink, counters, cfg.General.RunDeadline, logger)

	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := t.Shutdown(ctx); err != nil {
			logger.Printf("telemetry shutdown: %v", err)
		}
	}

	return &runtimeComponents{orchestrator: orch, telemetry: t}, closeFn, nil
}

// completerFor builds the Completer for the configured LLM provider,
// defaulting to OpenAI when unset to match the teacher's own
// default-to-first-known-provider convention.
func completerFor(cfg config.SummarizationConfig) (summarize.Completer, error) {
	switch cfg.Provider {
	case "", "openai":
		return summarize.NewOpenAICompleter(os.Getenv("OPENAI_API_KEY"), cfg.LLMTimeout), nil
	case "anthropic":
		return summarize.NewAnthropicCompleter(os.Getenv("ANTHROPIC_API_KEY"), cfg.LLMTimeout), nil
	default:
		return nil, fmt.Errorf("summarization.provider: unknown provider %q (valid: openai, anthropic)", cfg.Provider)
	}
}

func embedderFor(cfg config.GroupingConfig) group.EmbeddingModel {
	if cfg.EmbeddingModel == "openai" || cfg.EmbeddingModel == "text-embedding-3-small" || cfg.EmbeddingModel == "text-embedding-3-large" {
		return group.NewOpenAIEmbedder(os.Getenv("OPENAI_API_KEY"), cfg.EmbeddingModel)
	}
	dims := cfg.EmbeddingDimensions
	if dims <= 0 {
		dims = 384
	}
	return group.NewLocalHashEmbedder(dims)
}

func runOnce(ctx context.Context, rc *runtimeComponents, cfg *config.Config, logger *log.Logger) error {
	runID := uuid.NewString()
	logger.Printf("starting run %s with %d configured sources", runID, len(cfg.Sources))
	report, err := rc.orchestrator.Run(ctx, runID, cfg.Sources)
	if err != nil {
		return fmt.Errorf("run %s: %w", runID, err)
	}
	logger.Printf("run %s finished: articles=%d groups=%d summaries=%d partial=%v duration=%dms",
		report.RunID, report.ArticlesFetched, report.GroupsFormed, report.SummariesOK, report.Partial, report.DurationMS)
	return nil
}

func runScheduled(ctx context.Context, rc *runtimeComponents, cfg *config.Config, logger *log.Logger) error {
	expr, err := cronexpr.Parse(cfg.General.ScheduleCron)
	if err != nil {
		return &pipeline.ConfigError{Err: fmt.Errorf("general.schedule_cron: %w", err)}
	}

	for {
		next := expr.Next(time.Now())
		wait := time.Until(next)
		logger.Printf("next scheduled run at %s (in %s)", next.Format(time.RFC3339), wait)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}

		if err := runOnce(ctx, rc, cfg, logger); err != nil {
			logger.Printf("scheduled run failed: %v", err)
		}
	}
}
