// Package config loads Talk-Less's three typed configuration documents
// (general/pipeline settings, sources, bias rules) with viper, the way
// the teacher's own Config loader does: mapstructure tags, viper defaults
// for every optional field, and Validate() methods each caller invokes and
// treats as fatal.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/talk-less/talkless/models"
)

// Config holds the full configuration for a single pipeline run.
type Config struct {
	General        GeneralConfig        `mapstructure:"general"`
	Sources        []models.Source      `mapstructure:"sources"`
	BiasRules      BiasRulesConfig      `mapstructure:"bias_rules"`
	Grouping       GroupingConfig       `mapstructure:"grouping"`
	Summarization  SummarizationConfig  `mapstructure:"summarization"`
	Cache          CacheConfig          `mapstructure:"cache"`
	Telemetry      TelemetryConfig      `mapstructure:"telemetry"`
	StrictConfig   bool                 `mapstructure:"strict_config"`
}

// GeneralConfig contains run-wide, cross-cutting settings.
type GeneralConfig struct {
	LogLevel            string        `mapstructure:"log_level"`
	MaxArticleAge       time.Duration `mapstructure:"max_article_age"`
	MaxConcurrentFetch  int           `mapstructure:"max_concurrent_fetches"`
	FetchTimeout        time.Duration `mapstructure:"fetch_timeout"`
	RunDeadline         time.Duration `mapstructure:"run_deadline"`
	StrictRSSDates      bool          `mapstructure:"strict_rss_dates"`
	ScheduleCron        string        `mapstructure:"schedule_cron"`
}

// Validate checks GeneralConfig invariants.
func (g GeneralConfig) Validate() error {
	if g.MaxArticleAge <= 0 {
		return fmt.Errorf("general.max_article_age must be > 0")
	}
	if g.MaxConcurrentFetch <= 0 {
		return fmt.Errorf("general.max_concurrent_fetches must be > 0")
	}
	if g.FetchTimeout <= 0 {
		return fmt.Errorf("general.fetch_timeout must be > 0")
	}
	return nil
}

// CacheConfig configures the shared content cache.
type CacheConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	TTL      time.Duration `mapstructure:"ttl"`
	OpTimeout time.Duration `mapstructure:"op_timeout"`
}

// GroupingConfig configures the Grouper's embedding and clustering behavior.
type GroupingConfig struct {
	EmbeddingModel        string  `mapstructure:"embedding_model"`
	EmbeddingDimensions   int     `mapstructure:"embedding_dimensions"`
	SimilarityThreshold   float64 `mapstructure:"similarity_threshold"`
	MinArticlesPerGroup   int     `mapstructure:"min_articles_per_group"`
	MaxArticlesPerGroup   int     `mapstructure:"max_articles_per_group"`
	EmbeddingBatchSize    int     `mapstructure:"embedding_batch_size"`
	FirstNTokensForEmbed  int     `mapstructure:"first_n_tokens_for_embed"`
}

// Validate checks GroupingConfig invariants.
func (g GroupingConfig) Validate() error {
	if g.SimilarityThreshold <= 0 || g.SimilarityThreshold > 1 {
		return fmt.Errorf("grouping.similarity_threshold must be in (0, 1]")
	}
	if g.MinArticlesPerGroup < 2 {
		return fmt.Errorf("grouping.min_articles_per_group must be >= 2")
	}
	if g.MaxArticlesPerGroup < g.MinArticlesPerGroup {
		return fmt.Errorf("grouping.max_articles_per_group must be >= min_articles_per_group")
	}
	return nil
}

// SummarizationConfig configures the Summarizer's LLM orchestration.
type SummarizationConfig struct {
	Provider                string        `mapstructure:"provider"`
	Model                   string        `mapstructure:"model"`
	Temperature             float64       `mapstructure:"temperature"`
	MaxTemperature          float64       `mapstructure:"max_temperature"`
	MinSummaryLength        int           `mapstructure:"min_summary_length"`
	MaxSummaryLength        int           `mapstructure:"max_summary_length"`
	MaxRetries              int           `mapstructure:"max_retries"`
	RequiredCitationCoverage int          `mapstructure:"required_citation_coverage"`
	MinCopiedSpan           int           `mapstructure:"min_copied_span"`
	MaxConcurrentSummaries  int           `mapstructure:"max_concurrent_summaries"`
	RequestsPerMinute       int           `mapstructure:"requests_per_minute"`
	LLMTimeout              time.Duration `mapstructure:"llm_timeout"`
	MinDistinctSources      int           `mapstructure:"min_distinct_sources"`
	PerArticleTokenBudget   int           `mapstructure:"per_article_token_budget"`
}

// Validate checks SummarizationConfig invariants.
func (s SummarizationConfig) Validate() error {
	if s.MinSummaryLength <= 0 || s.MaxSummaryLength <= s.MinSummaryLength {
		return fmt.Errorf("summarization: min/max_summary_length misconfigured")
	}
	if s.Temperature > s.MaxTemperature {
		return fmt.Errorf("summarization.temperature exceeds max_temperature")
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("summarization.max_retries cannot be negative")
	}
	if s.MinDistinctSources < 1 {
		return fmt.Errorf("summarization.min_distinct_sources must be >= 1")
	}
	return nil
}

// BiasRuleEntry is one configured rule inside a rule family.
type BiasRuleEntry struct {
	Pattern    string  `mapstructure:"pattern"`
	Scope      string  `mapstructure:"scope"` // title, body, any
	Confidence string  `mapstructure:"confidence"`
	Weight     float64 `mapstructure:"weight"`
}

// FramingRuleEntry pairs a headline pattern with an absence-in-body check.
type FramingRuleEntry struct {
	HeadlinePattern string  `mapstructure:"headline_pattern"`
	BodyAbsent      string  `mapstructure:"body_absent_pattern"`
	Confidence      string  `mapstructure:"confidence"`
	Weight          float64 `mapstructure:"weight"`
}

// BiasRulesConfig is the bias rules document from spec.md §6.
type BiasRulesConfig struct {
	LoadedWords         []BiasRuleEntry    `mapstructure:"loaded_words"`
	AttributionPatterns []BiasRuleEntry    `mapstructure:"attribution_patterns"`
	FramingPatterns     []FramingRuleEntry `mapstructure:"framing_patterns"`
	MinConfidence       string             `mapstructure:"min_confidence"`
	PerArticleThreshold float64            `mapstructure:"per_article_threshold"`
}

// Validate ensures the bias rules document has at least a coherent shape.
// Rule-file parse errors are the hard configuration dependency spec.md §4.4
// describes; this Validate call is what makes that dependency fatal.
func (b BiasRulesConfig) Validate() error {
	switch b.MinConfidence {
	case "", "low", "medium", "high":
	default:
		return fmt.Errorf("bias_rules.min_confidence must be one of low|medium|high")
	}
	for i, r := range b.LoadedWords {
		if strings.TrimSpace(r.Pattern) == "" {
			return fmt.Errorf("bias_rules.loaded_words[%d]: empty pattern", i)
		}
	}
	for i, r := range b.AttributionPatterns {
		if strings.TrimSpace(r.Pattern) == "" {
			return fmt.Errorf("bias_rules.attribution_patterns[%d]: empty pattern", i)
		}
	}
	for i, r := range b.FramingPatterns {
		if strings.TrimSpace(r.HeadlinePattern) == "" {
			return fmt.Errorf("bias_rules.framing_patterns[%d]: empty headline_pattern", i)
		}
	}
	return nil
}

// TelemetryConfig mirrors the teacher's telemetry knobs, scoped down to what
// a batch pipeline run needs: an optional metrics endpoint. No tracer is
// registered; OTLPEndpoint is decoded but nothing in this repository reads it.
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	MetricsPort  int    `mapstructure:"metrics_port"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// Validate mirrors config.TelemetryConfig.Validate in the teacher repo.
func (t TelemetryConfig) Validate() error {
	if t.Enabled && t.MetricsPort <= 0 {
		return fmt.Errorf("telemetry.metrics_port must be > 0 when telemetry is enabled")
	}
	return nil
}

// Load reads the pipeline configuration from a directory holding the three
// documents spec.md §6 enumerates — sources.yaml, bias_rules.yaml,
// pipeline.yaml — the way original_source/backend/pipeline/run.py's
// load_config loads sources.yaml/bias_indicators.yaml/pipeline_config.yaml
// as three independent files. A single combined talkless.yaml in dir is
// also accepted for convenience and is merged in first so per-file
// documents can override individual sections. Load panics on configuration
// errors, matching spec.md §7's rule that only configuration errors are
// fatal — the caller (cmd/talkless) recovers this into a clean non-zero
// exit.
func Load(dir string) *Config {
	v := viper.New()
	v.SetConfigType("yaml")
	applyDefaults(v)

	if dir == "" {
		dir = "."
	}

	if combined := filepath.Join(dir, "talkless.yaml"); fileExists(combined) {
		v.SetConfigFile(combined)
		if err := v.ReadInConfig(); err != nil {
			panic(fmt.Errorf("fatal error reading %s: %w", combined, err))
		}
	}

	mergeFile(v, filepath.Join(dir, "sources.yaml"), "sources")
	mergeFile(v, filepath.Join(dir, "pipeline.yaml"), "")
	mergeFile(v, filepath.Join(dir, "bias_rules.yaml"), "bias_rules")

	v.SetEnvPrefix("TALKLESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Errorf("fatal error decoding config: %w", err))
	}

	if unknown := unknownKeys(v); len(unknown) > 0 {
		if cfg.StrictConfig {
			panic(fmt.Errorf("fatal error: unknown config keys under strict_config: %v", unknown))
		}
		log.Printf("config: ignoring unknown config keys: %v", unknown)
	}

	for _, validator := range []interface{ Validate() error }{
		cfg.General, cfg.Grouping, cfg.Summarization, cfg.BiasRules, cfg.Telemetry,
	} {
		if err := validator.Validate(); err != nil {
			panic(err)
		}
	}

	return &cfg
}

// mergeFile reads a standalone YAML document and merges it under the given
// top-level key ("" merges it at the root, for pipeline.yaml which already
// nests general/grouping/summarization/cache/telemetry sections).
func mergeFile(v *viper.Viper, path, underKey string) {
	if !fileExists(path) {
		return
	}
	sub := viper.New()
	sub.SetConfigType("yaml")
	sub.SetConfigFile(path)
	if err := sub.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error reading %s: %w", path, err))
	}
	if underKey == "" {
		if err := v.MergeConfigMap(sub.AllSettings()); err != nil {
			panic(fmt.Errorf("fatal error merging %s: %w", path, err))
		}
		return
	}
	if err := v.MergeConfigMap(map[string]interface{}{underKey: sub.Get(underKey)}); err != nil {
		panic(fmt.Errorf("fatal error merging %s: %w", path, err))
	}
	// sources.yaml / bias_rules.yaml may also be written without the
	// wrapping top-level key (a bare list or bare rule-family document);
	// fall back to treating the whole file body as the section.
	if sub.Get(underKey) == nil {
		if err := v.MergeConfigMap(map[string]interface{}{underKey: sub.AllSettings()}); err != nil {
			panic(fmt.Errorf("fatal error merging %s: %w", path, err))
		}
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func applyDefaults(v *viper.Viper) {

	v.SetDefault("general.log_level", envOr("LOG_LEVEL", "info"))
	v.SetDefault("general.max_article_age", 72*time.Hour)
	v.SetDefault("general.max_concurrent_fetches", 8)
	v.SetDefault("general.fetch_timeout", 15*time.Second)
	v.SetDefault("general.run_deadline", 10*time.Minute)
	v.SetDefault("general.strict_rss_dates", false)

	v.SetDefault("cache.ttl", 30*time.Minute)
	v.SetDefault("cache.op_timeout", 250*time.Millisecond)
	v.SetDefault("cache.endpoint", envOr("CACHE_URL", ""))

	v.SetDefault("grouping.embedding_model", "local-hash-384")
	v.SetDefault("grouping.embedding_dimensions", 384)
	v.SetDefault("grouping.similarity_threshold", 0.7)
	v.SetDefault("grouping.min_articles_per_group", 2)
	v.SetDefault("grouping.max_articles_per_group", 12)
	v.SetDefault("grouping.embedding_batch_size", 16)
	v.SetDefault("grouping.first_n_tokens_for_embed", 256)

	v.SetDefault("summarization.provider", "openai")
	v.SetDefault("summarization.model", "gpt-4o-mini")
	v.SetDefault("summarization.temperature", 0.3)
	v.SetDefault("summarization.max_temperature", 0.3)
	v.SetDefault("summarization.min_summary_length", 400)
	v.SetDefault("summarization.max_summary_length", 2000)
	v.SetDefault("summarization.max_retries", 2)
	v.SetDefault("summarization.required_citation_coverage", 0)
	v.SetDefault("summarization.min_copied_span", 10)
	v.SetDefault("summarization.max_concurrent_summaries", 4)
	v.SetDefault("summarization.requests_per_minute", 60)
	v.SetDefault("summarization.llm_timeout", 30*time.Second)
	v.SetDefault("summarization.min_distinct_sources", 2)
	v.SetDefault("summarization.per_article_token_budget", 800)

	v.SetDefault("bias_rules.min_confidence", "low")
	v.SetDefault("bias_rules.per_article_threshold", 3.0)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.metrics_port", 9464)

	v.SetDefault("strict_config", false)
}

// unknownKeys warns (in strict mode, fails) about config keys that don't
// correspond to a recognized mapstructure field. This is a coarse check —
// viper doesn't expose per-key schema validation, so this only flags
// entirely-unrecognized top level sections.
func unknownKeys(v *viper.Viper) []string {
	known := map[string]bool{
		"general": true, "sources": true, "bias_rules": true, "grouping": true,
		"summarization": true, "cache": true, "telemetry": true, "strict_config": true,
	}
	var unknown []string
	for _, key := range v.AllKeys() {
		top := strings.SplitN(key, ".", 2)[0]
		if !known[top] {
			unknown = append(unknown, key)
		}
	}
	return unknown
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
