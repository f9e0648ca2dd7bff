// Package models defines the value-oriented records that flow through the
// Talk-Less processing core: Source, Article, BiasIndicator, Group, Summary
// and RunReport. Records are immutable after construction and reference each
// other by id rather than by pointer, so the pipeline stays a DAG.
package models

import (
	"errors"
	"time"
)

// Sentinel errors naming domain failure conditions. No function in this
// module returns them; the Summarizer and Orchestrator report these
// conditions as strings in Result and RunReport instead.
var (
	// ErrGroupNotEligible names a Group that fails the Summarizer's
	// eligibility check (member count or distinct-source count too low).
	ErrGroupNotEligible = errors.New("group not eligible for summarization")
	// ErrSummaryValidationFailed names a summary that exhausted its
	// retries without passing validation.
	ErrSummaryValidationFailed = errors.New("summary failed validation")
	// ErrSourceNotFound names a source id with no matching configured
	// Source.
	ErrSourceNotFound = errors.New("source not found")
)

// SourceKind enumerates the two ingestion strategies a Source supports.
type SourceKind string

const (
	SourceKindRSS SourceKind = "rss"
	SourceKindAPI SourceKind = "api"
)

// Source is a configured, immutable-within-a-run news outlet.
type Source struct {
	ID                string            `json:"id" mapstructure:"id"`
	Name              string            `json:"name" mapstructure:"name"`
	Kind              SourceKind        `json:"kind" mapstructure:"kind"`
	Endpoint          string            `json:"endpoint" mapstructure:"url"`
	CredentialEnv     string            `json:"credential_env,omitempty" mapstructure:"credential_env"`
	DeclaredLean      string            `json:"declared_lean,omitempty" mapstructure:"declared_lean"`
	Enabled           bool              `json:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int               `json:"requests_per_minute" mapstructure:"requests_per_minute"`
	FieldMap          map[string]string `json:"field_map,omitempty" mapstructure:"field_map"`
	ResultsField      string            `json:"results_field,omitempty" mapstructure:"results_field"`
}

// Article is a normalized news item. Never mutated after creation.
type Article struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"source_id"`
	SourceName  string    `json:"source_name"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Author      string    `json:"author,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Content     string    `json:"content"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// BiasIndicatorKind enumerates the rule families the BiasDetector applies.
type BiasIndicatorKind string

const (
	BiasKindLoadedLanguage BiasIndicatorKind = "loaded_language"
	BiasKindAttribution    BiasIndicatorKind = "attribution"
	BiasKindFraming        BiasIndicatorKind = "framing"
	BiasKindOmission       BiasIndicatorKind = "omission"
)

// Confidence is a coarse, human-legible strength label.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// BiasIndicator is a single matched rule instance, append-only once created.
type BiasIndicator struct {
	ArticleID  string            `json:"article_id"`
	Kind       BiasIndicatorKind `json:"kind"`
	Match      string            `json:"match"`
	Context    string            `json:"context"`
	Confidence Confidence        `json:"confidence"`
	Weight     float64           `json:"weight"`
}

// GroupMetrics carries the Grouper's derived, advisory measurements.
type GroupMetrics struct {
	SourceDiversity float64  `json:"source_diversity"`
	CoverageGaps    []string `json:"coverage_gaps"`
	DominantFraming string   `json:"dominant_framing,omitempty"`
}

// Group is a set of Articles judged to cover the same story.
type Group struct {
	ID               string       `json:"id"`
	MemberArticleIDs []string     `json:"member_article_ids"`
	SourceIDs        []string     `json:"source_ids"`
	Centroid         []float32    `json:"-"`
	Metrics          GroupMetrics `json:"metrics"`
}

// ValidationStatus describes whether and how a Summary passed validation.
type ValidationStatus string

const (
	ValidationAccepted ValidationStatus = "accepted"
	ValidationFailed   ValidationStatus = "failed"
)

// Summary is an LLM-generated, citation-bearing synthesis of a Group.
type Summary struct {
	ID              string            `json:"id"`
	GroupID         string            `json:"group_id"`
	Text            string            `json:"text"`
	Citations       map[string]string `json:"citations"`
	Model           string            `json:"model"`
	Temperature     float64           `json:"temperature"`
	PromptVersion   string            `json:"prompt_version"`
	Retries         int               `json:"retries"`
	Confidence      Confidence        `json:"confidence"`
	Validation      ValidationStatus  `json:"validation_status"`
	ValidationNotes string            `json:"validation_notes,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// StageStats rolls up counters for a single Orchestrator stage.
type StageStats struct {
	Count    int           `json:"count"`
	Failures int           `json:"failures"`
	Duration time.Duration `json:"duration"`
}

// GroupFailure records why a group did not produce a Summary.
type GroupFailure struct {
	GroupID string `json:"group_id"`
	Reason  string `json:"reason"`
}

// RunReport is the one-per-invocation aggregate the Orchestrator produces.
type RunReport struct {
	RunID           string                `json:"run_id"`
	StartedAt       time.Time             `json:"started_at"`
	FinishedAt      time.Time             `json:"finished_at"`
	DurationMS      int64                 `json:"duration_ms"`
	ArticlesFetched int                   `json:"articles_fetched"`
	GroupsFormed    int                   `json:"groups_formed"`
	SummariesOK     int                   `json:"summaries_generated"`
	GroupFailures   []GroupFailure        `json:"group_failures"`
	BiasAggregate   map[string]int        `json:"bias_aggregate"`
	PerStage        map[string]StageStats `json:"per_stage"`
	SourceFailures  map[string]string     `json:"source_failures,omitempty"`
	Partial         bool                  `json:"partial"`
}
