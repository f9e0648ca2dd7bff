// Package pipeline implements the Orchestrator: the thin driver that runs
// the fetch -> detect -> group -> perspective -> summarize -> report -> emit
// stages against one configured run and assembles the RunReport.
package pipeline

import "fmt"

// ConfigError wraps a fatal configuration problem discovered after Load,
// such as a bias-rules file that failed to compile.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config error: %v", e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }

// SourceError records a single source's ingestion failure. Never fatal to
// the run; it is recorded in RunReport.SourceFailures.
type SourceError struct {
	SourceID string
	Err      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.SourceID, e.Err)
}
func (e *SourceError) Unwrap() error { return e.Err }

// ArticleError records a single article that could not be normalized or
// scored, identified by its id.
type ArticleError struct {
	ArticleID string
	Err       error
}

func (e *ArticleError) Error() string {
	return fmt.Sprintf("article %s: %v", e.ArticleID, e.Err)
}
func (e *ArticleError) Unwrap() error { return e.Err }

// CacheError wraps a cache backend failure. Cache failures never fail a
// fetch; this type exists so a stage can log the cause without treating it
// as fatal.
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string { return fmt.Sprintf("cache %s: %v", e.Op, e.Err) }
func (e *CacheError) Unwrap() error { return e.Err }

// EmbeddingError records a failed embedding batch. The Grouper excludes the
// affected articles rather than aborting the run.
type EmbeddingError struct {
	BatchSize int
	Err       error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding batch of %d: %v", e.BatchSize, e.Err)
}
func (e *EmbeddingError) Unwrap() error { return e.Err }

// LLMError wraps a Completer failure with its retry classification.
type LLMError struct {
	Kind string // transient, permanent, quota
	Err  error
}

func (e *LLMError) Error() string { return fmt.Sprintf("llm (%s): %v", e.Kind, e.Err) }
func (e *LLMError) Unwrap() error { return e.Err }

// ValidationError records why a candidate summary was rejected.
type ValidationError struct {
	GroupID string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("group %s: validation failed: %s", e.GroupID, e.Reason)
}
