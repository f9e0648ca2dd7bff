// Package summarize implements the Summarizer: for each eligible Group it
// builds a version-pinned prompt, calls a configured LLM provider, extracts
// citations, validates the result, and retries bounded times on failure.
package summarize

import (
	"context"
	"errors"
)

// ErrorKind classifies a completion failure so the retry loop can decide
// whether to back off and retry or abort the group immediately.
type ErrorKind string

const (
	ErrorKindTransient ErrorKind = "transient"
	ErrorKindPermanent ErrorKind = "permanent"
	ErrorKindQuota     ErrorKind = "quota"
)

// CompletionError wraps an underlying error with the Kind the retry loop
// needs to decide its next move.
type CompletionError struct {
	Kind ErrorKind
	Err  error
}

func (e *CompletionError) Error() string { return e.Kind.String() + ": " + e.Err.Error() }
func (e *CompletionError) Unwrap() error { return e.Err }

func (k ErrorKind) String() string { return string(k) }

// AsCompletionError extracts a *CompletionError from err, if any.
func AsCompletionError(err error) (*CompletionError, bool) {
	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// Completer abstracts over LLM providers. A provider exposes a single
// operation: given a model id, temperature, and prompt, return a text
// completion or a typed CompletionError.
type Completer interface {
	Complete(ctx context.Context, model string, temperature float64, prompt string) (string, error)
}
