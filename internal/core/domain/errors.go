package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates a file type no extractor handles.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrRateLimited indicates a collaborator rejected the call for rate reasons.
	ErrRateLimited = errors.New("rate limited")

	// ErrDimensionMismatch indicates a vector of the wrong size.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrLLMUnavailable indicates the language model is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// Error kinds. Use errors.Is against these to classify an *Error.

	// ErrIngestion marks extraction or segmentation failure for a document.
	ErrIngestion = errors.New("ingestion failed")

	// ErrEmbedding marks embedding failure for a chunk or query.
	ErrEmbedding = errors.New("embedding failed")

	// ErrRetrievalTimeout marks a vector-store call that exceeded its deadline.
	ErrRetrievalTimeout = errors.New("retrieval timed out")

	// ErrGeneration marks a language-model call that exhausted its retries.
	ErrGeneration = errors.New("generation failed")

	// ErrConfiguration marks invalid tunables.
	ErrConfiguration = errors.New("invalid configuration")
)

// Error carries the kind, the pipeline stage and the underlying cause of
// a failure so callers can decide whether to retry or alert.
type Error struct {
	// Kind is one of the Err* kind sentinels.
	Kind error

	// Stage names the pipeline step, e.g. "embed", "query", "generate".
	Stage string

	// Subject identifies what failed (document id, chunk id, query).
	Subject string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Stage != "" {
		msg = e.Stage + ": " + msg
	}
	if e.Subject != "" {
		msg += fmt.Sprintf(" (%s)", e.Subject)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the error kind.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

// NewIngestionError reports an extraction or segmentation failure.
func NewIngestionError(stage, documentID string, err error) *Error {
	return &Error{Kind: ErrIngestion, Stage: stage, Subject: documentID, Err: err}
}

// NewEmbeddingError reports an embedding failure.
func NewEmbeddingError(stage, subject string, err error) *Error {
	return &Error{Kind: ErrEmbedding, Stage: stage, Subject: subject, Err: err}
}

// NewRetrievalTimeout reports a vector-store deadline overrun.
func NewRetrievalTimeout(stage string, err error) *Error {
	return &Error{Kind: ErrRetrievalTimeout, Stage: stage, Err: err}
}

// NewGenerationError reports a language-model failure.
func NewGenerationError(stage string, err error) *Error {
	return &Error{Kind: ErrGeneration, Stage: stage, Err: err}
}

// NewConfigurationError reports invalid tunables.
func NewConfigurationError(field string, err error) *Error {
	return &Error{Kind: ErrConfiguration, Stage: "config", Subject: field, Err: err}
}

// ErrorKind returns the kind sentinel of err, or nil if err carries none.
func ErrorKind(err error) error {
	for _, kind := range []error{ErrIngestion, ErrEmbedding, ErrRetrievalTimeout, ErrGeneration, ErrConfiguration} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

func errorf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
