package core

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrDimensionMismatch    = errors.New("vector dimension mismatch")
	ErrEmptyInput           = errors.New("empty input")
	ErrNoPreferences        = errors.New("no preferences provided")
	ErrEmptyCatalog         = errors.New("catalog is empty")
	ErrEmbeddingFailed      = errors.New("embedding failed")
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
	ErrIngestionFailed      = errors.New("ingestion failed")
	ErrUpstream             = errors.New("upstream request failed")
	ErrInvalidRecord        = errors.New("invalid catalog record")
	ErrNotFound             = errors.New("not found")
	ErrInvalidConfig        = errors.New("invalid configuration")
	ErrTimeout              = errors.New("operation timed out")
	ErrNonFinite            = errors.New("vector has a non-finite element")
)

// DimensionError reports two vectors (or a vector and the configured
// dimension) that disagree in length.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%v: want %d, got %d", ErrDimensionMismatch, e.Want, e.Got)
}

func (e *DimensionError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

type OpError struct {
	Op      string
	Subject string
	Err     error
	Context map[string]any
}

func (e *OpError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s [%s]: %v", e.Op, e.Subject, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func NewOpError(op, subject string, err error) *OpError {
	return &OpError{Op: op, Subject: subject, Err: err}
}

func WithContext(err *OpError, key string, val any) *OpError {
	if err.Context == nil {
		err.Context = make(map[string]any)
	}
	err.Context[key] = val
	return err
}

// Kind groups errors by how a caller should react to them.
type Kind int

const (
	KindInternal Kind = iota
	KindBadInput
	KindNotFound
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindBadInput:
		return "bad_input"
	case KindNotFound:
		return "not_found"
	case KindTransient:
		return "transient"
	default:
		return "internal"
	}
}

// Classify maps an error chain onto a Kind. Dimension mismatches are
// internal: they indicate a misconfigured deployment, not a bad request.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrNoPreferences), errors.Is(err, ErrEmptyInput):
		return KindBadInput
	case errors.Is(err, ErrEmptyCatalog), errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrEmbeddingFailed), errors.Is(err, ErrEmbeddingUnavailable),
		errors.Is(err, ErrUpstream), errors.Is(err, ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	default:
		return KindInternal
	}
}

// StatusError is a non-2xx response from an HTTP dependency.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s API error (status %d)", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUpstream
}

// Retryable reports whether the status is worth another attempt: request
// timeout, rate limiting, or a server-side failure.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == 408 || e.StatusCode == 429 || e.StatusCode >= 500
}

// IsRetryable is the default retry predicate for HTTP dependencies. Status
// errors decide for themselves; decode failures, cancellations and
// anything marked permanent are not retried; everything else (network
// errors, timeouts) is.
func IsRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrPermanent) {
		return false
	}
	return true
}

// ErrPermanent marks failures that retrying cannot fix, such as a body
// that does not decode.
var ErrPermanent = errors.New("permanent failure")
