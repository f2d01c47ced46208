// Package auditerr defines the error taxonomy shared across the audit
// orchestration pipeline: configuration, authentication, rate-limit,
// server, validation, recursion, parse, and I/O errors.
package auditerr

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration indicates a fatal configuration problem discovered
	// at session start. No work is queued.
	ErrConfiguration = errors.New("configuration error")

	// ErrAuthentication indicates an HTTP 401 from a provider. Non-retryable;
	// the provider is marked invalid and the manager proceeds with the rest.
	ErrAuthentication = errors.New("authentication error")

	// ErrRateLimited indicates an HTTP 429 or a Rate Limiter refusal.
	// Retryable with extended backoff.
	ErrRateLimited = errors.New("rate limit error")

	// ErrServer indicates a 5xx, network, or read-timeout failure.
	// Retryable with classified backoff.
	ErrServer = errors.New("server error")

	// ErrValidation indicates an invalid request (bad message shape,
	// unsupported model, context too large). Non-retryable.
	ErrValidation = errors.New("model validation error")

	// ErrRecursion is raised by the Recursion Monitor on a cycle or depth
	// violation. Non-retryable.
	ErrRecursion = errors.New("recursion error")

	// ErrParse indicates the aggregator could not extract a finding from
	// an LLM response. The caller should degrade gracefully.
	ErrParse = errors.New("parse error")

	// ErrIO indicates a file read or cache disk failure. Callers should
	// log and continue; cache writes fail open.
	ErrIO = errors.New("i/o error")

	// ErrCircuitOpen indicates a circuit breaker is OPEN and refused the call.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrAllProvidersFailed indicates every provider in the manager's
	// ordered list failed for a request.
	ErrAllProvidersFailed = errors.New("all providers failed")
)

// Classified wraps an underlying error with a retryability flag and the
// taxonomy sentinel it belongs to. Providers and the manager use this to
// decide whether to retry or fail fast.
type Classified struct {
	Kind      error
	Err       error
	Retryable bool
}

func (c *Classified) Error() string {
	if c.Err == nil {
		return c.Kind.Error()
	}
	return fmt.Sprintf("%s: %v", c.Kind.Error(), c.Err)
}

func (c *Classified) Unwrap() error { return c.Err }

// Is allows errors.Is(err, auditerr.ErrServer) to match a *Classified
// wrapping that sentinel.
func (c *Classified) Is(target error) bool {
	return errors.Is(c.Kind, target)
}

// New builds a Classified error for the given taxonomy kind.
func New(kind error, retryable bool, err error) *Classified {
	return &Classified{Kind: kind, Err: err, Retryable: retryable}
}

// IsRetryable reports whether err (or any error it wraps) is marked retryable.
func IsRetryable(err error) bool {
	var c *Classified
	if errors.As(err, &c) {
		return c.Retryable
	}
	return false
}
