package experiments

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedDefinition marks a definition entry the parser could not
	// understand: unbalanced tokens, non-numeric weights, empty names.
	ErrMalformedDefinition = errors.New("experiments: malformed definition")

	// ErrDuplicateExperiment marks a definition set that declares the same
	// experiment name more than once.
	ErrDuplicateExperiment = errors.New("experiments: duplicate experiment")

	// ErrWeightOverflow marks a definition whose explicit weights exceed the
	// weight total, leaving no valid partition.
	ErrWeightOverflow = errors.New("experiments: allocation weights exceed total")

	// ErrUnknownExperiment is returned when a resolution names an experiment
	// absent from the current snapshot. Silently defaulting here would mask a
	// deploy/config mismatch, so the error is loud.
	ErrUnknownExperiment = errors.New("experiments: unknown experiment")

	// ErrInvalidOverride is returned when an override names a variant the
	// experiment does not declare. Falling through quietly would let a
	// misconfigured test override pass on the wrong variant.
	ErrInvalidOverride = errors.New("experiments: override names undeclared variant")

	// ErrSourceUnavailable marks a load/refresh failure. The provider keeps
	// serving the previous snapshot; the error never reaches resolution
	// callers.
	ErrSourceUnavailable = errors.New("experiments: source unavailable")

	// ErrIdentityNotFound is returned when an experiment's identity keypath
	// does not resolve to a value in the context.
	ErrIdentityNotFound = errors.New("experiments: identity not found in context")
)

// ParseError reports one definition entry that failed to parse, identifying
// the offending entry and, where possible, the fragment within it.
type ParseError struct {
	Line     int
	Entry    string
	Fragment string
	Err      error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Fragment != "" {
		return fmt.Sprintf("%v: entry %d %q at %q", e.Err, e.Line, e.Entry, e.Fragment)
	}
	return fmt.Sprintf("%v: entry %d %q", e.Err, e.Line, e.Entry)
}

func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func parseErr(line int, entry, fragment string, cause error, format string, args ...any) *ParseError {
	err := cause
	if format != "" {
		err = fmt.Errorf("%w: %s", cause, fmt.Sprintf(format, args...))
	}
	return &ParseError{Line: line, Entry: entry, Fragment: fragment, Err: err}
}

// SourceError wraps a load failure from a definition source. It matches
// ErrSourceUnavailable via errors.Is while preserving the underlying cause.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%v: %s: %v", ErrSourceUnavailable, e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *SourceError) Is(target error) bool {
	return target == ErrSourceUnavailable
}
