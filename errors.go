package mirrorcache

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Phase identifies where a failure occurred, for on_failure callbacks
// and for CallbackError's recursion guard.
type Phase string

const (
	PhaseFetch    Phase = "fetch"
	PhaseProcess  Phase = "process"
	PhaseCallback Phase = "callback"
)

// FetchError wraps a failure returned by Source.Fetch.
type FetchError struct {
	Cause error
}

func (e *FetchError) Error() string { return fmt.Sprintf("mirrorcache: fetch failed: %v", e.Cause) }
func (e *FetchError) Unwrap() error { return e.Cause }

// ProcessError wraps a failure returned by Processor.Process.
type ProcessError struct {
	Cause error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("mirrorcache: process failed: %v", e.Cause)
}
func (e *ProcessError) Unwrap() error { return e.Cause }

// CallbackError wraps a panic or error raised by a user-supplied
// OnUpdate/OnFailure callback. It is only ever surfaced back through
// on_failure(cause, PhaseCallback); a failure while handling a
// CallbackError is swallowed (see refresher.go).
type CallbackError struct {
	Cause error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("mirrorcache: callback panicked: %v", e.Cause)
}
func (e *CallbackError) Unwrap() error { return e.Cause }

// BuildError is returned by Build when no initial snapshot could be
// established. It aggregates every problem found (missing required
// fields, and/or the initial fetch/process failure) via go-multierror
// instead of reporting only the first.
type BuildError struct {
	multi *multierror.Error
}

func (e *BuildError) Error() string {
	if e == nil || e.multi == nil {
		return "mirrorcache: build failed"
	}
	return e.multi.Error()
}

func (e *BuildError) Unwrap() []error {
	if e == nil || e.multi == nil {
		return nil
	}
	return e.multi.Errors
}

func newBuildError(causes ...error) *BuildError {
	be := &BuildError{multi: &multierror.Error{}}
	for _, c := range causes {
		if c != nil {
			be.multi = multierror.Append(be.multi, c)
		}
	}
	return be
}

// errMissingField is used by Builders to report a required field that
// was never set.
type errMissingField struct {
	field string
}

func (e errMissingField) Error() string { return fmt.Sprintf("required field %q not set", e.field) }

// errInvalidFetchInterval is used by Builders to report a non-positive
// fetch interval: rejected outright at build time rather than clamped
// or silently ignored.
type errInvalidFetchInterval struct {
	interval time.Duration
}

func (e errInvalidFetchInterval) Error() string {
	return fmt.Sprintf("fetch_interval must be > 0, got %s", e.interval)
}
