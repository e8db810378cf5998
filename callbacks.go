package mirrorcache

// OnUpdateFunc is invoked exactly once per successful publish, after
// the swap is visible to readers. old is nil the first time a real
// (non-fallback) snapshot is published. The callback MAY observe a
// collection that has already been superseded by the time it runs;
// new disambiguates which version it belongs to.
//
// Callbacks run on the refresher's own goroutine and MUST NOT block
// long; use the callback/async sub-package to hand off to a worker
// pool if the callback does nontrivial work.
type OnUpdateFunc[V comparable, C any] func(old *V, new V, collection C)

// OnFailureFunc is invoked on each fetch or process failure, and on
// any recovered panic (including one raised by a callback itself,
// with PhaseCallback — but a failure raised by an on_failure call made
// in response to PhaseCallback is swallowed, not recursed into).
type OnFailureFunc func(cause error, phase Phase)
