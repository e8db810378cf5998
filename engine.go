package mirrorcache

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// engineCore holds the snapshot cell, the Source/Processor pair, and every
// piece of state the background refresher goroutine touches. It is kept
// separate from Cache so that the long-lived refresher goroutine can hold
// a reference to exactly the state it needs without also keeping the
// public Cache handle reachable: the goroutine captures *engineCore, never
// *Cache.
type engineCore[V comparable, C any] struct {
	cell cell[V, C]

	source    Source[V]
	processor Processor[C]

	fetchInterval time.Duration
	name          string

	onUpdate  OnUpdateFunc[V, C]
	onFailure OnFailureFunc
	metrics   Metrics
	logger    Logger

	state atomic.Int32

	lastCheck  atomic.Int64
	lastUpdate atomic.Int64

	stopCh chan struct{}
	done   chan struct{}
	cancel context.CancelFunc

	shutdownOnce sync.Once
}

func (e *engineCore[V, C]) setState(s RefresherState) {
	e.state.Store(int32(s))
}

func (e *engineCore[V, C]) setLastCheck(t time.Time)  { e.lastCheck.Store(t.UnixNano()) }
func (e *engineCore[V, C]) setLastUpdate(t time.Time) { e.lastUpdate.Store(t.UnixNano()) }

// currentVersion returns the version of the currently published snapshot,
// or nil if none has ever been published for real (the fallback snapshot's
// version is nil, which is exactly what makes the next real fetch get
// previous=nil instead of being compared against the fallback's absence of
// a version).
func (e *engineCore[V, C]) currentVersion() *V {
	snap := e.cell.load()
	if snap == nil {
		return nil
	}
	v, ok := snap.Version()
	if !ok {
		return nil
	}
	return &v
}

// shutdown signals the refresher to stop and waits for it to actually stop,
// or for ctx to be done, whichever comes first. It is idempotent.
func (e *engineCore[V, C]) shutdown(ctx context.Context) error {
	e.shutdownOnce.Do(func() {
		if e.cancel != nil {
			e.cancel()
		}
		close(e.stopCh)
	})
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func unixNanoToTime(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Cache is the public refresh-engine handle: a thin wrapper around an
// *engineCore. It is not constructed directly; MapBuilder, SetBuilder, and
// ObjectBuilder produce typed façades (MapCache, SetCache, ObjectCache)
// that embed one.
type Cache[V comparable, C any] struct {
	core *engineCore[V, C]
}

// Snapshot returns the cache's current (version, collection) pair. The
// returned pointer keeps its collection alive for as long as the caller
// holds it, even across later publishes.
func (c *Cache[V, C]) Snapshot() *Snapshot[V, C] {
	return c.core.cell.load()
}

// State reports the refresher's current finite-state-machine state. It
// exists for observability; nothing in the public API lets a caller
// drive transitions directly.
func (c *Cache[V, C]) State() RefresherState {
	return RefresherState(c.core.state.Load())
}

// LastSuccessfulCheck returns the time of the most recent fetch that
// completed without error, whether it reported Unchanged or Updated. It is
// the zero Time if no check has ever succeeded.
func (c *Cache[V, C]) LastSuccessfulCheck() time.Time {
	return unixNanoToTime(c.core.lastCheck.Load())
}

// LastSuccessfulUpdate returns the time of the most recent successful
// publish. It is the zero Time if nothing has ever been published (a
// fallback snapshot does not count). LastSuccessfulUpdate is always <=
// LastSuccessfulCheck.
func (c *Cache[V, C]) LastSuccessfulUpdate() time.Time {
	return unixNanoToTime(c.core.lastUpdate.Load())
}

// Shutdown signals the refresher to stop and waits for it to actually stop,
// or for ctx to be done, whichever comes first. It is idempotent: a second
// call observes the same stopped state and returns immediately. Once
// Shutdown has returned because the refresher stopped (not because ctx
// expired), no further OnUpdate/OnFailure callback will fire.
func (c *Cache[V, C]) Shutdown(ctx context.Context) error {
	return c.core.shutdown(ctx)
}

// finalize arms a best-effort finalizer that shuts the refresher down when
// the last reference to c is collected. It is a safety net, not a
// substitute for calling Shutdown explicitly: finalizers run at an
// unpredictable time, if ever, and Go offers no deterministic destructor.
//
// The finalizer closure captures c.core, not c itself, which is the whole
// point: the refresher goroutine also only ever holds a *engineCore, so c
// (the public handle) can become unreachable and be finalized while the
// goroutine is still running — exactly the "drop the last handle"
// scenario this exists to catch.
func (c *Cache[V, C]) finalize() {
	core := c.core
	runtime.SetFinalizer(c, func(*Cache[V, C]) {
		_ = core.shutdown(context.Background())
	})
}
