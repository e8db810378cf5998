package mirrorcache

import (
	"context"
	"fmt"
	"runtime/pprof"
	"time"
)

// safeFetch calls Source.Fetch with panic recovery: a panicking Source
// degrades to a FetchError instead of taking the refresher down with it.
func (e *engineCore[V, C]) safeFetch(ctx context.Context, previous *V) (out Outcome[V], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in Source.Fetch: %v", r)
		}
	}()
	return e.source.Fetch(ctx, previous)
}

// safeProcess calls Processor.Process with the same panic recovery as
// safeFetch.
func (e *engineCore[V, C]) safeProcess(payload RawPayload) (coll C, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in Processor.Process: %v", r)
		}
	}()
	return e.processor.Process(payload)
}

// callOnUpdate invokes the configured OnUpdateFunc, if any, with panic
// recovery. A recovered panic is reported once through callOnFailure as a
// CallbackError, PhaseCallback.
func (e *engineCore[V, C]) callOnUpdate(old *V, new V, collection C) {
	if e.onUpdate == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("recovered panic in on_update callback", Fields{"panic": r})
			e.callOnFailure(&CallbackError{Cause: fmt.Errorf("panic: %v", r)}, PhaseCallback)
		}
	}()
	e.onUpdate(old, new, collection)
}

// callOnFailure invokes the configured OnFailureFunc, if any, with panic
// recovery and recursion protection: a panic raised while handling a
// PhaseCallback failure is logged and swallowed, never re-entered.
func (e *engineCore[V, C]) callOnFailure(cause error, phase Phase) {
	if e.onFailure == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("recovered panic in on_failure callback", Fields{"panic": r, "phase": string(phase)})
			if phase == PhaseCallback {
				return
			}
			func() {
				defer func() { recover() }()
				e.onFailure(&CallbackError{Cause: fmt.Errorf("panic: %v", r)}, PhaseCallback)
			}()
		}
	}()
	e.onFailure(cause, phase)
}

// initialFetch performs the synchronous, unconditional refresh Build()
// requires before returning a usable cache. Unlike refreshOnce it never
// calls onFailure: a failed initial fetch is handled entirely by the
// fallback policy in buildEngine, and an Unchanged outcome here is itself
// an error since there is nothing yet to leave unchanged.
func (e *engineCore[V, C]) initialFetch(ctx context.Context) error {
	e.setState(StateFetching)
	start := time.Now()
	outcome, err := e.safeFetch(ctx, nil)
	fetchDur := time.Since(start)
	if err != nil {
		e.metrics.RecordFetchFailure(err)
		return &FetchError{Cause: err}
	}
	if outcome.Kind == Unchanged {
		return &FetchError{Cause: fmt.Errorf("initial fetch reported Unchanged with no prior snapshot")}
	}

	checked := time.Now()
	e.setLastCheck(checked)
	e.metrics.RecordCheckSuccess(checked)

	e.setState(StateProcessing)
	pstart := time.Now()
	coll, perr := e.safeProcess(outcome.Payload)
	pdur := time.Since(pstart)
	if perr != nil {
		e.metrics.RecordProcessFailure(perr)
		return &ProcessError{Cause: perr}
	}

	e.setState(StatePublishing)
	ver := outcome.Version
	e.cell.store(&Snapshot[V, C]{version: &ver, collection: coll})
	now := time.Now()
	e.setLastCheck(now)
	e.setLastUpdate(now)
	e.metrics.RecordUpdate(fetchDur, pdur)
	e.callOnUpdate(nil, outcome.Version, coll)
	return nil
}

// refreshOnce runs one tick of the background refresher's state machine:
// Fetching -> {Sleeping, Processing} -> {Sleeping, Publishing} -> Sleeping.
// It always leaves the state machine in Sleeping, whatever path it took
// to get there.
func (e *engineCore[V, C]) refreshOnce(ctx context.Context) {
	e.setState(StateFetching)
	defer e.setState(StateSleeping)

	previous := e.currentVersion()
	start := time.Now()
	outcome, err := e.safeFetch(ctx, previous)
	fetchDur := time.Since(start)
	if err != nil {
		e.metrics.RecordFetchFailure(err)
		e.callOnFailure(&FetchError{Cause: err}, PhaseFetch)
		return
	}

	now := time.Now()
	e.setLastCheck(now)
	e.metrics.RecordCheckSuccess(now)

	if outcome.Kind == Unchanged {
		return
	}

	e.setState(StateProcessing)
	pstart := time.Now()
	coll, perr := e.safeProcess(outcome.Payload)
	pdur := time.Since(pstart)
	if perr != nil {
		e.metrics.RecordProcessFailure(perr)
		e.callOnFailure(&ProcessError{Cause: perr}, PhaseProcess)
		return
	}

	e.setState(StatePublishing)
	oldVersion := previous
	ver := outcome.Version
	e.cell.store(&Snapshot[V, C]{version: &ver, collection: coll})
	updatedAt := time.Now()
	// A publish is also a successful check, and it completes strictly
	// after the fetch-time `now` stamped above; advance lastCheck too so
	// LastSuccessfulCheck never trails LastSuccessfulUpdate.
	e.setLastCheck(updatedAt)
	e.setLastUpdate(updatedAt)
	e.metrics.RecordUpdate(fetchDur, pdur)
	e.callOnUpdate(oldVersion, outcome.Version, coll)
}

// runThread drives the thread-backed execution flavor: a dedicated
// goroutine that blocks on Source.Fetch/Processor.Process. If a name was
// configured it labels the goroutine via runtime/pprof; the cooperative
// flavor silently drops this since it owns no dedicated goroutine of its
// own to label.
func (e *engineCore[V, C]) runThread(ctx context.Context) {
	defer close(e.done)
	defer e.setState(StateStopped)

	if e.name != "" {
		pprof.Do(ctx, pprof.Labels("mirrorcache.refresher", e.name), e.threadLoop)
	} else {
		e.threadLoop(ctx)
	}
}

func (e *engineCore[V, C]) threadLoop(ctx context.Context) {
	timer := time.NewTimer(e.fetchInterval)
	defer timer.Stop()
	for {
		select {
		case <-e.stopCh:
			return
		case <-timer.C:
		}
		e.refreshOnce(ctx)
		timer.Reset(e.fetchInterval)
	}
}

// runCooperative drives the cooperative-suspension execution flavor: it is
// registered on a caller-supplied *errgroup.Group instead of owning a
// dedicated goroutine, and exits as soon as ctx is cancelled rather than
// waiting only on an explicit Shutdown.
func (e *engineCore[V, C]) runCooperative(ctx context.Context) error {
	defer close(e.done)
	defer e.setState(StateStopped)

	timer := time.NewTimer(e.fetchInterval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.stopCh:
			return nil
		case <-timer.C:
		}
		e.refreshOnce(ctx)
		timer.Reset(e.fetchInterval)
	}
}
