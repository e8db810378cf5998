// Package async hands OnUpdate/OnFailure callback invocations off to a
// bounded worker pool instead of running them inline on the refresher's
// goroutine, for callers whose callbacks do nontrivial work.
//
// usage:
//
//	d := async.New[string, map[string]int](onUpdate, onFailure, 1, 1000)
//	defer d.Close()
//
//	cache, _ := mirrorcache.NewMapBuilder[string, int](src, proc, 30*time.Second).
//	    WithOnUpdate(d.OnUpdate).
//	    WithOnFailure(d.OnFailure).
//	    Build(ctx)
package async

import (
	"sync"

	mirrorcache "github.com/hkolbeck/mirror-cache"
)

// Dispatcher queues OnUpdate/OnFailure invocations onto a fixed worker
// pool. Events are dropped, not blocked on, when the queue is full: a slow
// consumer must never stall the refresher.
type Dispatcher[V comparable, C any] struct {
	onUpdate  mirrorcache.OnUpdateFunc[V, C]
	onFailure mirrorcache.OnFailureFunc

	q    chan func()
	wg   sync.WaitGroup
	once sync.Once
}

// New starts a Dispatcher with the given number of workers and queue
// capacity, wrapping the given onUpdate and onFailure callbacks. Either may
// be nil.
func New[V comparable, C any](onUpdate mirrorcache.OnUpdateFunc[V, C], onFailure mirrorcache.OnFailureFunc, workers, qlen int) *Dispatcher[V, C] {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	d := &Dispatcher[V, C]{onUpdate: onUpdate, onFailure: onFailure, q: make(chan func(), qlen)}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer d.wg.Done()
			for f := range d.q {
				f()
			}
		}()
	}
	return d
}

// Close drains the queue and stops all workers. Safe to call more than
// once.
func (d *Dispatcher[V, C]) Close() {
	d.once.Do(func() {
		close(d.q)
		d.wg.Wait()
	})
}

func (d *Dispatcher[V, C]) try(f func()) {
	select {
	case d.q <- f:
	default: // drop
	}
}

// OnUpdate is an mirrorcache.OnUpdateFunc[V,C] that enqueues the real
// callback instead of running it inline.
func (d *Dispatcher[V, C]) OnUpdate(old *V, new V, collection C) {
	if d.onUpdate == nil {
		return
	}
	d.try(func() { d.onUpdate(old, new, collection) })
}

// OnFailure is a mirrorcache.OnFailureFunc that enqueues the real callback
// instead of running it inline.
func (d *Dispatcher[V, C]) OnFailure(cause error, phase mirrorcache.Phase) {
	if d.onFailure == nil {
		return
	}
	d.try(func() { d.onFailure(cause, phase) })
}
