// Package mirrorcache implements an in-process, always-hot cache over
// datasets small enough to live entirely in memory. A background
// refresher polls a Source on a fixed interval, hands the raw bytes to
// a Processor, and atomically publishes the resulting collection.
// Readers never block on I/O: they always see either a fully-populated,
// internally-consistent snapshot or the configured fallback.
//
// Components:
//   - Source[V]: conditional fetch of raw bytes, given the version of
//     the last successfully published snapshot.
//   - Processor[C]: deterministic transform of raw bytes into a typed
//     collection.
//   - MapCache[K,E] / SetCache[T] / ObjectCache[T]: read-only typed
//     views over the current snapshot, plus lifecycle operations.
//
// Two execution flavors share the same Source/Processor/collection
// contracts: a thread-backed flavor, where the refresher owns a
// dedicated goroutine, and a cooperative flavor, where the refresher
// registers itself on a caller-supplied *errgroup.Group.
//
// Builders:
//
//	c, err := mirrorcache.NewMapBuilder[string, int](src, proc, 30*time.Second).
//	    WithFallback(map[string]int{}).
//	    Build(ctx)
//
// Build performs one synchronous refresh attempt before returning, per
// the configured fallback policy, then starts the background
// refresher and returns a usable handle.
package mirrorcache
