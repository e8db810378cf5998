package mirrorcache

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// MapCache is a read-only typed view over a mapping from K to E, backed by
// a running refresh engine.
type MapCache[K comparable, E any, V comparable] struct {
	*Cache[V, map[K]E]
}

// Get returns the value for key and whether it was present in the current
// snapshot.
func (m *MapCache[K, E, V]) Get(key K) (E, bool) {
	coll := m.Cache.Snapshot().Collection()
	v, ok := coll[key]
	return v, ok
}

// Len returns the number of entries in the current snapshot.
func (m *MapCache[K, E, V]) Len() int {
	return len(m.Cache.Snapshot().Collection())
}

// IsEmpty reports whether the current snapshot has no entries.
func (m *MapCache[K, E, V]) IsEmpty() bool {
	return m.Len() == 0
}

// Range calls f for every entry in the current snapshot, stopping early if
// f returns false. The collection it iterates over is frozen for the
// duration of the call even if a refresh publishes a new one concurrently.
func (m *MapCache[K, E, V]) Range(f func(K, E) bool) {
	for k, v := range m.Cache.Snapshot().Collection() {
		if !f(k, v) {
			return
		}
	}
}

// MapBuilder constructs a MapCache. Source and Processor must be supplied
// to the constructor; FetchInterval as well. Everything else is optional.
type MapBuilder[K comparable, E any, V comparable] struct {
	cfg engineConfig[V, map[K]E]
}

// NewMapBuilder starts building a MapCache[K,E] driven by source and
// processor, refreshed every fetchInterval.
func NewMapBuilder[K comparable, E any, V comparable](source Source[V], processor Processor[map[K]E], fetchInterval time.Duration) *MapBuilder[K, E, V] {
	return &MapBuilder[K, E, V]{cfg: engineConfig[V, map[K]E]{
		source:        source,
		processor:     processor,
		fetchInterval: fetchInterval,
	}}
}

// WithName labels the refresher's goroutine for profiling, in the
// thread-backed flavor only; the cooperative flavor ignores it.
func (b *MapBuilder[K, E, V]) WithName(name string) *MapBuilder[K, E, V] {
	b.cfg.name = name
	return b
}

// WithFallback configures the snapshot published if the initial fetch
// fails. Without it, Build fails outright on initial failure.
func (b *MapBuilder[K, E, V]) WithFallback(fallback map[K]E) *MapBuilder[K, E, V] {
	b.cfg.hasFallback = true
	b.cfg.fallback = fallback
	return b
}

// WithOnUpdate registers a callback fired once per successful publish.
func (b *MapBuilder[K, E, V]) WithOnUpdate(f OnUpdateFunc[V, map[K]E]) *MapBuilder[K, E, V] {
	b.cfg.onUpdate = f
	return b
}

// WithOnFailure registers a callback fired on each fetch or process
// failure.
func (b *MapBuilder[K, E, V]) WithOnFailure(f OnFailureFunc) *MapBuilder[K, E, V] {
	b.cfg.onFailure = f
	return b
}

// WithMetrics registers an observability sink.
func (b *MapBuilder[K, E, V]) WithMetrics(m Metrics) *MapBuilder[K, E, V] {
	b.cfg.metrics = m
	return b
}

// WithLogger registers a logger for internal diagnostics (fallback
// publication, recovered panics).
func (b *MapBuilder[K, E, V]) WithLogger(l Logger) *MapBuilder[K, E, V] {
	b.cfg.logger = l
	return b
}

// WithCooperativeGroup switches to the cooperative-suspension execution
// flavor: the refresher registers itself on g instead of spawning its own
// goroutine.
func (b *MapBuilder[K, E, V]) WithCooperativeGroup(g *errgroup.Group) *MapBuilder[K, E, V] {
	b.cfg.group = g
	return b
}

// Build performs one synchronous refresh attempt, establishes the initial
// snapshot per the fallback policy, starts the background refresher, and
// returns a usable MapCache.
func (b *MapBuilder[K, E, V]) Build(ctx context.Context) (*MapCache[K, E, V], error) {
	eng, err := buildEngine[V, map[K]E](ctx, b.cfg)
	if err != nil {
		return nil, err
	}
	return &MapCache[K, E, V]{Cache: eng}, nil
}
