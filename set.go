package mirrorcache

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// SetCache is a read-only typed view over a Set[T], backed by a running
// refresh engine.
type SetCache[T comparable, V comparable] struct {
	*Cache[V, Set[T]]
}

// Contains reports whether item is a member of the current snapshot.
func (s *SetCache[T, V]) Contains(item T) bool {
	return s.Cache.Snapshot().Collection().Contains(item)
}

// Len returns the number of members in the current snapshot.
func (s *SetCache[T, V]) Len() int {
	return s.Cache.Snapshot().Collection().Len()
}

// IsEmpty reports whether the current snapshot has no members.
func (s *SetCache[T, V]) IsEmpty() bool {
	return s.Cache.Snapshot().Collection().IsEmpty()
}

// Range calls f for every member of the current snapshot, stopping early
// if f returns false.
func (s *SetCache[T, V]) Range(f func(T) bool) {
	s.Cache.Snapshot().Collection().Range(f)
}

// SetBuilder constructs a SetCache. Source and Processor must be supplied
// to the constructor; FetchInterval as well. Everything else is optional.
type SetBuilder[T comparable, V comparable] struct {
	cfg engineConfig[V, Set[T]]
}

// NewSetBuilder starts building a SetCache[T] driven by source and
// processor, refreshed every fetchInterval.
func NewSetBuilder[T comparable, V comparable](source Source[V], processor Processor[Set[T]], fetchInterval time.Duration) *SetBuilder[T, V] {
	return &SetBuilder[T, V]{cfg: engineConfig[V, Set[T]]{
		source:        source,
		processor:     processor,
		fetchInterval: fetchInterval,
	}}
}

// WithName labels the refresher's goroutine for profiling, in the
// thread-backed flavor only.
func (b *SetBuilder[T, V]) WithName(name string) *SetBuilder[T, V] {
	b.cfg.name = name
	return b
}

// WithFallback configures the snapshot published if the initial fetch
// fails.
func (b *SetBuilder[T, V]) WithFallback(fallback Set[T]) *SetBuilder[T, V] {
	b.cfg.hasFallback = true
	b.cfg.fallback = fallback
	return b
}

// WithOnUpdate registers a callback fired once per successful publish.
func (b *SetBuilder[T, V]) WithOnUpdate(f OnUpdateFunc[V, Set[T]]) *SetBuilder[T, V] {
	b.cfg.onUpdate = f
	return b
}

// WithOnFailure registers a callback fired on each fetch or process
// failure.
func (b *SetBuilder[T, V]) WithOnFailure(f OnFailureFunc) *SetBuilder[T, V] {
	b.cfg.onFailure = f
	return b
}

// WithMetrics registers an observability sink.
func (b *SetBuilder[T, V]) WithMetrics(m Metrics) *SetBuilder[T, V] {
	b.cfg.metrics = m
	return b
}

// WithLogger registers a logger for internal diagnostics.
func (b *SetBuilder[T, V]) WithLogger(l Logger) *SetBuilder[T, V] {
	b.cfg.logger = l
	return b
}

// WithCooperativeGroup switches to the cooperative-suspension execution
// flavor.
func (b *SetBuilder[T, V]) WithCooperativeGroup(g *errgroup.Group) *SetBuilder[T, V] {
	b.cfg.group = g
	return b
}

// Build performs one synchronous refresh attempt, establishes the initial
// snapshot per the fallback policy, starts the background refresher, and
// returns a usable SetCache.
func (b *SetBuilder[T, V]) Build(ctx context.Context) (*SetCache[T, V], error) {
	eng, err := buildEngine[V, Set[T]](ctx, b.cfg)
	if err != nil {
		return nil, err
	}
	return &SetCache[T, V]{Cache: eng}, nil
}
