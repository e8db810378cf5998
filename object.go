package mirrorcache

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// ObjectCache is a read-only typed view over a whole opaque value of type
// T, backed by a running refresh engine. Unlike MapCache/SetCache it gives
// no per-member accessors: the caller gets the current value and applies
// its own.
type ObjectCache[T any, V comparable] struct {
	*Cache[V, T]
}

// Get returns the current snapshot's value.
func (o *ObjectCache[T, V]) Get() T {
	return o.Cache.Snapshot().Collection()
}

// ObjectBuilder constructs an ObjectCache. Source and Processor must be
// supplied to the constructor; FetchInterval as well. Everything else is
// optional.
type ObjectBuilder[T any, V comparable] struct {
	cfg engineConfig[V, T]
}

// NewObjectBuilder starts building an ObjectCache[T] driven by source and
// processor, refreshed every fetchInterval.
func NewObjectBuilder[T any, V comparable](source Source[V], processor Processor[T], fetchInterval time.Duration) *ObjectBuilder[T, V] {
	return &ObjectBuilder[T, V]{cfg: engineConfig[V, T]{
		source:        source,
		processor:     processor,
		fetchInterval: fetchInterval,
	}}
}

// WithName labels the refresher's goroutine for profiling, in the
// thread-backed flavor only.
func (b *ObjectBuilder[T, V]) WithName(name string) *ObjectBuilder[T, V] {
	b.cfg.name = name
	return b
}

// WithFallback configures the value published if the initial fetch fails.
func (b *ObjectBuilder[T, V]) WithFallback(fallback T) *ObjectBuilder[T, V] {
	b.cfg.hasFallback = true
	b.cfg.fallback = fallback
	return b
}

// WithOnUpdate registers a callback fired once per successful publish.
func (b *ObjectBuilder[T, V]) WithOnUpdate(f OnUpdateFunc[V, T]) *ObjectBuilder[T, V] {
	b.cfg.onUpdate = f
	return b
}

// WithOnFailure registers a callback fired on each fetch or process
// failure.
func (b *ObjectBuilder[T, V]) WithOnFailure(f OnFailureFunc) *ObjectBuilder[T, V] {
	b.cfg.onFailure = f
	return b
}

// WithMetrics registers an observability sink.
func (b *ObjectBuilder[T, V]) WithMetrics(m Metrics) *ObjectBuilder[T, V] {
	b.cfg.metrics = m
	return b
}

// WithLogger registers a logger for internal diagnostics.
func (b *ObjectBuilder[T, V]) WithLogger(l Logger) *ObjectBuilder[T, V] {
	b.cfg.logger = l
	return b
}

// WithCooperativeGroup switches to the cooperative-suspension execution
// flavor.
func (b *ObjectBuilder[T, V]) WithCooperativeGroup(g *errgroup.Group) *ObjectBuilder[T, V] {
	b.cfg.group = g
	return b
}

// Build performs one synchronous refresh attempt, establishes the initial
// snapshot per the fallback policy, starts the background refresher, and
// returns a usable ObjectCache.
func (b *ObjectBuilder[T, V]) Build(ctx context.Context) (*ObjectCache[T, V], error) {
	eng, err := buildEngine[V, T](ctx, b.cfg)
	if err != nil {
		return nil, err
	}
	return &ObjectCache[T, V]{Cache: eng}, nil
}
