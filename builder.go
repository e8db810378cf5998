package mirrorcache

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// engineConfig holds everything a MapBuilder/SetBuilder/ObjectBuilder
// accumulates before Build() is called. It is generic over the engine's
// version and collection types so the three typed builders can share one
// construction path.
type engineConfig[V comparable, C any] struct {
	source    Source[V]
	processor Processor[C]

	fetchInterval time.Duration
	name          string

	hasFallback bool
	fallback    C

	onUpdate  OnUpdateFunc[V, C]
	onFailure OnFailureFunc
	metrics   Metrics
	logger    Logger

	// group, if set, switches the cache to the cooperative execution
	// flavor: the refresher registers itself on this errgroup instead of
	// spawning its own goroutine.
	group *errgroup.Group
}

// buildEngine enforces required-field completeness, performs the
// synchronous initial fetch, applies the fallback policy, and starts the
// background refresher in whichever execution flavor cfg.group selects.
// It is shared by MapBuilder.Build, SetBuilder.Build, and
// ObjectBuilder.Build.
func buildEngine[V comparable, C any](ctx context.Context, cfg engineConfig[V, C]) (*Cache[V, C], error) {
	var missing []error
	if cfg.source == nil {
		missing = append(missing, errMissingField{field: "source"})
	}
	if cfg.processor == nil {
		missing = append(missing, errMissingField{field: "processor"})
	}
	if cfg.fetchInterval <= 0 {
		missing = append(missing, errInvalidFetchInterval{interval: cfg.fetchInterval})
	}
	if len(missing) > 0 {
		return nil, newBuildError(missing...)
	}

	e := &engineCore[V, C]{
		source:        cfg.source,
		processor:     cfg.processor,
		fetchInterval: cfg.fetchInterval,
		name:          cfg.name,
		onUpdate:      cfg.onUpdate,
		onFailure:     cfg.onFailure,
		metrics:       coalesce[Metrics](cfg.metrics, NopMetrics{}),
		logger:        coalesce[Logger](cfg.logger, NopLogger{}),
	}
	e.stopCh = make(chan struct{})
	e.done = make(chan struct{})
	e.setState(StateIdle)

	rootCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	if err := e.initialFetch(rootCtx); err != nil {
		if !cfg.hasFallback {
			cancel()
			return nil, newBuildError(err)
		}
		e.cell.store(&Snapshot[V, C]{collection: cfg.fallback})
		e.metrics.RecordFallback()
		e.logger.Warn("initial fetch failed, publishing fallback snapshot", Fields{"error": err})
	}
	e.setState(StateSleeping)

	if cfg.group != nil {
		cfg.group.Go(func() error { return e.runCooperative(rootCtx) })
	} else {
		go e.runThread(rootCtx)
	}

	c := &Cache[V, C]{core: e}
	c.finalize()

	return c, nil
}
