package mirrorcache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// scriptedSource replays a fixed sequence of outcomes, one per call to
// Fetch, holding on the last entry once the script is exhausted. It
// notifies calls (if non-nil) after recording each call, so tests can wait
// for a specific call count instead of sleeping blindly.
type scriptedSource struct {
	mu     sync.Mutex
	n      int
	script []scriptStep
	calls  chan int
}

type scriptStep struct {
	unchanged bool
	fail      error
	version   int
	payload   string
}

func updatedStep(version int, payload string) scriptStep {
	return scriptStep{version: version, payload: payload}
}
func unchangedStep() scriptStep { return scriptStep{unchanged: true} }
func failStep(err error) scriptStep { return scriptStep{fail: err} }

func (s *scriptedSource) Fetch(ctx context.Context, previous *int) (Outcome[int], error) {
	s.mu.Lock()
	idx := s.n
	if idx >= len(s.script) {
		idx = len(s.script) - 1
	}
	step := s.script[idx]
	s.n++
	callNum := s.n
	s.mu.Unlock()

	if s.calls != nil {
		select {
		case s.calls <- callNum:
		default:
		}
	}

	if step.fail != nil {
		return Outcome[int]{}, step.fail
	}
	if step.unchanged {
		return UnchangedOutcome[int](), nil
	}
	return UpdatedOutcome(step.version, []byte(step.payload)), nil
}

func (s *scriptedSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// waitForCalls blocks until at least n calls have been made, or fails the
// test after a generous timeout.
func waitForCalls(t *testing.T, s *scriptedSource, n int) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if s.callCount() >= n {
			return
		}
		select {
		case <-s.calls:
		case <-deadline:
			t.Fatalf("timed out waiting for %d calls, got %d", n, s.callCount())
		}
	}
}

// kvProcessor parses "key=int" lines into a map[string]int. Blank lines are
// skipped; anything else malformed fails the whole dataset.
type kvProcessor struct{}

func (kvProcessor) Process(payload RawPayload) (map[string]int, error) {
	m := make(map[string]int)
	for _, line := range strings.Split(string(payload), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed line %q", line)
		}
		v, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("bad int in %q: %w", line, err)
		}
		m[parts[0]] = v
	}
	return m, nil
}

func newScriptedBuilder(steps ...scriptStep) (*MapBuilder[string, int, int], *scriptedSource) {
	src := &scriptedSource{script: steps, calls: make(chan int, 64)}
	b := NewMapBuilder[string, int, int](src, kvProcessor{}, time.Hour)
	return b, src
}

// --- scenario 1: initial success ---

func TestInitialSuccess(t *testing.T) {
	b, _ := newScriptedBuilder(updatedStep(1, "a=1\nb=2"))
	var updates int
	var lastNewVersion int
	var lastOld *int
	b.WithOnUpdate(func(old *int, new int, collection map[string]int) {
		updates++
		lastNewVersion = new
		lastOld = old
	})

	c, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer c.Shutdown(context.Background())

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("get(a) = %v, %v; want 1, true", v, ok)
	}
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Fatalf("get(b) = %v, %v; want 2, true", v, ok)
	}
	if c.LastSuccessfulUpdate().IsZero() {
		t.Fatal("expected LastSuccessfulUpdate to be set")
	}
	if updates != 1 {
		t.Fatalf("onUpdate fired %d times; want 1", updates)
	}
	if lastNewVersion != 1 {
		t.Fatalf("onUpdate new version = %d; want 1", lastNewVersion)
	}
	if lastOld != nil {
		t.Fatalf("onUpdate old version = %v; want nil on first publish", lastOld)
	}
}

// --- scenario 2: initial failure with fallback ---

func TestInitialFailureWithFallback(t *testing.T) {
	b, src := newScriptedBuilder(
		failStep(errors.New("boom")),
		updatedStep(7, "a=9"),
	)
	b.WithFallback(map[string]int{})

	var updates int
	var failures int
	b.WithOnUpdate(func(old *int, new int, collection map[string]int) { updates++ })
	b.WithOnFailure(func(cause error, phase Phase) { failures++ })

	// Use a short interval so the background refresher gets a second
	// chance quickly; newScriptedBuilder defaults to a 1h interval, so
	// override it on the builder's config directly.
	b.cfg.fetchInterval = 20 * time.Millisecond

	c, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer c.Shutdown(context.Background())

	if _, ok := c.Get("a"); ok {
		t.Fatal("expected fallback (empty) map right after Build")
	}
	if !c.LastSuccessfulUpdate().IsZero() {
		t.Fatal("fallback publish must not set LastSuccessfulUpdate")
	}

	waitForCalls(t, src, 2)
	// Give the refresher a moment to finish publishing after the second
	// fetch call is observed.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v, ok := c.Get("a"); ok && v == 9 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	v, ok := c.Get("a")
	if !ok || v != 9 {
		t.Fatalf("get(a) after tick = %v, %v; want 9, true", v, ok)
	}
	if updates != 1 {
		t.Fatalf("onUpdate fired %d times; want 1", updates)
	}
	if failures != 0 {
		t.Fatalf("onFailure fired %d times during build+first real tick; want 0 (build failures aren't reported via callback)", failures)
	}
}

// --- scenario 3: transient process failure ---

func TestTransientProcessFailure(t *testing.T) {
	b, src := newScriptedBuilder(
		updatedStep(2, "a=1"),
		updatedStep(3, "a=notanint"),
		updatedStep(4, "a=5"),
	)
	// Long enough that tick 3 cannot run inside the 50ms pause after tick 2.
	b.cfg.fetchInterval = 200 * time.Millisecond

	var failures []Phase
	var mu sync.Mutex
	b.WithOnFailure(func(cause error, phase Phase) {
		mu.Lock()
		failures = append(failures, phase)
		mu.Unlock()
	})

	c, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer c.Shutdown(context.Background())

	if v, _ := c.Get("a"); v != 1 {
		t.Fatalf("after initial fetch: get(a) = %d; want 1", v)
	}

	waitForCalls(t, src, 2)
	time.Sleep(50 * time.Millisecond) // let tick 2 finish publishing-or-not
	if v, _ := c.Get("a"); v != 1 {
		t.Fatalf("after failed process tick: get(a) = %d; want unchanged 1", v)
	}

	waitForCalls(t, src, 3)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v, _ := c.Get("a"); v == 5 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if v, _ := c.Get("a"); v != 5 {
		t.Fatalf("after recovery tick: get(a) = %d; want 5", v)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(failures) != 1 || failures[0] != PhaseProcess {
		t.Fatalf("failures = %v; want exactly one PhaseProcess failure", failures)
	}
}

// --- scenario 5: unchanged forever after one update ---

func TestUnchangedAfterUpdateFiresOnUpdateOnce(t *testing.T) {
	b, src := newScriptedBuilder(
		updatedStep(1, "a=1"),
		unchangedStep(),
	)
	b.cfg.fetchInterval = 10 * time.Millisecond

	var updates int
	var mu sync.Mutex
	b.WithOnUpdate(func(old *int, new int, collection map[string]int) {
		mu.Lock()
		updates++
		mu.Unlock()
	})

	c, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer c.Shutdown(context.Background())

	waitForCalls(t, src, 5)
	time.Sleep(30 * time.Millisecond)

	mu.Lock()
	got := updates
	mu.Unlock()
	if got != 1 {
		t.Fatalf("onUpdate fired %d times; want exactly 1", got)
	}
	if c.LastSuccessfulCheck().Before(c.LastSuccessfulUpdate()) {
		t.Fatal("LastSuccessfulCheck must be >= LastSuccessfulUpdate")
	}
}

// --- property: processor panic does not kill the refresher ---

type panicOnceProcessor struct {
	mu       sync.Mutex
	panicked bool
}

func (p *panicOnceProcessor) Process(payload RawPayload) (map[string]int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.panicked {
		p.panicked = true
		panic("synthetic processor panic")
	}
	return kvProcessor{}.Process(payload)
}

func TestProcessorPanicDoesNotKillRefresher(t *testing.T) {
	src := &scriptedSource{
		script: []scriptStep{updatedStep(1, "a=1"), updatedStep(2, "a=2")},
		calls:  make(chan int, 64),
	}
	proc := &panicOnceProcessor{}
	b := NewMapBuilder[string, int, int](src, proc, time.Hour)
	b.WithFallback(map[string]int{})

	var failures int
	var mu sync.Mutex
	b.WithOnFailure(func(cause error, phase Phase) {
		mu.Lock()
		failures++
		mu.Unlock()
	})
	b.cfg.fetchInterval = 15 * time.Millisecond

	c, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer c.Shutdown(context.Background())

	// initial fetch panics (proc.panicked becomes true) and falls back.
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected fallback after panicking initial process")
	}

	waitForCalls(t, src, 2)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v, ok := c.Get("a"); ok && v == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if v, ok := c.Get("a"); !ok || v != 2 {
		t.Fatalf("get(a) after recovery tick = %v, %v; want 2, true", v, ok)
	}
}

// --- property: shutdown is idempotent and bounded ---

type blockingSource struct {
	release chan struct{}
}

func (s *blockingSource) Fetch(ctx context.Context, previous *int) (Outcome[int], error) {
	select {
	case <-s.release:
	case <-ctx.Done():
	}
	return UpdatedOutcome(1, []byte("a=1")), nil
}

func TestShutdownDuringFetchIsBoundedAndIdempotent(t *testing.T) {
	src := &blockingSource{release: make(chan struct{}, 1)}
	// One token lets the initial fetch through so Build completes; every
	// subsequent tick then blocks until ctx is cancelled.
	src.release <- struct{}{}
	b := NewMapBuilder[string, int, int](src, kvProcessor{}, 10*time.Millisecond)
	c, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for c.State() != StateFetching {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for refresher to enter a blocking fetch")
		}
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	// second shutdown must be a no-op, not a panic, and must not block.
	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}

// --- builder validation ---

func TestBuildMissingFields(t *testing.T) {
	b := &MapBuilder[string, int, int]{}
	_, err := b.Build(context.Background())
	if err == nil {
		t.Fatal("expected BuildError for missing fields")
	}
	var be *BuildError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BuildError, got %T", err)
	}
	if len(be.multi.Errors) < 3 {
		t.Fatalf("expected at least 3 aggregated causes (source, processor, interval), got %d: %v", len(be.multi.Errors), be)
	}
}

func TestBuildRejectsNonPositiveInterval(t *testing.T) {
	src := &scriptedSource{script: []scriptStep{updatedStep(1, "a=1")}}
	b := NewMapBuilder[string, int, int](src, kvProcessor{}, 0)
	_, err := b.Build(context.Background())
	if err == nil {
		t.Fatal("expected BuildError for zero fetch interval")
	}
}

func TestBuildFailureWithoutFallback(t *testing.T) {
	src := &scriptedSource{script: []scriptStep{failStep(errors.New("down"))}}
	b := NewMapBuilder[string, int, int](src, kvProcessor{}, time.Second)
	_, err := b.Build(context.Background())
	if err == nil {
		t.Fatal("expected BuildError when initial fetch fails with no fallback")
	}
}

// --- Set and Object flavors ---

type staticSetSource struct{}

func (staticSetSource) Fetch(ctx context.Context, previous *int) (Outcome[int], error) {
	if previous != nil {
		return UnchangedOutcome[int](), nil
	}
	return UpdatedOutcome(1, []byte("red\nblue\n")), nil
}

type lineSetProcessor struct{}

func (lineSetProcessor) Process(payload RawPayload) (Set[string], error) {
	set := Set[string]{}
	for _, line := range strings.Split(string(payload), "\n") {
		if line == "" {
			continue
		}
		set[line] = struct{}{}
	}
	return set, nil
}

func TestSetCache(t *testing.T) {
	b := NewSetBuilder[string, int](staticSetSource{}, lineSetProcessor{}, time.Hour)
	c, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer c.Shutdown(context.Background())

	if !c.Contains("red") || !c.Contains("blue") {
		t.Fatal("expected set to contain red and blue")
	}
	if c.Contains("green") {
		t.Fatal("did not expect set to contain green")
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d; want 2", c.Len())
	}
}

type staticObjectSource struct{}

func (staticObjectSource) Fetch(ctx context.Context, previous *int) (Outcome[int], error) {
	if previous != nil {
		return UnchangedOutcome[int](), nil
	}
	return UpdatedOutcome(1, []byte("42")), nil
}

type intObjectProcessor struct{}

func (intObjectProcessor) Process(payload RawPayload) (int, error) {
	return strconv.Atoi(string(payload))
}

func TestObjectCache(t *testing.T) {
	b := NewObjectBuilder[int, int](staticObjectSource{}, intObjectProcessor{}, time.Hour)
	c, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer c.Shutdown(context.Background())

	if got := c.Get(); got != 42 {
		t.Fatalf("Get() = %d; want 42", got)
	}
}
