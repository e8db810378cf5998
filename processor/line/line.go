// Package line implements line-oriented map/set mirrorcache.Processors,
// using a three-valued accept/skip/fail parse contract: a single skipped
// line must not reject the whole dataset.
package line

import (
	"bufio"
	"bytes"
	"fmt"

	mirrorcache "github.com/hkolbeck/mirror-cache"
)

// Outcome is what a user parse function decided about one line.
type Outcome int

const (
	// Accept means the line produced a usable entry.
	Accept Outcome = iota
	// Skip means the line is intentionally ignored (blank, comment, ...)
	// and must not fail the whole dataset.
	Skip
	// Fail means the line is malformed; the entire dataset is rejected.
	Fail
)

// SetParseFunc parses one line into a set member, or decides to Skip or
// Fail it. err is only consulted when outcome is Fail.
type SetParseFunc[T comparable] func(line string) (value T, outcome Outcome, err error)

// SetProcessor turns a newline-delimited byte stream into a
// mirrorcache.Set[T] using Parse for each line.
type SetProcessor[T comparable] struct {
	Parse SetParseFunc[T]
}

var _ mirrorcache.Processor[mirrorcache.Set[string]] = SetProcessor[string]{}

// Process implements mirrorcache.Processor[mirrorcache.Set[T]].
func (p SetProcessor[T]) Process(payload mirrorcache.RawPayload) (mirrorcache.Set[T], error) {
	set := mirrorcache.Set[T]{}
	scanner := bufio.NewScanner(bytes.NewReader(payload))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		v, outcome, err := p.Parse(scanner.Text())
		switch outcome {
		case Skip:
			continue
		case Accept:
			set[v] = struct{}{}
		case Fail:
			return nil, fmt.Errorf("line processor: line %d: %w", lineNo, err)
		default:
			return nil, fmt.Errorf("line processor: line %d: unknown outcome %d", lineNo, outcome)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("line processor: %w", err)
	}
	return set, nil
}

// MapParseFunc parses one line into a map entry, or decides to Skip or
// Fail it. err is only consulted when outcome is Fail.
type MapParseFunc[K comparable, E any] func(line string) (key K, value E, outcome Outcome, err error)

// MapProcessor turns a newline-delimited byte stream into a map[K]E using
// Parse for each line.
type MapProcessor[K comparable, E any] struct {
	Parse MapParseFunc[K, E]
}

var _ mirrorcache.Processor[map[string]string] = MapProcessor[string, string]{}

// Process implements mirrorcache.Processor[map[K]E].
func (p MapProcessor[K, E]) Process(payload mirrorcache.RawPayload) (map[K]E, error) {
	m := make(map[K]E)
	scanner := bufio.NewScanner(bytes.NewReader(payload))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		k, v, outcome, err := p.Parse(scanner.Text())
		switch outcome {
		case Skip:
			continue
		case Accept:
			m[k] = v
		case Fail:
			return nil, fmt.Errorf("line processor: line %d: %w", lineNo, err)
		default:
			return nil, fmt.Errorf("line processor: line %d: unknown outcome %d", lineNo, outcome)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("line processor: %w", err)
	}
	return m, nil
}
