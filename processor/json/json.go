// Package json decodes JSON payloads directly into mirrorcache collections.
// Deliberately built on encoding/json rather than a third-party decoder
// (see DESIGN.md): a JSON collection snapshot is exactly the shape
// encoding/json already handles well.
package json

import (
	"encoding/json"
	"fmt"

	mirrorcache "github.com/hkolbeck/mirror-cache"
)

// SetProcessor decodes a JSON array into a mirrorcache.Set[T].
type SetProcessor[T comparable] struct{}

var _ mirrorcache.Processor[mirrorcache.Set[string]] = SetProcessor[string]{}

func (SetProcessor[T]) Process(payload mirrorcache.RawPayload) (mirrorcache.Set[T], error) {
	var items []T
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, fmt.Errorf("json processor: decode array: %w", err)
	}
	return mirrorcache.NewSet(items...), nil
}

// MapProcessor decodes a JSON object into a map[K]E. K must be a type
// encoding/json can use as a map key (string, or an integer/TextMarshaler
// type).
type MapProcessor[K comparable, E any] struct{}

var _ mirrorcache.Processor[map[string]string] = MapProcessor[string, string]{}

func (MapProcessor[K, E]) Process(payload mirrorcache.RawPayload) (map[K]E, error) {
	var m map[K]E
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("json processor: decode object: %w", err)
	}
	return m, nil
}

// ObjectProcessor decodes a JSON document directly into a T, for the
// Object collection view.
type ObjectProcessor[T any] struct{}

var _ mirrorcache.Processor[struct{}] = ObjectProcessor[struct{}]{}

func (ObjectProcessor[T]) Process(payload mirrorcache.RawPayload) (T, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("json processor: decode object: %w", err)
	}
	return v, nil
}
