// Package msgpack decodes MessagePack-encoded snapshots into mirrorcache
// collections, using github.com/vmihailenco/msgpack/v5. It mirrors the
// teacher's codec.Msgpack[V].
package msgpack

import (
	"fmt"

	mirrorcache "github.com/hkolbeck/mirror-cache"
	"github.com/vmihailenco/msgpack/v5"
)

// ObjectProcessor decodes a MessagePack document directly into a T. The
// zero value is ready to use.
type ObjectProcessor[T any] struct{}

var _ mirrorcache.Processor[struct{}] = ObjectProcessor[struct{}]{}

func (ObjectProcessor[T]) Process(payload mirrorcache.RawPayload) (T, error) {
	var v T
	if err := msgpack.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("msgpack processor: decode: %w", err)
	}
	return v, nil
}

// SetProcessor decodes a MessagePack array into a mirrorcache.Set[T]. The
// zero value is ready to use.
type SetProcessor[T comparable] struct{}

var _ mirrorcache.Processor[mirrorcache.Set[string]] = SetProcessor[string]{}

func (SetProcessor[T]) Process(payload mirrorcache.RawPayload) (mirrorcache.Set[T], error) {
	var items []T
	if err := msgpack.Unmarshal(payload, &items); err != nil {
		return nil, fmt.Errorf("msgpack processor: decode array: %w", err)
	}
	return mirrorcache.NewSet(items...), nil
}

// MapProcessor decodes a MessagePack map into a map[K]E. The zero value is
// ready to use.
type MapProcessor[K comparable, E any] struct{}

var _ mirrorcache.Processor[map[string]string] = MapProcessor[string, string]{}

func (MapProcessor[K, E]) Process(payload mirrorcache.RawPayload) (map[K]E, error) {
	var m map[K]E
	if err := msgpack.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("msgpack processor: decode map: %w", err)
	}
	return m, nil
}
