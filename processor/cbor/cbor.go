// Package cbor decodes CBOR-encoded snapshots into mirrorcache
// collections, using github.com/fxamacker/cbor/v2. It mirrors the
// teacher's codec.CBOR[V] almost verbatim, but processes into a
// collection rather than a single cached value.
package cbor

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	mirrorcache "github.com/hkolbeck/mirror-cache"
)

func decMode() (cbor.DecMode, error) {
	return (cbor.DecOptions{}).DecMode()
}

// ObjectProcessor decodes a CBOR document directly into a T.
type ObjectProcessor[T any] struct {
	dec cbor.DecMode
}

var _ mirrorcache.Processor[struct{}] = ObjectProcessor[struct{}]{}

// NewObjectProcessor constructs an ObjectProcessor.
func NewObjectProcessor[T any]() (ObjectProcessor[T], error) {
	dm, err := decMode()
	if err != nil {
		return ObjectProcessor[T]{}, err
	}
	return ObjectProcessor[T]{dec: dm}, nil
}

func (p ObjectProcessor[T]) Process(payload mirrorcache.RawPayload) (T, error) {
	var v T
	if err := p.dec.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("cbor processor: decode: %w", err)
	}
	return v, nil
}

// SetProcessor decodes a CBOR array into a mirrorcache.Set[T].
type SetProcessor[T comparable] struct {
	dec cbor.DecMode
}

var _ mirrorcache.Processor[mirrorcache.Set[string]] = SetProcessor[string]{}

// NewSetProcessor constructs a SetProcessor.
func NewSetProcessor[T comparable]() (SetProcessor[T], error) {
	dm, err := decMode()
	if err != nil {
		return SetProcessor[T]{}, err
	}
	return SetProcessor[T]{dec: dm}, nil
}

func (p SetProcessor[T]) Process(payload mirrorcache.RawPayload) (mirrorcache.Set[T], error) {
	var items []T
	if err := p.dec.Unmarshal(payload, &items); err != nil {
		return nil, fmt.Errorf("cbor processor: decode array: %w", err)
	}
	return mirrorcache.NewSet(items...), nil
}

// MapProcessor decodes a CBOR map into a map[K]E.
type MapProcessor[K comparable, E any] struct {
	dec cbor.DecMode
}

var _ mirrorcache.Processor[map[string]string] = MapProcessor[string, string]{}

// NewMapProcessor constructs a MapProcessor.
func NewMapProcessor[K comparable, E any]() (MapProcessor[K, E], error) {
	dm, err := decMode()
	if err != nil {
		return MapProcessor[K, E]{}, err
	}
	return MapProcessor[K, E]{dec: dm}, nil
}

func (p MapProcessor[K, E]) Process(payload mirrorcache.RawPayload) (map[K]E, error) {
	var m map[K]E
	if err := p.dec.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("cbor processor: decode map: %w", err)
	}
	return m, nil
}
