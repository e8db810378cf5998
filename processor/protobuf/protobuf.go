// Package protobuf decodes a google.golang.org/protobuf/types/known/structpb
// payload into mirrorcache collections. Using the well-known types instead
// of a protoc-generated message means the protobuf codec is usable
// without a build-time code generation step.
package protobuf

import (
	"fmt"

	mirrorcache "github.com/hkolbeck/mirror-cache"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ObjectProcessor decodes a wire-encoded structpb.Struct directly into an
// *structpb.Struct, for the Object collection view.
type ObjectProcessor struct{}

var _ mirrorcache.Processor[*structpb.Struct] = ObjectProcessor{}

func (ObjectProcessor) Process(payload mirrorcache.RawPayload) (*structpb.Struct, error) {
	s := &structpb.Struct{}
	if err := proto.Unmarshal(payload, s); err != nil {
		return nil, fmt.Errorf("protobuf processor: decode struct: %w", err)
	}
	return s, nil
}

// MapProcessor decodes a wire-encoded structpb.Struct into a map[string]E,
// converting each field's dynamically-typed *structpb.Value with Convert.
type MapProcessor[E any] struct {
	Convert func(*structpb.Value) (E, error)
}

var _ mirrorcache.Processor[map[string]any] = MapProcessor[any]{}

func (p MapProcessor[E]) Process(payload mirrorcache.RawPayload) (map[string]E, error) {
	s := &structpb.Struct{}
	if err := proto.Unmarshal(payload, s); err != nil {
		return nil, fmt.Errorf("protobuf processor: decode struct: %w", err)
	}
	out := make(map[string]E, len(s.GetFields()))
	for k, v := range s.GetFields() {
		e, err := p.Convert(v)
		if err != nil {
			return nil, fmt.Errorf("protobuf processor: field %q: %w", k, err)
		}
		out[k] = e
	}
	return out, nil
}

// SetProcessor decodes a wire-encoded structpb.ListValue into a
// mirrorcache.Set[T], converting each dynamically-typed *structpb.Value
// with Convert.
type SetProcessor[T comparable] struct {
	Convert func(*structpb.Value) (T, error)
}

var _ mirrorcache.Processor[mirrorcache.Set[string]] = SetProcessor[string]{}

func (p SetProcessor[T]) Process(payload mirrorcache.RawPayload) (mirrorcache.Set[T], error) {
	l := &structpb.ListValue{}
	if err := proto.Unmarshal(payload, l); err != nil {
		return nil, fmt.Errorf("protobuf processor: decode list: %w", err)
	}
	out := make(mirrorcache.Set[T], len(l.GetValues()))
	for i, v := range l.GetValues() {
		t, err := p.Convert(v)
		if err != nil {
			return nil, fmt.Errorf("protobuf processor: item %d: %w", i, err)
		}
		out[t] = struct{}{}
	}
	return out, nil
}

// StringValue is a convenience Convert function for SetProcessor[string]
// and MapProcessor[string]: it requires the structpb.Value to be a string.
func StringValue(v *structpb.Value) (string, error) {
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("expected string value, got %T", v.GetKind())
	}
	return s.StringValue, nil
}
