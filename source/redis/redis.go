// Package redis implements mirrorcache.Source by polling a single Redis
// key. The version token is a content hash of the key's value rather
// than anything Redis itself tracks, since plain GET carries no
// revision.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	mirrorcache "github.com/hkolbeck/mirror-cache"
	goredis "github.com/redis/go-redis/v9"
)

// ErrNilClient is returned by New if client is nil.
var ErrNilClient = errors.New("redis source: nil client")

// Source polls a single Redis key. Version is a hex-encoded xxhash of the
// key's value.
type Source struct {
	rdb goredis.UniversalClient
	key string
}

var _ mirrorcache.Source[string] = (*Source)(nil)

// New returns a Source polling key via client.
func New(client goredis.UniversalClient, key string) (*Source, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return &Source{rdb: client, key: key}, nil
}

// Fetch implements mirrorcache.Source[string].
func (s *Source) Fetch(ctx context.Context, previous *string) (mirrorcache.Outcome[string], error) {
	b, err := s.rdb.Get(ctx, s.key).Bytes()
	if err == goredis.Nil {
		return mirrorcache.Outcome[string]{}, fmt.Errorf("redis source: key %q not found", s.key)
	}
	if err != nil {
		return mirrorcache.Outcome[string]{}, fmt.Errorf("redis source: get %q: %w", s.key, err)
	}

	version := strconv.FormatUint(xxhash.Sum64(b), 16)
	if previous != nil && *previous == version {
		return mirrorcache.UnchangedOutcome[string](), nil
	}
	return mirrorcache.UpdatedOutcome(version, b), nil
}
