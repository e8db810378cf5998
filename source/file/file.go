// Package file implements mirrorcache.Source by polling a local file.
// Version is a content hash, falling back to mtime for files too large
// to hash cheaply, so that a file rewritten with identical bytes at a
// new mtime does not spuriously republish.
package file

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/cespare/xxhash/v2"
	mirrorcache "github.com/hkolbeck/mirror-cache"
)

// DefaultMaxHashBytes is the size above which Source stops hashing file
// contents and falls back to the modification time as the version token.
const DefaultMaxHashBytes = 8 << 20 // 8MiB

// Source polls a single local file. Version is a hex-encoded xxhash of the
// file's contents, or "mtime:<unixnano>" for files larger than
// MaxHashBytes.
type Source struct {
	Path string

	// MaxHashBytes caps how large a file Source will read fully in order
	// to hash it. Zero means DefaultMaxHashBytes.
	MaxHashBytes int64
}

var _ mirrorcache.Source[string] = (*Source)(nil)

// New returns a Source polling path with the default size cutoff.
func New(path string) *Source {
	return &Source{Path: path}
}

func (s *Source) maxHashBytes() int64 {
	if s.MaxHashBytes > 0 {
		return s.MaxHashBytes
	}
	return DefaultMaxHashBytes
}

// Fetch implements mirrorcache.Source[string].
func (s *Source) Fetch(ctx context.Context, previous *string) (mirrorcache.Outcome[string], error) {
	if err := ctx.Err(); err != nil {
		return mirrorcache.Outcome[string]{}, err
	}

	info, err := os.Stat(s.Path)
	if err != nil {
		return mirrorcache.Outcome[string]{}, fmt.Errorf("file source: stat %s: %w", s.Path, err)
	}

	if info.Size() > s.maxHashBytes() {
		version := "mtime:" + strconv.FormatInt(info.ModTime().UnixNano(), 10)
		if previous != nil && *previous == version {
			return mirrorcache.UnchangedOutcome[string](), nil
		}
		data, err := os.ReadFile(s.Path)
		if err != nil {
			return mirrorcache.Outcome[string]{}, fmt.Errorf("file source: read %s: %w", s.Path, err)
		}
		return mirrorcache.UpdatedOutcome(version, data), nil
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return mirrorcache.Outcome[string]{}, fmt.Errorf("file source: read %s: %w", s.Path, err)
	}
	version := strconv.FormatUint(xxhash.Sum64(data), 16)
	if previous != nil && *previous == version {
		return mirrorcache.UnchangedOutcome[string](), nil
	}
	return mirrorcache.UpdatedOutcome(version, data), nil
}
