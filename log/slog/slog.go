// Package slog adapts the standard library's log/slog to mirrorcache.Logger.
package slog

import (
	"context"
	stdslog "log/slog"

	"github.com/hkolbeck/mirror-cache"
)

var _ mirrorcache.Logger = Logger{}

// Logger wraps a *slog.Logger.
type Logger struct{ L *stdslog.Logger }

func (s Logger) Debug(msg string, f mirrorcache.Fields) {
	s.L.LogAttrs(context.Background(), stdslog.LevelDebug, msg, attrs(f)...)
}
func (s Logger) Info(msg string, f mirrorcache.Fields) {
	s.L.LogAttrs(context.Background(), stdslog.LevelInfo, msg, attrs(f)...)
}
func (s Logger) Warn(msg string, f mirrorcache.Fields) {
	s.L.LogAttrs(context.Background(), stdslog.LevelWarn, msg, attrs(f)...)
}
func (s Logger) Error(msg string, f mirrorcache.Fields) {
	s.L.LogAttrs(context.Background(), stdslog.LevelError, msg, attrs(f)...)
}

func attrs(f mirrorcache.Fields) []stdslog.Attr {
	if len(f) == 0 {
		return nil
	}
	out := make([]stdslog.Attr, 0, len(f))
	for k, v := range f {
		out = append(out, stdslog.Any(k, v))
	}
	return out
}
