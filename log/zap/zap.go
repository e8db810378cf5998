// Package zap adapts go.uber.org/zap to mirrorcache.Logger.
package zap

import (
	"github.com/hkolbeck/mirror-cache"
	"go.uber.org/zap"
)

var _ mirrorcache.Logger = Logger{}

// Logger wraps a *zap.Logger.
type Logger struct{ L *zap.Logger }

func (z Logger) Debug(msg string, f mirrorcache.Fields) { z.L.Debug(msg, zf(f)...) }
func (z Logger) Info(msg string, f mirrorcache.Fields)  { z.L.Info(msg, zf(f)...) }
func (z Logger) Warn(msg string, f mirrorcache.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z Logger) Error(msg string, f mirrorcache.Fields) { z.L.Error(msg, zf(f)...) }

func zf(f mirrorcache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		out = append(out, zap.Any(k, v))
	}
	return out
}
