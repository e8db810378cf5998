// Package logrus adapts github.com/sirupsen/logrus to mirrorcache.Logger.
package logrus

import (
	"github.com/hkolbeck/mirror-cache"
	"github.com/sirupsen/logrus"
)

var _ mirrorcache.Logger = Logger{}

// Logger wraps a *logrus.Entry (use logrus.NewEntry(logger) for a bare
// *logrus.Logger).
type Logger struct{ E *logrus.Entry }

func (l Logger) Debug(msg string, f mirrorcache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Debug(msg)
}
func (l Logger) Info(msg string, f mirrorcache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Info(msg)
}
func (l Logger) Warn(msg string, f mirrorcache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Warn(msg)
}
func (l Logger) Error(msg string, f mirrorcache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Error(msg)
}
