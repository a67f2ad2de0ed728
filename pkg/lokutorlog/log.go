// Package lokutorlog carries the teacher's Logger interface forward and
// adds a concrete implementation backed by charmbracelet/log, the
// structured/leveled logger used elsewhere in the pack for colorized CLI
// output. Components in this repo depend only on the Logger interface;
// NoOpLogger lets tests and library callers opt out entirely.
package lokutorlog

import (
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Logger is the structured logging contract every pipeline component
// accepts, unchanged from the teacher's pkg/orchestrator.Logger.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// NoOpLogger discards everything. It is the default when no Logger is
// configured.
type NoOpLogger struct{}

func (NoOpLogger) Debug(msg string, args ...interface{}) {}
func (NoOpLogger) Info(msg string, args ...interface{})  {}
func (NoOpLogger) Warn(msg string, args ...interface{})  {}
func (NoOpLogger) Error(msg string, args ...interface{}) {}

// Charm wraps a charmbracelet/log.Logger.
type Charm struct {
	l *charmlog.Logger
}

// NewCharm builds a Charm logger writing to stderr with the given
// minimum level ("debug", "info", "warn", "error").
func NewCharm(level string) *Charm {
	l := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
	if lvl, err := charmlog.ParseLevel(level); err == nil {
		l.SetLevel(lvl)
	}
	return &Charm{l: l}
}

func (c *Charm) Debug(msg string, args ...interface{}) { c.l.Debug(msg, args...) }
func (c *Charm) Info(msg string, args ...interface{})  { c.l.Info(msg, args...) }
func (c *Charm) Warn(msg string, args ...interface{})  { c.l.Warn(msg, args...) }
func (c *Charm) Error(msg string, args ...interface{}) { c.l.Error(msg, args...) }
