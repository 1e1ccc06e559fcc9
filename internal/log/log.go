// Package log defines the logging abstraction used across the engine.
//
// Every component accepts a [Logger] in its configuration and defaults to
// [Noop] when none is given, so unit tests never need a real logging
// backend wired in.
package log

// Kv is a set of structured key-value pairs attached to log lines.
type Kv map[string]interface{}

// Logger is the logging interface every component depends on.
type Logger interface {
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})

	// WithValues returns a new Logger that always includes kv in its output.
	WithValues(kv Kv) Logger
}

type noop struct{}

func (noop) Infof(format string, args ...interface{})    {}
func (noop) Warningf(format string, args ...interface{}) {}
func (noop) Errorf(format string, args ...interface{})   {}
func (noop) Debugf(format string, args ...interface{})   {}
func (n noop) WithValues(kv Kv) Logger                    { return n }

// Noop is a Logger that discards everything. It is the default logger
// used when a component's configuration doesn't set one.
var Noop Logger = noop{}
