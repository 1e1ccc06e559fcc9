// Package logrus adapts github.com/sirupsen/logrus to the log.Logger interface.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/opensbx/coderun/internal/log"
)

// Logrus is a log.Logger backed by a *logrus.Entry.
type Logrus struct {
	entry *logrus.Entry
}

// NewLogrus creates a new Logrus logger from a logrus entry.
func NewLogrus(entry *logrus.Entry) log.Logger {
	return Logrus{entry: entry}
}

func (l Logrus) Infof(format string, args ...interface{})    { l.entry.Infof(format, args...) }
func (l Logrus) Warningf(format string, args ...interface{}) { l.entry.Warningf(format, args...) }
func (l Logrus) Errorf(format string, args ...interface{})   { l.entry.Errorf(format, args...) }
func (l Logrus) Debugf(format string, args ...interface{})   { l.entry.Debugf(format, args...) }

func (l Logrus) WithValues(kv log.Kv) log.Logger {
	fields := make(logrus.Fields, len(kv))
	for k, v := range kv {
		fields[k] = v
	}
	return Logrus{entry: l.entry.WithFields(fields)}
}
