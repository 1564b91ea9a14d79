package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the structured logger shared by every layer.
type Logger struct {
	*logrus.Entry
}

// New builds a logger writing to stdout. Debug mode switches to the text
// formatter; production output is JSON.
func New(level string, debug bool) (*Logger, error) {
	base := logrus.New()
	base.SetOutput(os.Stdout)

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	base.SetLevel(parsed)

	if debug {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		if parsed < logrus.DebugLevel {
			base.SetLevel(logrus.DebugLevel)
		}
	} else {
		base.SetFormatter(&logrus.JSONFormatter{})
	}

	return &Logger{Entry: logrus.NewEntry(base)}, nil
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	return &Logger{Entry: logrus.NewEntry(base)}
}

func (l *Logger) WithFields(fields logrus.Fields) *Logger {
	return &Logger{Entry: l.Entry.WithFields(fields)}
}

func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{Entry: l.Entry.WithField(key, value)}
}

func (l *Logger) WithError(err error) *Logger {
	return &Logger{Entry: l.Entry.WithError(err)}
}

// WithBatch scopes the logger to one import batch.
func (l *Logger) WithBatch(batchID, entity string) *Logger {
	return l.WithFields(logrus.Fields{"batch_id": batchID, "entity": entity})
}
