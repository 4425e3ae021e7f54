package logging

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// New returns a JSON line logger. Timestamps are rendered in loc under the "ts" key.
func New(w io.Writer, loc *time.Location, level string) *logrus.Logger {
	if loc == nil {
		loc = time.UTC
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}

	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(lvl)
	l.SetFormatter(&locFormatter{
		loc: loc,
		Formatter: &logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "ts",
			},
		},
	})
	return l
}

// Discard is a logger for tests and optional collaborators.
func Discard() *logrus.Logger {
	return New(io.Discard, time.UTC, "panic")
}

type locFormatter struct {
	logrus.Formatter
	loc *time.Location
}

func (f *locFormatter) Format(e *logrus.Entry) ([]byte, error) {
	e.Time = e.Time.In(f.loc)
	return f.Formatter.Format(e)
}
