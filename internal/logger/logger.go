package logger

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide structured logger. Every line is a JSON object
// carrying at least ts, level and msg.
var Log = New(os.Stdout)

// New builds a JSON logger writing to w.
func New(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "ts",
		},
	})
	return l
}

// SetLevel sets the level of the process-wide logger; unknown names keep the current level.
func SetLevel(name string) {
	if lvl, err := logrus.ParseLevel(name); err == nil {
		Log.SetLevel(lvl)
	}
}

// Component returns an entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return Log.WithField("component", name)
}
