package log

import (
	"io"

	"github.com/sirupsen/logrus"
)

// NewLogger creates a text logger writing to out at the given level.
// An unparsable level falls back to info and is reported as a warning.
func NewLogger(levelStr string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", levelStr, err)
	} else {
		log.SetLevel(level)
	}
	return log
}

// Component returns an entry tagged with the component name
func Component(log logrus.FieldLogger, name string) *logrus.Entry {
	return log.WithField("component", name)
}
