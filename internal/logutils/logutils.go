package logutils

import (
	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger. Before InitLogger runs it behaves like a
// default logrus logger (info level, plain text to stderr).
var Log = logrus.New()

// InitLogger configures Log from a textual level (debug, info, warn, error).
// Unknown levels fall back to info.
func InitLogger(level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
		Log.Warnf("Invalid log level '%s', defaulting to 'info'", level)
	}
	Log.SetLevel(parsed)
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}
