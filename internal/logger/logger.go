package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log writes to stderr; stdout is reserved for image streams.
var Log = newLogger()

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})

	if os.Getenv("DEBUG") == "1" {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}

	return log
}

// SetVerbosity raises the level for --verbose (info) and --debug (debug).
// It never lowers a level chosen through the DEBUG environment variable.
func SetVerbosity(verbose, debug bool) {
	level := Log.GetLevel()
	switch {
	case debug:
		level = logrus.DebugLevel
	case verbose && level < logrus.InfoLevel:
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)
}
