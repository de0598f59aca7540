package client

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogsEnvVar enables the default logger, if it is set to "true", see NewLogger.
const LogsEnvVar = "COLINE_LOGS"

// NewLogger creates the default diagnostics sink.
// A disabled logger discards all messages. An enabled logger writes debug messages to stderr.
func NewLogger(enabled bool) *logrus.Logger {
	logger := logrus.New()
	if !enabled && !logsFromEnv() {
		logger.SetOutput(io.Discard)
		logger.SetLevel(logrus.PanicLevel)
		return logger
	}
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
		PadLevelText:    true,
	})
	return logger
}

func logsFromEnv() bool {
	return strings.EqualFold(os.Getenv(LogsEnvVar), "true") //nolint:forbidigo
}
