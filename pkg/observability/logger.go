package observability

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

const (
	// FormatText is the human-readable log format
	FormatText = "text"

	// FormatJSON emits one JSON object per log entry
	FormatJSON = "json"
)

// NewLogger creates a logger writing to out (stdout when nil). Unknown levels
// fall back to info.
func NewLogger(level, format string, out io.Writer) (*logrus.Logger, error) {
	if out == nil {
		out = os.Stdout
	}

	logger := logrus.New()
	logger.SetOutput(out)

	switch format {
	case FormatText, "":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	case FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q (must be %s or %s)", format, FormatText, FormatJSON)
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	return logger, nil
}
