package logging

import (
	"io"
	"os"
	"strings"
	"time"

	gnarklogger "github.com/consensys/gnark/logger"
	"github.com/rs/zerolog"
)

// New creates the process logger.
// format "text" gives a console writer, anything else gives JSON lines.
func New(level, format string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if strings.EqualFold(format, "text") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	logger := zerolog.New(w).Level(lvl).With().Timestamp().Logger()

	// gnark's solver and prover are noisy below debug
	if lvl <= zerolog.DebugLevel {
		gnarklogger.Set(logger.With().Str("component", "gnark").Logger())
	} else {
		gnarklogger.Disable()
	}
	return logger
}
