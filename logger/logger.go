// Package logger configures the process wide zerolog logger.
package logger

import (
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	mu          sync.Mutex
	initialized bool
	base        zerolog.Logger
)

// Init sets up the global logger the first time it is called and returns it.
// Later calls return the logger built by the first one and report false.
// format is "json" (default), "text" or "console".
func Init(level, format string, w io.Writer) (zerolog.Logger, bool) {
	mu.Lock()
	defer mu.Unlock()

	if initialized {
		return base, false
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if format == "text" || format == "console" {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	base = zerolog.New(w).With().Timestamp().Logger()
	log.Logger = base
	zerolog.DefaultContextLogger = &base
	initialized = true

	return base, true
}
