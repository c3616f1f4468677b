// Package logging builds the go-kit logger shared by the CLI, the HTTP server
// and the calculator.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// New returns a leveled logger writing logfmt or JSON lines to w. Every line
// carries a UTC timestamp and the caller.
func New(w io.Writer, format, lvl string) (log.Logger, error) {
	sw := log.NewSyncWriter(w)

	var logger log.Logger
	switch strings.ToLower(format) {
	case "", "logfmt":
		logger = log.NewLogfmtLogger(sw)
	case "json":
		logger = log.NewJSONLogger(sw)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	opt, err := ParseLevel(lvl)
	if err != nil {
		return nil, err
	}
	logger = level.NewFilter(logger, opt)
	return log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller), nil
}

// ParseLevel maps a level name onto a filter option. An empty name means info.
func ParseLevel(lvl string) (level.Option, error) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return level.AllowDebug(), nil
	case "", "info":
		return level.AllowInfo(), nil
	case "warn", "warning":
		return level.AllowWarn(), nil
	case "error":
		return level.AllowError(), nil
	case "none":
		return level.AllowNone(), nil
	default:
		return nil, fmt.Errorf("unknown log level %q", lvl)
	}
}

// Nop returns a logger that discards everything.
func Nop() log.Logger {
	return log.NewNopLogger()
}
