// Package logging builds the process logger from the configured level and
// format.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Level maps a configured level name to a zerolog level, info when unknown.
func Level(name string) zerolog.Level {
	switch strings.TrimSpace(strings.ToLower(name)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New returns a logger writing to out. format is "json" or "console".
func New(out io.Writer, level, format string) zerolog.Logger {
	var w io.Writer = out
	if strings.ToLower(format) != "json" {
		output := zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
		output.FormatLevel = func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
		}
		w = output
	}
	return zerolog.New(w).Level(Level(level)).With().Timestamp().Logger()
}
