// Package sysutil holds process-level helpers used by cmd/server: global
// logger setup and build metadata.
package sysutil

import (
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ParseLevel maps a config string onto a zerolog level. Blank and unknown
// values yield info; "warning" is accepted for warn.
func ParseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel || lvl == zerolog.TraceLevel || lvl == zerolog.Disabled {
		return zerolog.InfoLevel
	}
	return lvl
}

// SetupLogger replaces the global logger and level. JSON lines go to w;
// pretty wraps w in a console writer instead. A nil w means stderr. Every
// line carries the service name and build version.
func SetupLogger(w io.Writer, level string, pretty bool, service string) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(ParseLevel(level))

	log.Logger = zerolog.New(w).With().
		Timestamp().
		Str("service", service).
		Str("version", Version("")).
		Logger()
	return log.Logger
}

// Version returns stamped when it is set and not "dev", otherwise the main
// module version recorded by the Go toolchain, otherwise "dev".
func Version(stamped string) string {
	if s := strings.TrimSpace(stamped); s != "" && s != "dev" {
		return s
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return "dev"
}
