// Package logging builds the process logger and scrubs secrets from values
// that came from outside input.
package logging

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// New returns a logger writing to w at level ("debug", "info", "warn",
// "error") in format ("json" or "console").
func New(w io.Writer, level, format string) (zerolog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q", level)
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	switch strings.ToLower(format) {
	case FormatConsole:
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	case FormatJSON, "":
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q", format)
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// Redacted replaces any value considered secret.
const Redacted = "[REDACTED]"

var (
	secretKeyRe   = regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password|passwd|auth|credential|cookie)`)
	secretValueRe = regexp.MustCompile(`(?i)(sk-[a-z0-9_\-]{8,}|bearer\s+[a-z0-9._\-]+|(?:api[_-]?key|token|secret|password)\s*[=:]\s*\S+)`)
)

// Redact returns value unless key names a secret, in which case the whole
// value is dropped. Secret-looking fragments inside value are masked.
func Redact(key, value string) string {
	if secretKeyRe.MatchString(key) {
		return Redacted
	}
	return secretValueRe.ReplaceAllString(value, Redacted)
}
