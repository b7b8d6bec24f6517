// package shared defines shared helpers
package shared

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// NewLoggerFromConfig builds a [log.Logger] from the [LogConfig] section.
//
// When a file is configured, output goes to a size-rotated [lumberjack.Logger] instead of stderr.
func NewLoggerFromConfig(c LogConfig) *log.Logger {
	var w io.Writer = os.Stderr
	if c.File != "" {
		w = &lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			MaxAge:     c.MaxAgeDays,
		}
	}

	l := NewLogger(w)
	if c.JSON {
		l.SetFormatter(log.JSONFormatter)
	}
	ApplyLogLevel(l, c.Level)
	return l
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// Clock returns the current time. Tests replace it to pin timestamps.
type Clock func() time.Time

// SystemClock returns [time.Now] in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}
