// Package logging builds the hclog loggers used across deskbundle.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a named logger. The level argument wins; when empty the
// DESKBUNDLE_LOG_LEVEL environment variable applies, defaulting to info.
// DESKBUNDLE_JSON_LOG=1 switches to JSON output and DESKBUNDLE_LOG_PATH
// additionally mirrors output to a size-rotated log file; an elevated
// install run must not be able to grow an unbounded log.
func New(name, level string) hclog.Logger {
	if level == "" {
		level = os.Getenv("DESKBUNDLE_LOG_LEVEL")
	}
	if level == "" {
		level = "info"
	}

	jsonFormat := os.Getenv("DESKBUNDLE_JSON_LOG") == "1"

	var output io.Writer = os.Stderr
	if logPath := os.Getenv("DESKBUNDLE_LOG_PATH"); logPath != "" {
		rotated := &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
		}
		output = io.MultiWriter(os.Stderr, rotated)
	}
	if !jsonFormat {
		output = NewPrefixWriter("📦 ", output)
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(level),
		JSONFormat: jsonFormat,
		Output:     output,
		TimeFormat: "2006-01-02T15:04:05Z",
		TimeFn: func() time.Time {
			return time.Now().UTC()
		},
	})
}
