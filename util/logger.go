package util

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

var (
	logger   zerolog.Logger
	loggerMu sync.RWMutex
)

func init() {
	logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// ConfigureLogger rebuilds the process logger. Development environments get the
// human readable console writer, everything else logs JSON lines to stdout.
func ConfigureLogger(appEnv, level string) error {
	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return err
		}
		lvl = parsed
	}

	var out io.Writer = os.Stdout
	if appEnv == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	loggerMu.Lock()
	logger = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	loggerMu.Unlock()
	return nil
}

// Logger returns the process logger.
func Logger() *zerolog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	l := logger
	return &l
}

// SetLoggerForTest swaps the process logger and returns a function restoring the previous one.
func SetLoggerForTest(l zerolog.Logger) func() {
	loggerMu.Lock()
	prev := logger
	logger = l
	loggerMu.Unlock()
	return func() {
		loggerMu.Lock()
		logger = prev
		loggerMu.Unlock()
	}
}

const maxLogValueRunes = 200

// SanitizeLogValue removes newlines and other characters that could break log parsing
func SanitizeLogValue(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\t", " ")
	if utf8.RuneCountInString(value) > maxLogValueRunes {
		value = string([]rune(value)[:maxLogValueRunes]) + "..."
	}
	return value
}
