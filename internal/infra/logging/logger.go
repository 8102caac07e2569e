// Package logging is a thin facade over zerolog with lumberjack file rotation.
// Handlers log through Info/Warn/Error with alternating key/value pairs.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

// InitLogger configures the process-wide logger. An empty file keeps output
// on stderr; otherwise entries go through lumberjack with size/age rotation.
// Unknown level strings fall back to info.
func InitLogger(file string, maxSizeMB, maxBackups, maxAgeDays int, compress bool, level string) {
	var out io.Writer = os.Stderr
	if file != "" {
		out = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   compress,
		}
	}
	logger = zerolog.New(out).With().Timestamp().Logger().Level(parseLevel(level))
}

// SetLogLevel adjusts the level of the current logger at runtime.
func SetLogLevel(level string) {
	logger = logger.Level(parseLevel(level))
}

// SetLoggerForTest replaces the package logger so tests can capture output.
func SetLoggerForTest(l zerolog.Logger) {
	logger = l
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Info logs at info level with alternating key/value pairs.
func Info(msg string, kv ...interface{}) {
	emit(logger.Info(), msg, kv)
}

// Warn logs at warn level with alternating key/value pairs.
func Warn(msg string, kv ...interface{}) {
	emit(logger.Warn(), msg, kv)
}

// Error logs at error level with alternating key/value pairs.
func Error(msg string, kv ...interface{}) {
	emit(logger.Error(), msg, kv)
}

func emit(ev *zerolog.Event, msg string, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}
