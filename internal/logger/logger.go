package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/unkn0wn-root/apidebug/internal/config"
)

// Logger is the structured logging surface used across the engines.
// Fields are alternating key/value pairs.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
	Err(err error, msg string, fields ...any)
}

type ZeroLogger struct {
	logger zerolog.Logger
	closer io.Closer
}

func New(cfg config.LogSettings) *ZeroLogger {
	writers := make([]io.Writer, 0, len(cfg.Writers))
	var closer io.Closer
	for _, w := range cfg.Writers {
		switch strings.ToLower(strings.TrimSpace(w)) {
		case "console":
			writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"})
		case "file":
			if strings.TrimSpace(cfg.File) == "" {
				continue
			}
			lj := &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    1,
				MaxAge:     30,
				MaxBackups: 3,
				LocalTime:  true,
			}
			writers = append(writers, lj)
			closer = lj
		}
	}
	if len(writers) == 0 {
		return Nop()
	}
	return NewWithWriter(io.MultiWriter(writers...), cfg.Level).withCloser(closer)
}

func NewWithWriter(w io.Writer, level string) *ZeroLogger {
	zl := zerolog.New(w).
		With().
		Timestamp().
		Logger().
		Level(parseLevel(level))
	return &ZeroLogger{logger: zl}
}

func Nop() *ZeroLogger { return &ZeroLogger{logger: zerolog.Nop()} }

func (z *ZeroLogger) withCloser(c io.Closer) *ZeroLogger {
	z.closer = c
	return z
}

// With returns a child logger carrying the given fields on every event.
func (z *ZeroLogger) With(fields ...any) *ZeroLogger {
	return &ZeroLogger{logger: z.logger.With().Fields(fields).Logger(), closer: z.closer}
}

func (z *ZeroLogger) Close() error {
	if z == nil || z.closer == nil {
		return nil
	}
	return z.closer.Close()
}

func (z *ZeroLogger) Debug(msg string, fields ...any) {
	z.logger.Debug().Fields(fields).Msg(msg)
}

func (z *ZeroLogger) Info(msg string, fields ...any) {
	z.logger.Info().Fields(fields).Msg(msg)
}

func (z *ZeroLogger) Warn(msg string, fields ...any) {
	z.logger.Warn().Fields(fields).Msg(msg)
}

func (z *ZeroLogger) Error(msg string, fields ...any) {
	z.logger.Error().Fields(fields).Msg(msg)
}

func (z *ZeroLogger) Err(err error, msg string, fields ...any) {
	z.logger.Err(err).Fields(fields).Msg(msg)
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// OrNop guards optional logger dependencies.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}
