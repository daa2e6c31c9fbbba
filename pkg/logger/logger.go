package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps zerolog with the field helpers the bot uses everywhere
type Logger struct {
	logger zerolog.Logger
	config LoggerConfig
	// file is owned by the root logger; derived loggers leave it nil.
	file *lumberjack.Logger
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level            string
	OutputFile       string
	MaxFileSizeMB    int
	MaxBackups       int
	MaxAge           int
	EnableConsole    bool
	EnableFile       bool
	EnableJSON       bool
	EnableStackTrace bool

	// Output replaces the console writer when set.
	Output io.Writer
}

// Fields represents structured log fields
type Fields map[string]interface{}

// NewLogger creates a new logger instance
func NewLogger(config LoggerConfig) (*Logger, error) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level, err := zerolog.ParseLevel(strings.ToLower(config.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var (
		writers []io.Writer
		file    *lumberjack.Logger
	)

	if config.Output != nil {
		writers = append(writers, config.Output)
	} else if config.EnableConsole {
		if config.EnableJSON {
			writers = append(writers, os.Stdout)
		} else {
			writers = append(writers, zerolog.ConsoleWriter{
				Out:        os.Stdout,
				TimeFormat: "2006-01-02 15:04:05.000",
				FormatLevel: func(i interface{}) string {
					return strings.ToUpper(fmt.Sprintf("%-5s", i))
				},
				FormatFieldName: func(i interface{}) string {
					return fmt.Sprintf("%s=", i)
				},
				FormatCaller: func(i interface{}) string {
					return fmt.Sprintf("<%s>", i)
				},
			})
		}
	}

	if config.EnableFile && config.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(config.OutputFile), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file = &lumberjack.Logger{
			Filename:   config.OutputFile,
			MaxSize:    config.MaxFileSizeMB,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   true,
		}
		writers = append(writers, file)
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	zl := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	if config.EnableStackTrace {
		zl = zl.With().Caller().Logger()
	}

	return &Logger{logger: zl, config: config, file: file}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...Fields) {
	l.emit(l.logger.Debug(), msg, fields...)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...Fields) {
	l.emit(l.logger.Info(), msg, fields...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...Fields) {
	l.emit(l.logger.Warn(), msg, fields...)
}

// Error logs an error message
func (l *Logger) Error(msg string, err error, fields ...Fields) {
	l.emit(l.withErr(l.logger.Error(), err), msg, fields...)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string, err error, fields ...Fields) {
	l.emit(l.withErr(l.logger.Fatal(), err), msg, fields...)
}

func (l *Logger) withErr(event *zerolog.Event, err error) *zerolog.Event {
	if err == nil {
		return event
	}
	if l.config.EnableStackTrace {
		return event.Stack().Err(err)
	}
	return event.Err(err)
}

func (l *Logger) emit(event *zerolog.Event, msg string, fields ...Fields) {
	for _, set := range fields {
		for key, value := range set {
			event.Interface(key, value)
		}
	}
	event.Msg(msg)
}

// WithFields creates a logger with predefined fields
func (l *Logger) WithFields(fields Fields) *Logger {
	ctx := l.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{logger: ctx.Logger(), config: l.config}
}

// WithComponent creates a logger with a component field
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithFields(Fields{"component": component})
}

// WithGuild creates a logger scoped to one guild
func (l *Logger) WithGuild(guildID string) *Logger {
	return l.WithFields(Fields{"guild_id": guildID})
}

// WithTrack creates a logger with track information
func (l *Logger) WithTrack(title, sourceRef string) *Logger {
	return l.WithFields(Fields{
		"track_title": title,
		"track_ref":   sourceRef,
	})
}

// LogCommandEvent logs the outcome of one user command
func (l *Logger) LogCommandEvent(command, userID, guildID string, success bool, duration time.Duration, fields Fields) {
	if fields == nil {
		fields = Fields{}
	}
	fields["command"] = command
	fields["user_id"] = userID
	fields["guild_id"] = guildID
	fields["success"] = success
	fields["duration_ms"] = duration.Milliseconds()

	if success {
		l.Info("Command handled", fields)
	} else {
		l.Warn("Command rejected", fields)
	}
}

// LogMemoryUsage logs current memory usage
func (l *Logger) LogMemoryUsage() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	l.Info("Memory usage statistics", Fields{
		"alloc_mb":       m.Alloc / 1024 / 1024,
		"total_alloc_mb": m.TotalAlloc / 1024 / 1024,
		"sys_mb":         m.Sys / 1024 / 1024,
		"num_gc":         m.NumGC,
		"goroutines":     runtime.NumGoroutine(),
	})
}

// LogStartup logs application startup information
func (l *Logger) LogStartup(version, buildTime, gitCommit string) {
	l.Info("Application starting", Fields{
		"version":    version,
		"build_time": buildTime,
		"git_commit": gitCommit,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	})
}

// LogShutdown logs application shutdown information
func (l *Logger) LogShutdown(reason string, graceful bool) {
	l.Info("Application shutting down", Fields{
		"reason":   reason,
		"graceful": graceful,
	})
}

// LogConfiguration logs configuration (callers redact secrets first)
func (l *Logger) LogConfiguration(config interface{}) {
	l.Info("Configuration loaded", Fields{"config": config})
}

// GetLevel returns the configured log level
func (l *Logger) GetLevel() string {
	return l.config.Level
}

// Close releases the log file, if one is open
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

var defaultLogger atomic.Pointer[Logger]

// SetDefault sets the logger components fall back to when built without one
func SetDefault(logger *Logger) {
	if logger != nil {
		defaultLogger.Store(logger)
	}
}

// GetDefault returns the default logger, a no-op logger until SetDefault is called
func GetDefault() *Logger {
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	return Nop()
}
