// File: internal/observability/logger.go
package observability

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/xkilldash9x/screenpilot/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// globalLogger stores the process-wide logger.
	globalLogger atomic.Pointer[zap.Logger]
	once         sync.Once
)

const colorReset = "\x1b[0m"

// colorMap translates friendly names to ANSI codes.
var colorMap = map[string]string{
	"black":   "\x1b[30m",
	"red":     "\x1b[31m",
	"green":   "\x1b[32m",
	"yellow":  "\x1b[33m",
	"blue":    "\x1b[34m",
	"magenta": "\x1b[35m",
	"cyan":    "\x1b[36m",
	"white":   "\x1b[37m",
}

// Initialize builds the global logger from cfg, writing human output to
// consoleWriter and, when cfg.LogFile is set, JSON lines to a rotated file.
// Only the first call has any effect until ResetForTest.
func Initialize(cfg config.LoggerConfig, consoleWriter zapcore.WriteSyncer) {
	once.Do(func() {
		logger := zap.New(buildCore(cfg, consoleWriter), buildOptions(cfg)...)
		if cfg.ServiceName != "" {
			logger = logger.Named(cfg.ServiceName)
		}
		globalLogger.Store(logger)

		zap.ReplaceGlobals(logger)
		zap.RedirectStdLog(logger)
	})
}

// InitializeLogger initializes the global logger with console output on stderr,
// leaving stdout free for command output.
func InitializeLogger(cfg config.LoggerConfig) {
	Initialize(cfg, zapcore.Lock(os.Stderr))
}

// ResetForTest clears the global logger. Tests only.
func ResetForTest() {
	globalLogger.Store(nil)
	once = sync.Once{}
}

func buildCore(cfg config.LoggerConfig, consoleWriter zapcore.WriteSyncer) zapcore.Core {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	cores := []zapcore.Core{zapcore.NewCore(getEncoder(cfg), consoleWriter, level)}
	if cfg.LogFile != "" {
		rotated := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
		fileEncoder := getEncoder(config.LoggerConfig{Format: "json"})
		cores = append(cores, zapcore.NewCore(fileEncoder, rotated, level))
	}
	return zapcore.NewTee(cores...)
}

func buildOptions(cfg config.LoggerConfig) []zap.Option {
	opts := []zap.Option{zap.AddStacktrace(zap.ErrorLevel)}
	if cfg.AddSource {
		opts = append(opts, zap.AddCaller())
	}
	return opts
}

// newColorizedLevelEncoder wraps the capitalized level name in the ANSI code
// configured for that level.
func newColorizedLevelEncoder(colors config.ColorConfig) zapcore.LevelEncoder {
	byLevel := map[zapcore.Level]string{
		zapcore.DebugLevel:  colorMap[colors.Debug],
		zapcore.InfoLevel:   colorMap[colors.Info],
		zapcore.WarnLevel:   colorMap[colors.Warn],
		zapcore.ErrorLevel:  colorMap[colors.Error],
		zapcore.DPanicLevel: colorMap[colors.DPanic],
		zapcore.PanicLevel:  colorMap[colors.Panic],
		zapcore.FatalLevel:  colorMap[colors.Fatal],
	}
	return func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		name := level.CapitalString()
		if color := byLevel[level]; color != "" {
			enc.AppendString(color + name + colorReset)
			return
		}
		enc.AppendString(name)
	}
}

// getEncoder returns a colorized single-line console encoder for "console"
// and a JSON encoder for anything else.
func getEncoder(cfg config.LoggerConfig) zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")

	if cfg.Format != "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewJSONEncoder(encoderConfig)
	}

	encoderConfig.EncodeLevel = newColorizedLevelEncoder(cfg.Colors)
	// Trailing dot separates the component from the message, e.g. "screenpilot.agent."
	encoderConfig.EncodeName = func(loggerName string, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(loggerName + ".")
	}
	return zapcore.NewConsoleEncoder(encoderConfig)
}

// GetLogger returns the global logger, or a development logger named
// "fallback" when Initialize has not run yet.
func GetLogger() *zap.Logger {
	if logger := globalLogger.Load(); logger != nil {
		return logger
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	l.Warn("Global logger requested before initialization; using fallback.")
	return l.Named("fallback")
}

// Redact masks a secret for display, keeping only its last four characters.
func Redact(secret string) string {
	if secret == "" {
		return "<unset>"
	}
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}

// Sync flushes buffered entries. Errors from syncing a terminal are ignored.
func Sync() {
	logger := globalLogger.Load()
	if logger == nil {
		return
	}
	if err := logger.Sync(); err != nil {
		msg := err.Error()
		for _, benign := range []string{"sync /dev/stdout", "sync /dev/stderr", "invalid argument", "operation not supported", "inappropriate ioctl"} {
			if strings.Contains(msg, benign) {
				return
			}
		}
		fmt.Fprintln(os.Stderr, "Error: failed to sync logger:", err)
	}
}
