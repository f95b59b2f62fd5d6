package log

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits of the log file.
const (
	maxLogSizeMB  = 10
	maxLogBackups = 3
	maxLogAgeDays = 30
)

// Logger is the logging facade used across linkvet. Fields are attached to
// the entry as structured key/value pairs.
type Logger interface {
	Info(fields map[string]any, msg string)
	Error(fields map[string]any, msg string)
	Debug(fields map[string]any, msg string)
	Warn(fields map[string]any, msg string)
	Panic(fields map[string]any, msg string)
	Fatal(fields map[string]any, msg string)
}

// global starts as a production logger at info level on stderr.
var global Logger = newZapLogger(zapcore.NewCore(
	newEncoder(false, true),
	zapcore.Lock(os.Stderr),
	zapcore.InfoLevel,
))

// SetLogger replaces the global logger.
func SetLogger(l Logger) {
	global = l
}

// GetLogger returns the global logger, for components that take a Logger.
func GetLogger() Logger {
	return global
}

// Configure replaces the global logger. env "prod" selects JSON output,
// anything else a colored console. When file is set, entries go to a
// size-rotated file instead of stderr so they do not mix with the summary
// printed at the end of a run.
func Configure(env, level, file string) error {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	dev := env != "prod"

	var out zapcore.WriteSyncer
	if file != "" {
		out = zapcore.AddSync(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    maxLogSizeMB,
			MaxBackups: maxLogBackups,
			MaxAge:     maxLogAgeDays,
		})
	} else {
		out = zapcore.Lock(os.Stderr)
	}

	// no ANSI color codes in files
	global = newZapLogger(zapcore.NewCore(newEncoder(dev, file == ""), out, lvl))
	return nil
}

func newEncoder(dev, color bool) zapcore.Encoder {
	var cfg zapcore.EncoderConfig
	if dev {
		cfg = zap.NewDevelopmentEncoderConfig()
	} else {
		cfg = zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.TimeKey = "time"
	cfg.MessageKey = "msg"
	cfg.LevelKey = "level"
	if dev && color {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	if dev {
		return zapcore.NewConsoleEncoder(cfg)
	}
	return zapcore.NewJSONEncoder(cfg)
}

// Sync flushes the global logger when it buffers.
func Sync() {
	if z, ok := global.(*zapLogger); ok {
		_ = z.base.Sync()
	}
}

func Info(fields map[string]any, msg string)  { global.Info(fields, msg) }
func Error(fields map[string]any, msg string) { global.Error(fields, msg) }
func Debug(fields map[string]any, msg string) { global.Debug(fields, msg) }
func Warn(fields map[string]any, msg string)  { global.Warn(fields, msg) }
func Panic(fields map[string]any, msg string) { global.Panic(fields, msg) }
func Fatal(fields map[string]any, msg string) { global.Fatal(fields, msg) }

// zapLogger adapts a zap core to Logger.
type zapLogger struct {
	base *zap.Logger
}

// newZapLogger skips the adapter frames so the caller of a Logger method is
// reported.
func newZapLogger(core zapcore.Core) *zapLogger {
	return &zapLogger{base: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2))}
}

func (l *zapLogger) log(lvl zapcore.Level, fields map[string]any, msg string) {
	if ce := l.base.Check(lvl, msg); ce != nil {
		ce.Write(zapFields(fields)...)
	}
}

func (l *zapLogger) Info(fields map[string]any, msg string)  { l.log(zapcore.InfoLevel, fields, msg) }
func (l *zapLogger) Error(fields map[string]any, msg string) { l.log(zapcore.ErrorLevel, fields, msg) }
func (l *zapLogger) Debug(fields map[string]any, msg string) { l.log(zapcore.DebugLevel, fields, msg) }
func (l *zapLogger) Warn(fields map[string]any, msg string)  { l.log(zapcore.WarnLevel, fields, msg) }
func (l *zapLogger) Panic(fields map[string]any, msg string) { l.log(zapcore.PanicLevel, fields, msg) }
func (l *zapLogger) Fatal(fields map[string]any, msg string) { l.log(zapcore.FatalLevel, fields, msg) }

// zapFields converts fields in key order so entries render the same way on
// every call.
func zapFields(m map[string]any) []zap.Field {
	if len(m) == 0 {
		return nil
	}
	fields := make([]zap.Field, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		fields = append(fields, zap.Any(k, m[k]))
	}
	return fields
}

type noopLogger struct{}

func (noopLogger) Info(map[string]any, string)  {}
func (noopLogger) Error(map[string]any, string) {}
func (noopLogger) Debug(map[string]any, string) {}
func (noopLogger) Warn(map[string]any, string)  {}
func (noopLogger) Panic(map[string]any, string) {}
func (noopLogger) Fatal(map[string]any, string) {}

// NewNoopLogger returns a Logger that discards everything, for tests.
func NewNoopLogger() Logger {
	return noopLogger{}
}
