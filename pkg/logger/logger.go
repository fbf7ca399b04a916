package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Level = zapcore.Level

const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
	FatalLevel = zapcore.FatalLevel
)

func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// Logger is a component-scoped, printf-style facade over a zap core.
type Logger struct {
	base      *zap.Logger
	sugar     *zap.SugaredLogger
	component string
	fields    []interface{}
	rotator   *lumberjack.Logger
}

type Config struct {
	Level      string
	Format     string
	OutputFile string
	Component  string
	MaxSize    int
	MaxBackups int
}

var (
	defaultLogger *Logger
	mu            sync.Mutex
	once          sync.Once
)

func Init(cfg Config) error {
	var err error
	once.Do(func() {
		var l *Logger
		l, err = New(cfg)
		if err != nil {
			return
		}
		mu.Lock()
		defaultLogger = l
		mu.Unlock()
	})
	return err
}

func New(cfg Config) (*Logger, error) {
	level := zap.NewAtomicLevelAt(ParseLevel(cfg.Level))

	console := zapcore.NewCore(encoder(cfg.Format, true), zapcore.Lock(os.Stdout), level)
	cores := []zapcore.Core{console}

	var rotator *lumberjack.Logger
	if cfg.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.OutputFile), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		rotator = &lumberjack.Logger{
			Filename:   cfg.OutputFile,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
		}
		cores = append(cores, zapcore.NewCore(encoder("json", false), zapcore.AddSync(rotator), level))
	}

	l := FromZap(zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(2)))
	l.rotator = rotator
	if cfg.Component != "" {
		l = l.WithComponent(cfg.Component)
	}
	return l, nil
}

func encoder(format string, console bool) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.MessageKey = "message"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "json" {
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewJSONEncoder(ec)
	}
	if console {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	return zapcore.NewConsoleEncoder(ec)
}

// FromZap wraps an existing zap logger. Tests use it with zaptest/observer.
func FromZap(z *zap.Logger) *Logger {
	return &Logger{base: z, sugar: z.Sugar()}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return FromZap(zap.NewNop())
}

func Default() *Logger {
	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger, _ = New(Config{Level: "info", Format: "text"})
	}
	return defaultLogger
}

func (l *Logger) derive(component string, fields []interface{}) *Logger {
	sugar := l.base.Sugar()
	if component != "" {
		sugar = sugar.With("component", component)
	}
	if len(fields) > 0 {
		sugar = sugar.With(fields...)
	}
	return &Logger{
		base:      l.base,
		sugar:     sugar,
		component: component,
		fields:    fields,
		rotator:   l.rotator,
	}
}

func (l *Logger) WithComponent(component string) *Logger {
	return l.derive(component, l.fields)
}

func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make([]interface{}, 0, len(l.fields)+2*len(fields))
	merged = append(merged, l.fields...)
	for k, v := range fields {
		merged = append(merged, k, v)
	}
	return l.derive(l.component, merged)
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

func (l *Logger) Component() string {
	return l.component
}

func (l *Logger) log(level Level, msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	switch level {
	case DebugLevel:
		l.sugar.Debug(msg)
	case InfoLevel:
		l.sugar.Info(msg)
	case WarnLevel:
		l.sugar.Warn(msg)
	case ErrorLevel:
		l.sugar.Error(msg)
	case FatalLevel:
		l.sugar.Fatal(msg)
	}
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log(DebugLevel, msg, args...)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.log(InfoLevel, msg, args...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log(WarnLevel, msg, args...)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.log(ErrorLevel, msg, args...)
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log(FatalLevel, msg, args...)
}

func (l *Logger) Sync() error {
	return l.base.Sync()
}

func (l *Logger) Close() error {
	_ = l.base.Sync()
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

func Debug(msg string, args ...interface{}) { Default().Debug(msg, args...) }
func Info(msg string, args ...interface{})  { Default().Info(msg, args...) }
func Warn(msg string, args ...interface{})  { Default().Warn(msg, args...) }
func Error(msg string, args ...interface{}) { Default().Error(msg, args...) }
func Fatal(msg string, args ...interface{}) { Default().Fatal(msg, args...) }

func WithComponent(component string) *Logger           { return Default().WithComponent(component) }
func WithFields(fields map[string]interface{}) *Logger { return Default().WithFields(fields) }
func WithField(key string, value interface{}) *Logger  { return Default().WithField(key, value) }
