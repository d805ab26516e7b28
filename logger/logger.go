package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity of a log entry
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel maps LOG_LEVEL style strings onto a LogLevel. Unknown values give INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL", "CRITICAL":
		return FATAL
	default:
		return INFO
	}
}

// Logger is a leveled structured logger backed by zap. Children created with
// WithField share the parent's level.
type Logger struct {
	mu         sync.RWMutex
	level      zap.AtomicLevel
	output     io.Writer
	jsonFormat bool
	service    string
	fields     []zap.Field
	z          *zap.Logger
}

var (
	globalLogger *Logger
	once         sync.Once
)

// New creates a logger writing JSON at INFO to stdout.
func New() *Logger {
	l := &Logger{
		level:      zap.NewAtomicLevelAt(zapcore.InfoLevel),
		output:     os.Stdout,
		jsonFormat: true,
	}
	l.rebuild()
	return l
}

// GetLogger returns the global logger instance
func GetLogger() *Logger {
	once.Do(func() {
		globalLogger = New()
	})
	return globalLogger
}

// rebuild must be called with l.mu held for writing (or before l is shared).
func (l *Logger) rebuild() {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var enc zapcore.Encoder
	if l.jsonFormat {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(l.output), l.level)
	z := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2))
	if l.service != "" {
		z = z.With(zap.String("service", l.service))
	}
	l.z = z.With(l.fields...)
}

// SetLevel sets the minimum log level
func (l *Logger) SetLevel(level LogLevel) {
	l.level.SetLevel(level.zapLevel())
}

// Level reports the current minimum level.
func (l *Logger) Level() LogLevel {
	switch l.level.Level() {
	case zapcore.DebugLevel:
		return DEBUG
	case zapcore.WarnLevel:
		return WARN
	case zapcore.ErrorLevel:
		return ERROR
	case zapcore.FatalLevel:
		return FATAL
	default:
		return INFO
	}
}

// SetOutput sets the output writer
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
	l.rebuild()
}

// SetJSONFormat switches between JSON and console encoding.
func (l *Logger) SetJSONFormat(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jsonFormat = enabled
	l.rebuild()
}

// SetService tags every entry with service=name.
func (l *Logger) SetService(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.service = name
	l.rebuild()
}

// WithField creates a new logger with an additional field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields creates a new logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	child := &Logger{
		level:      l.level,
		output:     l.output,
		jsonFormat: l.jsonFormat,
		service:    l.service,
		fields:     make([]zap.Field, 0, len(l.fields)+len(fields)),
	}
	child.fields = append(child.fields, l.fields...)
	for k, v := range fields {
		child.fields = append(child.fields, zap.Any(k, v))
	}
	child.rebuild()
	return child
}

// Zap exposes the underlying zap logger for libraries that take one.
func (l *Logger) Zap() *zap.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.z
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.Zap().Sync()
}

func (l *Logger) log(level LogLevel, msg string, err error) {
	l.mu.RLock()
	z := l.z
	l.mu.RUnlock()

	var fields []zap.Field
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	switch level {
	case DEBUG:
		z.Debug(msg, fields...)
	case INFO:
		z.Info(msg, fields...)
	case WARN:
		z.Warn(msg, fields...)
	case ERROR:
		z.Error(msg, fields...)
	case FATAL:
		z.Fatal(msg, fields...)
	}
}

func (l *Logger) Debug(msg string) { l.log(DEBUG, msg, nil) }

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(DEBUG, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Info(msg string) { l.log(INFO, msg, nil) }

func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(INFO, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Warn(msg string) { l.log(WARN, msg, nil) }

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(WARN, fmt.Sprintf(format, args...), nil)
}

// Error logs msg with err attached as the "error" field.
func (l *Logger) Error(msg string, err error) { l.log(ERROR, msg, err) }

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(ERROR, fmt.Sprintf(format, args...), nil)
}

// Fatal logs and exits the process.
func (l *Logger) Fatal(msg string, err error) { l.log(FATAL, msg, err) }

func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.log(FATAL, fmt.Sprintf(format, args...), nil)
}

// Global logging functions

func Debug(msg string)                          { GetLogger().Debug(msg) }
func Debugf(format string, args ...interface{}) { GetLogger().Debugf(format, args...) }
func Info(msg string)                           { GetLogger().Info(msg) }
func Infof(format string, args ...interface{})  { GetLogger().Infof(format, args...) }
func Warn(msg string)                           { GetLogger().Warn(msg) }
func Warnf(format string, args ...interface{})  { GetLogger().Warnf(format, args...) }
func Error(msg string, err error)               { GetLogger().Error(msg, err) }
func Errorf(format string, args ...interface{}) { GetLogger().Errorf(format, args...) }
func Fatal(msg string, err error)               { GetLogger().Fatal(msg, err) }
func Fatalf(format string, args ...interface{}) { GetLogger().Fatalf(format, args...) }

// WithField derives from the global logger.
func WithField(key string, value interface{}) *Logger {
	return GetLogger().WithField(key, value)
}

// Configure applies LOG_LEVEL / LOG_FORMAT style settings to the global logger.
func Configure(service, level, format string) *Logger {
	l := GetLogger()
	l.SetLevel(ParseLevel(level))
	l.SetJSONFormat(!strings.EqualFold(format, "text"))
	l.SetService(service)
	return l
}

// SetGlobalLevel sets the global logger level
func SetGlobalLevel(level LogLevel) { GetLogger().SetLevel(level) }

// SetGlobalOutput sets the global logger output
func SetGlobalOutput(w io.Writer) { GetLogger().SetOutput(w) }
