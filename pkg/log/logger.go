package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "INFO"
}

// ParseLevel maps a case-insensitive level name to a LogLevel.
// Unknown names fall back to LevelInfo.
func ParseLevel(name string) LogLevel {
	for level, levelName := range levelNames {
		if strings.EqualFold(strings.TrimSpace(name), levelName) {
			return level
		}
	}
	return LevelInfo
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Format selects the zap encoder.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

type Logger struct {
	level zap.AtomicLevel
	sugar *zap.SugaredLogger
}

func NewLogger(level LogLevel) *Logger {
	return newLogger(level, FormatConsole, zapcore.Lock(os.Stdout))
}

// NewLoggerWithFormat creates a stdout logger with the given encoder.
func NewLoggerWithFormat(level LogLevel, format Format) *Logger {
	return newLogger(level, format, zapcore.Lock(os.Stdout))
}

func newLogger(level LogLevel, format Format, sink zapcore.WriteSyncer) *Logger {
	atomic := zap.NewAtomicLevelAt(level.zapLevel())

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	if format == FormatJSON {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	return newLoggerWithCore(zapcore.NewCore(encoder, sink, atomic), atomic)
}

// newLoggerWithCore wraps core. Methods and package-level functions both sit
// one frame above zap.
func newLoggerWithCore(core zapcore.Core, level zap.AtomicLevel) *Logger {
	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return &Logger{
		level: level,
		sugar: base.Sugar(),
	}
}

// SetLevel changes the level at runtime.
func (l *Logger) SetLevel(level LogLevel) {
	l.level.SetLevel(level.zapLevel())
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level LogLevel) bool {
	return l.level.Enabled(level.zapLevel())
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Fatal logs and exits the process.
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.sugar.Fatalf(format, args...)
}

// With returns a structured child logger carrying the given key/value pairs.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{
		level: l.level,
		sugar: l.sugar.With(keysAndValues...),
	}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

type FileLogger struct {
	*Logger
	file *os.File
}

func NewFileLogger(logFile string, level LogLevel) (*FileLogger, error) {
	logDir := filepath.Dir(logFile)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &FileLogger{
		Logger: newLogger(level, FormatJSON, zapcore.AddSync(file)),
		file:   file,
	}, nil
}

func (l *FileLogger) Close() error {
	if l.file != nil {
		_ = l.Sync()
		return l.file.Close()
	}
	return nil
}

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

func InitLogger(level LogLevel) {
	SetLogger(NewLogger(level))
}

// SetLogger replaces the global logger.
func SetLogger(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

func GetLogger() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = NewLogger(LevelInfo)
	}
	return globalLogger
}

// Convenience functions
func Debug(format string, args ...interface{}) {
	GetLogger().sugar.Debugf(format, args...)
}

func Info(format string, args ...interface{}) {
	GetLogger().sugar.Infof(format, args...)
}

func Warn(format string, args ...interface{}) {
	GetLogger().sugar.Warnf(format, args...)
}

func Error(format string, args ...interface{}) {
	GetLogger().sugar.Errorf(format, args...)
}

func Fatal(format string, args ...interface{}) {
	GetLogger().sugar.Fatalf(format, args...)
}
