package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	LevelDebug = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

const TimeFormat = "2006-01-02 15:04:05"

// Interface is what the rest of the service logs through. Tests replace the
// process-wide instance with a mock via SetInstance.
type Interface interface {
	SetLevel(level int)
	SetOutput(w io.Writer)
	SetOutputToFile(filename string) error
	GetLevel() int
	Debug(message string, v ...interface{})
	Info(message string, v ...interface{})
	Warn(message string, v ...interface{})
	Error(message string, v ...interface{})
	Fatal(message string, v ...interface{})
}

// Rotation controls the lumberjack writer used by SetOutputToFile.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type Logger struct {
	level    int
	output   io.Writer
	zl       zerolog.Logger
	file     *lumberjack.Logger
	rotation Rotation
	mu       sync.Mutex
}

var (
	instance Interface
	instMu   sync.Mutex
)

func New(w io.Writer) *Logger {
	l := &Logger{
		level:    LevelInfo,
		rotation: Rotation{MaxSizeMB: 100, MaxBackups: 7, MaxAgeDays: 30},
	}
	l.setWriter(w)
	return l
}

func GetInstance() Interface {
	instMu.Lock()
	defer instMu.Unlock()
	if instance == nil {
		instance = New(os.Stdout)
	}
	return instance
}

func SetInstance(l Interface) {
	instMu.Lock()
	defer instMu.Unlock()
	instance = l
}

func ParseLevel(name string) int {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

func (l *Logger) setWriter(w io.Writer) {
	l.output = w
	l.zl = zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: TimeFormat,
		NoColor:    w != os.Stdout,
	}).With().Timestamp().Logger()
}

func (l *Logger) SetLevel(level int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) SetRotation(r Rotation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rotation = r
}

func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeFile()
	l.setWriter(w)
}

// SetOutputToFile sends log lines to a size-rotated file.
func (l *Logger) SetOutputToFile(filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeFile()
	l.file = &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    l.rotation.MaxSizeMB,
		MaxBackups: l.rotation.MaxBackups,
		MaxAge:     l.rotation.MaxAgeDays,
		Compress:   l.rotation.Compress,
	}
	l.setWriter(l.file)
	return nil
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeFile()
}

func (l *Logger) closeFile() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *Logger) GetLevel() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

func zerologLevel(level int) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelFatal:
		return zerolog.FatalLevel
	default:
		return zerolog.NoLevel
	}
}

func (l *Logger) getCallerInfo() string {
	_, file, line, ok := runtime.Caller(3)
	if !ok {
		return "unknown:0"
	}

	parts := strings.Split(file, "/")
	if len(parts) > 0 {
		file = parts[len(parts)-1]
	}

	return fmt.Sprintf("%s:%d", file, line)
}

func (l *Logger) logMessage(level int, message string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	ev := l.zl.WithLevel(zerologLevel(level)).Str("caller", l.getCallerInfo())
	if len(v) > 0 {
		ev.Msgf(message, v...)
		return
	}
	ev.Msg(message)
}

func (l *Logger) Debug(message string, v ...interface{}) {
	l.logMessage(LevelDebug, message, v...)
}

func (l *Logger) Info(message string, v ...interface{}) {
	l.logMessage(LevelInfo, message, v...)
}

func (l *Logger) Warn(message string, v ...interface{}) {
	l.logMessage(LevelWarn, message, v...)
}

func (l *Logger) Error(message string, v ...interface{}) {
	l.logMessage(LevelError, message, v...)
}

func (l *Logger) Fatal(message string, v ...interface{}) {
	l.logMessage(LevelFatal, message, v...)
	os.Exit(1)
}
