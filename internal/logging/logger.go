// Package logging provides the leveled logging interface used across the
// store: the SST core logs its merge cascade, and the shard and database
// façades that drive it log their own events; all accept any Logger
// implementation.
//
// Log format: YYYY/MM/DD HH:MM:SS LEVEL [component] message
//
// Component namespace prefixes are used for filtering:
//   - [cascade]  — merge cascade scheduling
//   - [merge]    — level-to-level merges
//   - [bloom]    — Bloom filter rebuilds
//   - [valuelog] — value log append/read
//   - [shard]    — shard lifecycle (open, roll, close)
//   - [db]       — top-level database operations
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"reflect"
	"sync/atomic"
)

// FatalHandler is invoked when Fatalf is called. It should transition the
// owning component to a stopped state (e.g. reject further writes).
//
// Contract: must be safe for concurrent use and must not itself call Fatalf.
type FatalHandler func(msg string)

// Level represents the logging level.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// Logger is the interface every component in this module logs through.
//
// User-provided implementations must be safe for concurrent use, since
// logging may happen from the merge cascade and from reader goroutines
// simultaneously.
type Logger interface {
	Errorf(format string, args ...any)
	Warnf(format string, args ...any)
	Infof(format string, args ...any)
	Debugf(format string, args ...any)

	// Fatalf logs at FATAL level and invokes the configured FatalHandler.
	// It does not exit the process; the handler decides what "stopped"
	// means for the owning component.
	Fatalf(format string, args ...any)
}

// DefaultLogger writes to a configured io.Writer at a fixed level.
type DefaultLogger struct {
	logger       *log.Logger
	level        Level
	fatalHandler atomic.Pointer[FatalHandler]
}

// NewDefaultLogger creates a logger writing to stderr.
func NewDefaultLogger(level Level) *DefaultLogger {
	return NewLogger(os.Stderr, level)
}

// NewLogger creates a logger writing to w.
func NewLogger(w io.Writer, level Level) *DefaultLogger {
	return &DefaultLogger{logger: log.New(w, "", log.LstdFlags), level: level}
}

// SetFatalHandler sets the handler invoked by Fatalf.
func (l *DefaultLogger) SetFatalHandler(h FatalHandler) {
	l.fatalHandler.Store(&h)
}

func (l *DefaultLogger) Level() Level { return l.level }

func (l *DefaultLogger) Errorf(format string, args ...any) {
	if l.level >= LevelError {
		_ = l.logger.Output(2, "ERROR "+fmt.Sprintf(format, args...))
	}
}

func (l *DefaultLogger) Warnf(format string, args ...any) {
	if l.level >= LevelWarn {
		_ = l.logger.Output(2, "WARN "+fmt.Sprintf(format, args...))
	}
}

func (l *DefaultLogger) Infof(format string, args ...any) {
	if l.level >= LevelInfo {
		_ = l.logger.Output(2, "INFO "+fmt.Sprintf(format, args...))
	}
}

func (l *DefaultLogger) Debugf(format string, args ...any) {
	if l.level >= LevelDebug {
		_ = l.logger.Output(2, "DEBUG "+fmt.Sprintf(format, args...))
	}
}

func (l *DefaultLogger) Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	_ = l.logger.Output(2, "FATAL "+msg)
	if h := l.fatalHandler.Load(); h != nil {
		(*h)(msg)
	}
}

// Namespace prefixes, intended to be concatenated with the format string.
const (
	NSCascade  = "[cascade] "
	NSMerge    = "[merge] "
	NSBloom    = "[bloom] "
	NSValueLog = "[valuelog] "
	NSShard    = "[shard] "
	NSDB       = "[db] "
)

// IsNil reports whether l is nil or a typed-nil pointer wrapped in the
// interface — calling methods on the latter panics, so callers use this
// before trusting a caller-supplied Logger.
func IsNil(l Logger) bool {
	if l == nil {
		return true
	}
	v := reflect.ValueOf(l)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// OrDefault returns l if valid, otherwise a WARN-level default logger.
func OrDefault(l Logger) Logger {
	if IsNil(l) {
		return NewDefaultLogger(LevelWarn)
	}
	return l
}
