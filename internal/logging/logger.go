// Package logging provides the logging interface and default implementations
// used throughout the storage core.
//
// Design: five-level interface (Error, Warn, Info, Debug, Fatal), the same
// shape used across embedded-storage engines (Badger, Pebble, RocksDB) so
// callers can plug in their own structured logger (slog, zap) by
// implementing Logger.
//
// Fatalf logs at FATAL level and invokes the configured FatalHandler; it
// does not call os.Exit. The engine itself installs no FatalHandler; a
// caller installs one with DefaultLogger.SetFatalHandler.
//
// Log format: YYYY/MM/DD HH:MM:SS LEVEL [component] message
package logging

import (
	"errors"
	"fmt"
	"log"
	"os"
	"reflect"
	"sync/atomic"
)

// ErrFatal is the sentinel error wrapped by fatal conditions.
var ErrFatal = errors.New("fatal error")

// FatalHandler is invoked when Fatalf is called. It must be safe for
// concurrent use and must not itself call Fatalf.
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

// Logger defines the interface for engine logging.
//
// Implementations must be safe for concurrent use: collection callbacks,
// commit/rollback, and scanner cancellation may all log from different
// goroutines simultaneously.
type Logger interface {
	Errorf(format string, args ...any)
	Warnf(format string, args ...any)
	Infof(format string, args ...any)
	Debugf(format string, args ...any)
	// Fatalf logs at FATAL and invokes the FatalHandler. It does not exit
	// the process; the caller decides how to stop issuing writes.
	Fatalf(format string, args ...any)
}

// DefaultLogger writes to a *log.Logger and is safe for concurrent use.
// Level is read-only after construction — create a new logger to change it.
type DefaultLogger struct {
	logger       *log.Logger
	level        Level
	fatalHandler atomic.Pointer[FatalHandler]
}

// NewDefaultLogger creates a logger at the given level writing to stderr.
func NewDefaultLogger(level Level) *DefaultLogger {
	return &DefaultLogger{
		logger: log.New(os.Stderr, "", log.LstdFlags),
		level:  level,
	}
}

// SetFatalHandler installs the handler invoked by Fatalf.
func (l *DefaultLogger) SetFatalHandler(h FatalHandler) {
	l.fatalHandler.Store(&h)
}

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

// Fatalf always logs (no level filtering) and invokes the fatal handler.
func (l *DefaultLogger) Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	_ = l.logger.Output(2, "FATAL "+msg)
	if h := l.fatalHandler.Load(); h != nil {
		(*h)(msg)
	}
}

// Namespace prefixes for log messages, one per storage-core component.
const (
	NSPool      = "[pool] "      // memory pool allocation/collection
	NSMedium    = "[medium] "    // DiskMedium commit/rollback
	NSAllocator = "[allocator] " // transactional block allocator
	NSSubfile   = "[subfile] "   // sub-file session pool
	NSTree      = "[tree] "      // sorted-tree writer/scanner
	NSMerge     = "[merge] "     // k-way union stream
	NSSnapshot  = "[snapshot] "  // read snapshot lifecycle
)

// IsNil reports whether l is nil or a typed-nil interface value.
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
