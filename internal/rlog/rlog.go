// Package rlog is a tiny async logger shared by every layer of the RDT
// engine: mux/demux workers, the per-connection packet handler, and the
// listener facade all log through it instead of each owning a logger.
package rlog

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

type Level int

const None Level = -1
const (
	Debug Level = iota
	Info
	Warn
	Error
)

var (
	minLevel = Info
	logCh    = make(chan string, 1024)
	dropped  atomic.Uint64
	started  atomic.Bool
)

var levelStrings = [...]string{
	Debug: "DEBUG",
	Info:  "INFO",
	Warn:  "WARN",
	Error: "ERROR",
}

// Dropped returns the number of log lines dropped because the channel was full.
func Dropped() uint64 { return dropped.Load() }

// SetLevel sets the minimum level that is logged. Pass None to silence the
// logger entirely. The drain goroutine is started lazily on first non-None
// SetLevel call.
func SetLevel(l Level) {
	minLevel = l
	if l != None && started.CompareAndSwap(false, true) {
		go func() {
			for msg := range logCh {
				fmt.Fprint(os.Stdout, msg)
			}
		}()
	}
}

func logf(level Level, component, format string, args ...any) {
	if level < minLevel || minLevel == None {
		return
	}
	if len(logCh) == cap(logCh) {
		dropped.Add(1)
		return
	}

	var levelStr string
	if int(level) < len(levelStrings) {
		levelStr = levelStrings[level]
	} else {
		levelStr = "UNKNOWN"
	}

	now := time.Now().Format("2006-01-02 15:04:05.000")
	line := fmt.Sprintf("%s [%s] [%s] %s\n", now, levelStr, component, fmt.Sprintf(format, args...))

	select {
	case logCh <- line:
	default:
		dropped.Add(1)
	}
}

// Logger is a component-scoped handle (e.g. "muxdemux", "rdtsocket", "listener").
type Logger struct {
	component string
}

func New(component string) Logger { return Logger{component: component} }

func (l Logger) Debugf(format string, args ...any) { logf(Debug, l.component, format, args...) }
func (l Logger) Infof(format string, args ...any)  { logf(Info, l.component, format, args...) }
func (l Logger) Warnf(format string, args ...any)  { logf(Warn, l.component, format, args...) }
func (l Logger) Errorf(format string, args ...any) { logf(Error, l.component, format, args...) }

// Close closes the log channel; the drain goroutine, if started, prints
// what is still buffered and exits. Close does not wait for it. Intended
// for tests and clean process
// shutdown; not called by library code (the logger is process-lifetime).
func Close() { close(logCh) }
