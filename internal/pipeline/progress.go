package pipeline

import (
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Level classifies a progress event for rendering by the shell.
type Level string

const (
	// LevelInfo is a routine progress line.
	LevelInfo Level = "info"
	// LevelSuccess marks a positive per-item outcome.
	LevelSuccess Level = "success"
	// LevelWarn marks a recoverable problem (item or batch skipped).
	LevelWarn Level = "warn"
	// LevelError marks a fatal problem for the run.
	LevelError Level = "error"
)

// Event is one structured progress report emitted by the pipeline. Shells
// render events however they like (console text, web log, dialog).
type Event struct {
	Level   Level
	Message string
}

// Sink receives progress events. Implementations must be safe to call from
// whatever goroutine drives the pipeline.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Publish implements Sink.
func (f SinkFunc) Publish(e Event) { f(e) }

// NopSink discards all events.
func NopSink() Sink {
	return SinkFunc(func(Event) {})
}

// NewWriterSink returns a Sink that writes one line per event to w, suitable
// for console shells.
func NewWriterSink(w io.Writer) Sink {
	return SinkFunc(func(e Event) {
		switch e.Level {
		case LevelWarn:
			fmt.Fprintln(w, "WARN:", e.Message)
		case LevelError:
			fmt.Fprintln(w, "ERROR:", e.Message)
		default:
			fmt.Fprintln(w, e.Message)
		}
	})
}

// NewZapSink returns a Sink that forwards events to the global zap logger,
// used by shells without their own console (e.g. the webhook server).
func NewZapSink() Sink {
	return SinkFunc(func(e Event) {
		switch e.Level {
		case LevelWarn:
			zap.L().Warn(e.Message)
		case LevelError:
			zap.L().Error(e.Message)
		default:
			zap.L().Info(e.Message)
		}
	})
}
