// Package progress carries crawl progress out of the pipeline to
// whatever front-end is attached (plain CLI output or the TUI).
package progress

import (
	"io"
	"sync/atomic"
)

// Level indicates the severity/type of a progress message.
type Level int

const (
	LevelInfo Level = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// Event is a single progress update.
type Event struct {
	Message string
	Level   Level
}

// Snapshot is a point-in-time view of the counters, suitable for a
// polling UI.
type Snapshot struct {
	Packages   int32
	Downloaded int32
	Skipped    int32
	Failed     int32
	Bytes      int64
	TotalBytes int64
}

// Tracker combines an event callback with atomic counters. All
// methods are safe for concurrent use; a nil *Tracker is valid and
// discards everything, so deeply nested code never needs nil checks.
type Tracker struct {
	onEvent func(Event)

	packages   atomic.Int32
	downloaded atomic.Int32
	skipped    atomic.Int32
	failed     atomic.Int32
	bytes      atomic.Int64
	totalBytes atomic.Int64
}

// NewTracker creates a tracker. onEvent may be nil.
func NewTracker(onEvent func(Event)) *Tracker {
	return &Tracker{onEvent: onEvent}
}

// Emit delivers one event to the front-end.
func (t *Tracker) Emit(level Level, message string) {
	if t == nil || t.onEvent == nil {
		return
	}
	t.onEvent(Event{Message: message, Level: level})
}

// PackageDone counts one fully processed package.
func (t *Tracker) PackageDone() {
	if t != nil {
		t.packages.Add(1)
	}
}

// FileDownloaded counts one completed download.
func (t *Tracker) FileDownloaded() {
	if t != nil {
		t.downloaded.Add(1)
	}
}

// FileSkipped counts one download skipped because the destination
// already existed.
func (t *Tracker) FileSkipped() {
	if t != nil {
		t.skipped.Add(1)
	}
}

// FileFailed counts one download that exhausted its retries.
func (t *Tracker) FileFailed() {
	if t != nil {
		t.failed.Add(1)
	}
}

// AddBytes accounts for transferred payload bytes.
func (t *Tracker) AddBytes(n int64) {
	if t != nil {
		t.bytes.Add(n)
	}
}

// AddTotalBytes accounts for declared content length, when known.
func (t *Tracker) AddTotalBytes(n int64) {
	if t != nil && n > 0 {
		t.totalBytes.Add(n)
	}
}

// Snapshot returns the current counter values.
func (t *Tracker) Snapshot() Snapshot {
	if t == nil {
		return Snapshot{}
	}
	return Snapshot{
		Packages:   t.packages.Load(),
		Downloaded: t.downloaded.Load(),
		Skipped:    t.skipped.Load(),
		Failed:     t.failed.Load(),
		Bytes:      t.bytes.Load(),
		TotalBytes: t.totalBytes.Load(),
	}
}

// CountingWriter wraps a writer and tracks bytes written against a
// declared total.
type CountingWriter struct {
	// W is the underlying writer.
	W io.Writer

	// Tracker receives byte counts as they are written. May be nil.
	Tracker *Tracker

	// Written is the number of bytes written so far.
	Written int64
}

// Write implements io.Writer.
func (cw *CountingWriter) Write(p []byte) (int, error) {
	n, err := cw.W.Write(p)
	cw.Written += int64(n)
	cw.Tracker.AddBytes(int64(n))
	return n, err
}
