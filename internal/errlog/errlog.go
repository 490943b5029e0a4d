// Package errlog maintains the operator-facing log of permanently
// failed downloads.
//
// The log is the only file in the output tree shared by every
// concurrent downloader, so appends are serialized by a mutex. The
// pipeline itself never reads it back.
package errlog

import (
	"fmt"
	"os"
	"sync"
)

// Log is an append-only record of (url, cause) pairs, one line per
// download that exhausted its retries.
type Log struct {
	mu sync.Mutex
	f  *os.File
}

// Open opens (or creates) the error log at path in append mode.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open error log: %w", err)
	}
	return &Log{f: f}, nil
}

// Append records one permanently failed download. Safe for
// concurrent use.
func (l *Log) Append(url string, cause error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := fmt.Fprintf(l.f, "Couldn't download %s: %v\n", url, cause)
	return err
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}
