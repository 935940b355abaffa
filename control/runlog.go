package main

import (
	"bytes"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// LogTeeWriter writes log output to a file and sends ERROR/WARN lines to a
// channel for TUI display.
type LogTeeWriter struct {
	file   *os.File
	errors chan<- string
	mu     sync.Mutex
	buf    []byte
}

// NewLogTeeWriter creates a writer that writes to logPath and sends
// ERROR/WARN lines to errCh (if non-nil).
func NewLogTeeWriter(logPath string, errCh chan<- string) (*LogTeeWriter, error) {
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &LogTeeWriter{file: f, errors: errCh}, nil
}

// Write implements io.Writer. Complete lines containing "ERROR:" or "WARN:"
// are forwarded to the errors channel without blocking; a full channel drops
// the line rather than stalling the logger.
func (w *LogTeeWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err = w.file.Write(p)
	if err != nil || w.errors == nil {
		return n, err
	}
	w.buf = append(w.buf, p...)
	for {
		idx := bytes.IndexByte(w.buf, '\n')
		if idx < 0 {
			break
		}
		line := string(w.buf[:idx])
		w.buf = w.buf[idx+1:]
		if strings.Contains(line, "ERROR:") || strings.Contains(line, "WARN:") {
			select {
			case w.errors <- line:
			default:
			}
		}
	}
	return n, nil
}

// Close closes the underlying file.
func (w *LogTeeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		err := w.file.Close()
		w.file = nil
		return err
	}
	return nil
}

// RedirectLogToFile redirects the standard log output to the given writer
// and returns a restore func.
func RedirectLogToFile(w io.Writer) (restore func()) {
	oldFlags := log.Flags()
	oldPrefix := log.Prefix()
	oldOut := log.Writer()
	log.SetOutput(w)
	log.SetFlags(0)
	log.SetPrefix("")
	return func() {
		log.SetOutput(oldOut)
		log.SetFlags(oldFlags)
		log.SetPrefix(oldPrefix)
	}
}
