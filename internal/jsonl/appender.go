// Package jsonl appends structured records to JSON Lines files.
//
// The crawler's audit trails (the queue operation journal, the worker
// fetch and index logs) are plain files carrying one JSON document per
// line. Appends through a single Writer are serialized so concurrent
// callers interleave whole lines, never fragments.
package jsonl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Writer appends JSON documents to a file, one per line.
type Writer struct {
	mu   sync.Mutex
	file *os.File
}

// NewWriter opens path for appending, creating parent directories as
// needed. The file is created if it does not exist and is never
// truncated.
func NewWriter(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &Writer{file: f}, nil
}

// Append marshals v and writes it as a single line.
func (w *Writer) Append(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(line); err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
