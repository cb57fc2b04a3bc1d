// Package filequeue implements the queue on a local directory.
//
// This is the development backend. Each message is one job-*.json file;
// receiving claims the file by renaming it to job-*.json.processing, which
// is atomic on POSIX filesystems, so concurrent receivers never claim the
// same message. The visibility timeout is not honored across crashes: a
// dead worker leaves its .processing file behind for manual recovery.
package filequeue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/schemascout/schemascout/internal/queue"
)

const (
	jobPrefix        = "job-"
	jobSuffix        = ".json"
	processingSuffix = ".processing"
	tmpPrefix        = ".tmp-"
)

// FileQueue implements queue.Queue on a directory of job files.
type FileQueue struct {
	dir string
}

var _ queue.Queue = (*FileQueue)(nil)

// New creates a file queue rooted at dir, creating the directory when
// absent.
func New(dir string) (*FileQueue, error) {
	q := &FileQueue{dir: dir}
	if err := q.Provision(context.Background()); err != nil {
		return nil, err
	}
	return q, nil
}

// Dir returns the queue directory.
func (q *FileQueue) Dir() string {
	return q.dir
}

// Provision creates the queue directory. Idempotent.
func (q *FileQueue) Provision(_ context.Context) error {
	if err := os.MkdirAll(q.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create queue directory: %w", err)
	}
	return nil
}

// Send writes one message file. The body is written to a dot-temp file
// first and renamed into place so receivers never observe partial writes.
func (q *FileQueue) Send(_ context.Context, body []byte) error {
	if !json.Valid(body) {
		return fmt.Errorf("send: body is not valid JSON")
	}

	// Timestamp first so directory order approximates send order; the
	// uuid fragment keeps same-microsecond sends distinct.
	now := time.Now().UTC()
	name := fmt.Sprintf("%s%s-%06d-%s%s",
		jobPrefix, now.Format("20060102-150405"), now.Nanosecond()/1000,
		uuid.NewString()[:8], jobSuffix)

	tmpPath := filepath.Join(q.dir, tmpPrefix+name)
	finalPath := filepath.Join(q.dir, name)

	if err := os.WriteFile(tmpPath, body, 0o600); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Receive claims the oldest visible message, or returns ErrNoMessage. The
// visibility argument is ignored; the claim lasts until Ack or Nack.
func (q *FileQueue) Receive(_ context.Context, _ time.Duration) (*queue.Message, error) {
	entries, err := os.ReadDir(q.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan queue directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, jobPrefix) || !strings.HasSuffix(name, jobSuffix) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		jobPath := filepath.Join(q.dir, name)
		processingPath := jobPath + processingSuffix

		// Atomic claim; losing the race to a sibling is not an error.
		if err := os.Rename(jobPath, processingPath); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to claim message %s: %w", name, err)
		}

		body, err := os.ReadFile(processingPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read claimed message %s: %w", name, err)
		}
		return &queue.Message{ID: name, Body: body, Receipt: processingPath}, nil
	}
	return nil, queue.ErrNoMessage
}

// Ack removes the claimed message file.
func (q *FileQueue) Ack(_ context.Context, msg *queue.Message) error {
	if err := os.Remove(msg.Receipt); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to ack message %s: %w", msg.ID, err)
	}
	return nil
}

// Nack renames the claimed message back so it becomes visible again.
func (q *FileQueue) Nack(_ context.Context, msg *queue.Message) error {
	original := strings.TrimSuffix(msg.Receipt, processingSuffix)
	if err := os.Rename(msg.Receipt, original); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to nack message %s: %w", msg.ID, err)
	}
	return nil
}

// Close is a no-op; the queue holds no resources between calls.
func (q *FileQueue) Close() error {
	return nil
}
