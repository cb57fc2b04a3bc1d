package factory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/schemascout/schemascout/internal/config"
	"github.com/schemascout/schemascout/internal/queue"
	"github.com/schemascout/schemascout/internal/queue/filequeue"
)

func TestNewFileQueue(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "jobs")

	q, err := New(ctx, &config.Config{QueueType: "file", QueueDir: dir})
	if err != nil {
		t.Fatalf("New(file) returned error: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })

	if _, ok := q.(*filequeue.FileQueue); !ok {
		t.Fatalf("New(file) = %T, want *filequeue.FileQueue", q)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("queue directory not created: %v", err)
	}
}

func TestNewDefaultsToFile(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	q, err := New(context.Background(), &config.Config{})
	if err != nil {
		t.Fatalf("New with empty type returned error: %v", err)
	}
	_ = q.Close()

	if _, err := os.Stat(filepath.Join(dir, "queue_data")); err != nil {
		t.Errorf("default queue directory not created: %v", err)
	}
}

func TestNewWrapsJournal(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	cfg := &config.Config{
		QueueType:    "file",
		QueueDir:     filepath.Join(base, "jobs"),
		QueueJournal: filepath.Join(base, "journal.jsonl"),
	}

	q, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New with journal returned error: %v", err)
	}
	if _, ok := q.(*queue.Journal); !ok {
		t.Fatalf("New with journal = %T, want *queue.Journal", q)
	}

	if err := q.Send(ctx, []byte(`{"type":"process_file","user_id":"u1"}`)); err != nil {
		t.Fatalf("Send() returned error: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("Close() returned error: %v", err)
	}

	data, err := os.ReadFile(cfg.QueueJournal)
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	if len(data) == 0 {
		t.Error("journal file is empty after send")
	}
}

func TestNewUnsupportedType(t *testing.T) {
	_, err := New(context.Background(), &config.Config{QueueType: "rabbitmq"})
	if err == nil {
		t.Fatal("New(rabbitmq) = nil error, want unsupported type error")
	}
}

func TestNewServiceBusRequiresTarget(t *testing.T) {
	_, err := New(context.Background(), &config.Config{
		QueueType:       "servicebus",
		ServiceBusQueue: "crawler-jobs",
	})
	if err == nil {
		t.Fatal("New(servicebus) without namespace or connection string = nil error, want error")
	}
}

func TestNewStorageRequiresTarget(t *testing.T) {
	_, err := New(context.Background(), &config.Config{
		QueueType:    "storage",
		StorageQueue: "crawler-jobs",
	})
	if err == nil {
		t.Fatal("New(storage) without account or connection string = nil error, want error")
	}
}

func TestRoundTripThroughFactory(t *testing.T) {
	ctx := context.Background()
	q, err := New(ctx, &config.Config{QueueType: "file", QueueDir: filepath.Join(t.TempDir(), "jobs")})
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })

	if err := q.Send(ctx, []byte(`{"n":1}`)); err != nil {
		t.Fatalf("Send() returned error: %v", err)
	}
	msg, err := q.Receive(ctx, queue.DefaultVisibilityTimeout)
	if err != nil {
		t.Fatalf("Receive() returned error: %v", err)
	}
	if err := q.Ack(ctx, msg); err != nil {
		t.Fatalf("Ack() returned error: %v", err)
	}
	if _, err := q.Receive(ctx, 0); !errors.Is(err, queue.ErrNoMessage) {
		t.Errorf("Receive after ack = %v, want ErrNoMessage", err)
	}
}
