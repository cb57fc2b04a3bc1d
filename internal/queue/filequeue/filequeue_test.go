package filequeue

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/schemascout/schemascout/internal/queue"
	"github.com/schemascout/schemascout/internal/types"
)

func newTestQueue(t *testing.T) *FileQueue {
	t.Helper()
	q, err := New(filepath.Join(t.TempDir(), "jobs"))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	return q
}

func TestSendReceiveAck(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	job := types.NewJob(types.JobProcessFile, "u1", "example.com", "https://example.com/data.json")
	if err := queue.SendJob(ctx, q, job); err != nil {
		t.Fatalf("SendJob() returned error: %v", err)
	}

	msg, err := q.Receive(ctx, queue.DefaultVisibilityTimeout)
	if err != nil {
		t.Fatalf("Receive() returned error: %v", err)
	}
	got, err := types.DecodeJob(msg.Body)
	if err != nil {
		t.Fatalf("DecodeJob() returned error: %v", err)
	}
	if got.Type != types.JobProcessFile || got.UserID != "u1" || got.FileURL != "https://example.com/data.json" {
		t.Errorf("decoded job = %+v", got)
	}

	// While claimed, nothing else is visible.
	if _, err := q.Receive(ctx, 0); !errors.Is(err, queue.ErrNoMessage) {
		t.Errorf("Receive with message claimed = %v, want ErrNoMessage", err)
	}

	if err := q.Ack(ctx, msg); err != nil {
		t.Fatalf("Ack() returned error: %v", err)
	}

	entries, err := os.ReadDir(q.Dir())
	if err != nil {
		t.Fatalf("ReadDir() returned error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("directory not empty after ack: %d entries", len(entries))
	}
}

func TestReceiveEmpty(t *testing.T) {
	q := newTestQueue(t)
	_, err := q.Receive(context.Background(), 0)
	if !errors.Is(err, queue.ErrNoMessage) {
		t.Errorf("Receive on empty queue = %v, want ErrNoMessage", err)
	}
}

func TestNackMakesVisibleAgain(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	if err := q.Send(ctx, []byte(`{"n":1}`)); err != nil {
		t.Fatalf("Send() returned error: %v", err)
	}

	msg, err := q.Receive(ctx, 0)
	if err != nil {
		t.Fatalf("Receive() returned error: %v", err)
	}
	if err := q.Nack(ctx, msg); err != nil {
		t.Fatalf("Nack() returned error: %v", err)
	}

	again, err := q.Receive(ctx, 0)
	if err != nil {
		t.Fatalf("Receive after nack returned error: %v", err)
	}
	if again.ID != msg.ID {
		t.Errorf("redelivered id = %q, want %q", again.ID, msg.ID)
	}
	if string(again.Body) != `{"n":1}` {
		t.Errorf("redelivered body = %s", again.Body)
	}
}

func TestReceiveOrder(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	for i := 0; i < 3; i++ {
		if err := q.Send(ctx, []byte(`{"seq":`+string(rune('0'+i))+`}`)); err != nil {
			t.Fatalf("Send(%d) returned error: %v", i, err)
		}
		// Distinct timestamps keep directory order deterministic.
		time.Sleep(2 * time.Millisecond)
	}

	for i := 0; i < 3; i++ {
		msg, err := q.Receive(ctx, 0)
		if err != nil {
			t.Fatalf("Receive(%d) returned error: %v", i, err)
		}
		want := `{"seq":` + string(rune('0'+i)) + `}`
		if string(msg.Body) != want {
			t.Errorf("message %d body = %s, want %s", i, msg.Body, want)
		}
		if err := q.Ack(ctx, msg); err != nil {
			t.Fatalf("Ack(%d) returned error: %v", i, err)
		}
	}
}

func TestSendRejectsInvalidJSON(t *testing.T) {
	q := newTestQueue(t)
	if err := q.Send(context.Background(), []byte("not json")); err == nil {
		t.Error("Send(invalid JSON) = nil error, want error")
	}
}

func TestIgnoresForeignFiles(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	for _, name := range []string{"README.md", "job-stale.json.processing", ".tmp-job-x.json"} {
		if err := os.WriteFile(filepath.Join(q.Dir(), name), []byte("{}"), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	if _, err := q.Receive(ctx, 0); !errors.Is(err, queue.ErrNoMessage) {
		t.Errorf("Receive with only foreign files = %v, want ErrNoMessage", err)
	}
}

func TestAckIdempotent(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	if err := q.Send(ctx, []byte(`{}`)); err != nil {
		t.Fatalf("Send() returned error: %v", err)
	}
	msg, err := q.Receive(ctx, 0)
	if err != nil {
		t.Fatalf("Receive() returned error: %v", err)
	}
	if err := q.Ack(ctx, msg); err != nil {
		t.Fatalf("first Ack() returned error: %v", err)
	}
	if err := q.Ack(ctx, msg); err != nil {
		t.Errorf("second Ack() returned error: %v", err)
	}
}

func TestProvisionIdempotent(t *testing.T) {
	q := newTestQueue(t)
	if err := q.Provision(context.Background()); err != nil {
		t.Errorf("second Provision() returned error: %v", err)
	}
}

func TestMessageNamesSortable(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	if err := q.Send(ctx, []byte(`{}`)); err != nil {
		t.Fatalf("Send() returned error: %v", err)
	}

	entries, err := os.ReadDir(q.Dir())
	if err != nil {
		t.Fatalf("ReadDir() returned error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	name := entries[0].Name()
	if !strings.HasPrefix(name, "job-") || !strings.HasSuffix(name, ".json") {
		t.Errorf("message file name = %q, want job-*.json", name)
	}
}
