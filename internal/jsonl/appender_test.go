package jsonl

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec map[string]any
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", len(out)+1, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func TestAppendWritesOneLinePerRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "log.jsonl")

	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	type rec struct {
		Op    string `json:"op"`
		Count int    `json:"count"`
	}
	if err := w.Append(rec{Op: "send", Count: 1}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Append(map[string]any{"op": "ack", "count": 2}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0]["op"] != "send" || lines[1]["op"] != "ack" {
		t.Errorf("unexpected records: %v", lines)
	}
}

func TestAppendPreservesExistingLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")

	for i := 0; i < 2; i++ {
		w, err := NewWriter(path)
		if err != nil {
			t.Fatalf("NewWriter pass %d: %v", i, err)
		}
		if err := w.Append(map[string]int{"pass": i}); err != nil {
			t.Fatalf("Append pass %d: %v", i, err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close pass %d: %v", i, err)
		}
	}

	lines := readLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2 after reopening", len(lines))
	}
	if lines[0]["pass"] != float64(0) || lines[1]["pass"] != float64(1) {
		t.Errorf("unexpected records: %v", lines)
	}
}

func TestAppendUnmarshalableRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	if err := w.Append(make(chan int)); err == nil {
		t.Fatal("expected marshal error for channel value")
	}
	if lines := readLines(t, path); len(lines) != 0 {
		t.Errorf("failed append wrote %d lines, want 0", len(lines))
	}
}
