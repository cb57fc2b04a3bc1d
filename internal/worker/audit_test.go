package worker

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/schemascout/schemascout/internal/jsonl"
)

func auditLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()
	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec map[string]any
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("bad audit line: %v", err)
		}
		out = append(out, rec)
	}
	return out
}

func TestAuditLogsRecordFetchAndIndex(t *testing.T) {
	dir := t.TempDir()
	fetchPath := filepath.Join(dir, "fetch.jsonl")
	indexPath := filepath.Join(dir, "index.jsonl")

	fetchLog, err := jsonl.NewWriter(fetchPath)
	if err != nil {
		t.Fatalf("fetch log: %v", err)
	}
	defer fetchLog.Close()
	indexLog, err := jsonl.NewWriter(indexPath)
	if err != nil {
		t.Fatalf("index log: %v", err)
	}
	defer indexLog.Close()

	rig := newTestRig(t, Options{FetchLog: fetchLog, IndexLog: indexLog})
	rig.seedFile(t, testFile)
	rig.ext.results[testFile] = payload(object("https://example.com/p/1", "name", "widget"))
	rig.enqueue(t, fileJob(testFile))
	step(t, rig.w)

	fetches := auditLines(t, fetchPath)
	if len(fetches) != 1 {
		t.Fatalf("fetch log lines = %d, want 1", len(fetches))
	}
	if fetches[0]["url"] != testFile || fetches[0]["num_ids_extracted"] != float64(1) {
		t.Errorf("fetch record = %v", fetches[0])
	}
	if fetches[0]["worker_id"] != "test-1" {
		t.Errorf("fetch worker_id = %v", fetches[0]["worker_id"])
	}

	indexed := auditLines(t, indexPath)
	if len(indexed) != 1 {
		t.Fatalf("index log lines = %d, want 1", len(indexed))
	}
	if indexed[0]["id"] != "https://example.com/p/1" || indexed[0]["site"] != testSite {
		t.Errorf("index record = %v", indexed[0])
	}
	data, ok := indexed[0]["data"].(map[string]any)
	if !ok || data["name"] != "widget" {
		t.Errorf("index record data = %v", indexed[0]["data"])
	}
}

func TestFetchLogRecordsFailures(t *testing.T) {
	dir := t.TempDir()
	fetchPath := filepath.Join(dir, "fetch.jsonl")
	fetchLog, err := jsonl.NewWriter(fetchPath)
	if err != nil {
		t.Fatalf("fetch log: %v", err)
	}
	defer fetchLog.Close()

	rig := newTestRig(t, Options{FetchLog: fetchLog})
	rig.seedFile(t, testFile)
	rig.ext.errs[testFile] = errors.New("connection refused")
	rig.enqueue(t, fileJob(testFile))
	step(t, rig.w)

	fetches := auditLines(t, fetchPath)
	if len(fetches) != 1 {
		t.Fatalf("fetch log lines = %d, want 1", len(fetches))
	}
	if fetches[0]["error"] != "connection refused" {
		t.Errorf("fetch record error = %v", fetches[0]["error"])
	}
}
