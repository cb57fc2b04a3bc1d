package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestPool(t *testing.T, rig *testRig, n int) *Pool {
	t.Helper()
	return NewPool(n, Deps{
		Store:     rig.store,
		Queue:     rig.queue,
		Indexer:   rig.idx,
		Extractor: rig.ext,
	}, Options{PollInterval: 5 * time.Millisecond}, discardLogger())
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp.StatusCode
}

func TestStatusEndpoint(t *testing.T) {
	rig := newTestRig(t, Options{})
	pool := newTestPool(t, rig, 2)

	rig.seedFile(t, testFile)
	rig.ext.results[testFile] = payload(object("a"))
	rig.enqueue(t, fileJob(testFile))
	if err := pool.Workers()[0].Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}

	srv := httptest.NewServer(statusHandler(pool))
	defer srv.Close()

	var snap PoolSnapshot
	if code := getJSON(t, srv.URL+"/status", &snap); code != http.StatusOK {
		t.Fatalf("/status code = %d", code)
	}
	if len(snap.Workers) != 2 {
		t.Fatalf("workers in snapshot = %d, want 2", len(snap.Workers))
	}
	if snap.TotalJobsProcessed != 1 {
		t.Errorf("total processed = %d, want 1", snap.TotalJobsProcessed)
	}
	if snap.Status != StateIdle {
		t.Errorf("pool status = %q, want idle", snap.Status)
	}
	if snap.Workers[0].WorkerID == "" || snap.Workers[0].WorkerID == snap.Workers[1].WorkerID {
		t.Errorf("worker ids not distinct: %q vs %q", snap.Workers[0].WorkerID, snap.Workers[1].WorkerID)
	}

	var health map[string]string
	if code := getJSON(t, srv.URL+"/healthz", &health); code != http.StatusOK {
		t.Fatalf("/healthz code = %d", code)
	}
	if health["status"] != "healthy" {
		t.Errorf("healthz = %v", health)
	}
}

func TestServeStatusShutsDownOnCancel(t *testing.T) {
	rig := newTestRig(t, Options{})
	pool := newTestPool(t, rig, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ServeStatus(ctx, "127.0.0.1:0", pool, discardLogger()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ServeStatus returned %v after cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ServeStatus did not stop after cancel")
	}
}

func TestPoolRunOnceDrainsOneEach(t *testing.T) {
	rig := newTestRig(t, Options{})
	pool := newTestPool(t, rig, 2)

	rig.seedFile(t, testFile)
	rig.ext.results[testFile] = payload(object("a"))
	for i := 0; i < 3; i++ {
		rig.enqueue(t, fileJob(testFile))
	}

	if err := pool.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	acked, nacked := rig.queue.counts()
	if acked != 2 || nacked != 0 {
		t.Fatalf("acked=%d nacked=%d, want each worker to settle exactly one message", acked, nacked)
	}

	rig.queue.mu.Lock()
	left := len(rig.queue.pending)
	rig.queue.mu.Unlock()
	if left != 1 {
		t.Errorf("pending = %d, want 1 left for the next pass", left)
	}
}

func TestPoolRunStopsOnCancel(t *testing.T) {
	rig := newTestRig(t, Options{})
	pool := newTestPool(t, rig, 3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop after cancel")
	}

	for _, w := range pool.Workers() {
		if s := w.Status(); s.Status != StateStopped {
			t.Errorf("worker %s status = %q, want stopped", s.WorkerID, s.Status)
		}
	}
}
