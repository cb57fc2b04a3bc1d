package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/schemascout/schemascout/internal/types"
)

// Worker states reported by the status endpoint.
const (
	StateIdle       = "idle"
	StateProcessing = "processing"
	StateStopped    = "stopped"
)

// tracker holds one worker's runtime state for the status endpoint.
type tracker struct {
	mu        sync.Mutex
	workerID  string
	startedAt time.Time
	state     string
	current   *types.Job
	processed int64
	failed    int64
	lastJobAt time.Time
	lastState string
}

func newTracker(workerID string) *tracker {
	return &tracker{
		workerID:  workerID,
		startedAt: time.Now().UTC(),
		state:     StateIdle,
	}
}

func (t *tracker) begin(job *types.Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = StateProcessing
	t.current = job
}

func (t *tracker) finish(ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = StateIdle
	t.current = nil
	t.lastJobAt = time.Now().UTC()
	if ok {
		t.processed++
		t.lastState = "success"
	} else {
		t.failed++
		t.lastState = "failed"
	}
}

func (t *tracker) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = StateStopped
	t.current = nil
}

// Snapshot is one worker's runtime state as served by /status.
type Snapshot struct {
	WorkerID           string     `json:"worker_id"`
	StartedAt          time.Time  `json:"started_at"`
	Status             string     `json:"status"`
	CurrentJob         *types.Job `json:"current_job,omitempty"`
	TotalJobsProcessed int64      `json:"total_jobs_processed"`
	TotalJobsFailed    int64      `json:"total_jobs_failed"`
	LastJobAt          *time.Time `json:"last_job_at,omitempty"`
	LastJobStatus      string     `json:"last_job_status,omitempty"`
}

func (t *tracker) snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Snapshot{
		WorkerID:           t.workerID,
		StartedAt:          t.startedAt,
		Status:             t.state,
		CurrentJob:         t.current,
		TotalJobsProcessed: t.processed,
		TotalJobsFailed:    t.failed,
		LastJobStatus:      t.lastState,
	}
	if !t.lastJobAt.IsZero() {
		at := t.lastJobAt
		s.LastJobAt = &at
	}
	return s
}

// Status returns the worker's current runtime state.
func (w *Worker) Status() Snapshot {
	return w.track.snapshot()
}

// statusHandler serves pool state as JSON.
func statusHandler(p *Pool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(p.Snapshot())
	})
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]string{"status": "healthy"})
	})
	return mux
}

// ServeStatus exposes the pool's /status and /healthz endpoints on addr
// until ctx is cancelled.
func ServeStatus(ctx context.Context, addr string, p *Pool, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           statusHandler(p),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("status server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		return err
	}
}
