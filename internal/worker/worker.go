// Package worker drains the job queue and converges store and index
// state for each payload file.
//
// Workers are stateless: every job carries its tenant and file, and
// handlers are idempotent so at-least-once delivery is safe. A failed
// job is nacked and redelivered; a job whose file row has disappeared
// is acked and dropped.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/schemascout/schemascout/internal/extract"
	"github.com/schemascout/schemascout/internal/index"
	"github.com/schemascout/schemascout/internal/jsonl"
	"github.com/schemascout/schemascout/internal/queue"
	"github.com/schemascout/schemascout/internal/storage"
	"github.com/schemascout/schemascout/internal/types"
)

const (
	// PollInterval is the sleep between empty receives.
	PollInterval = 5 * time.Second

	// depthLogInterval paces approximate-depth log lines for queue
	// backends that can report a count.
	depthLogInterval = 30 * time.Second
)

// PayloadExtractor fetches a payload file and extracts its identified
// objects. *extract.Extractor is the production implementation.
type PayloadExtractor interface {
	FromURL(ctx context.Context, url, contentType string) (*extract.Result, error)
}

// Deps are the collaborators a worker drives.
type Deps struct {
	Store   storage.Store
	Queue   queue.Queue
	Indexer index.Indexer

	// Extractor defaults to extract.New when nil.
	Extractor PayloadExtractor
}

// Options tune failure handling and audit logging.
type Options struct {
	// NackOnIndexFailure returns a job to the queue when an index
	// write fails, instead of recording the error and acking. The
	// store state is canonical either way; nacking trades duplicate
	// fetch work for a tighter index.
	NackOnIndexFailure bool

	// Visibility is the receive lease length. Zero uses
	// queue.DefaultVisibilityTimeout.
	Visibility time.Duration

	// PollInterval overrides the sleep between empty receives.
	PollInterval time.Duration

	// FetchLog and IndexLog, when set, receive one JSONL record per
	// payload fetch and per indexed document.
	FetchLog *jsonl.Writer
	IndexLog *jsonl.Writer
}

// Worker consumes queue messages one at a time.
type Worker struct {
	id        string
	store     storage.Store
	queue     queue.Queue
	indexer   index.Indexer
	extractor PayloadExtractor
	opts      Options
	logger    *slog.Logger
	track     *tracker

	retry        backoff.BackOff
	lastDepthLog time.Time
}

// New builds a worker. id distinguishes workers sharing one queue and
// appears in logs, audit records, and the status endpoint.
func New(id string, deps Deps, opts Options, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "worker", "worker_id", id)

	if opts.Visibility <= 0 {
		opts.Visibility = queue.DefaultVisibilityTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = PollInterval
	}
	ext := deps.Extractor
	if ext == nil {
		ext = extract.New(logger)
	}

	// Paces retries while the store is unreachable. MaxElapsedTime is
	// disabled; the worker waits as long as the outage lasts.
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0

	return &Worker{
		id:        id,
		store:     deps.Store,
		queue:     deps.Queue,
		indexer:   deps.Indexer,
		extractor: ext,
		opts:      opts,
		logger:    logger,
		track:     newTracker(id),
		retry:     b,
	}
}

// Run drains the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started")
	defer w.track.stop()

	for {
		err := w.Step(ctx)
		switch {
		case err == nil:
		case errors.Is(err, queue.ErrNoMessage):
			if !sleepCtx(ctx, w.opts.PollInterval) {
				return ctx.Err()
			}
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return ctx.Err()
		default:
			w.logger.Error("queue receive failed", "error", err)
			if !sleepCtx(ctx, w.opts.PollInterval) {
				return ctx.Err()
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// RunOnce settles at most one message. An empty queue is not an error.
func (w *Worker) RunOnce(ctx context.Context) error {
	defer w.track.stop()
	err := w.Step(ctx)
	if errors.Is(err, queue.ErrNoMessage) {
		w.logger.Info("queue empty")
		return nil
	}
	return err
}

// Step receives and settles one message. It returns queue.ErrNoMessage
// when the queue is empty; a job failure nacks the message and returns
// nil because the message was handled.
func (w *Worker) Step(ctx context.Context) error {
	w.maybeLogDepth(ctx)

	msg, err := w.queue.Receive(ctx, w.opts.Visibility)
	if err != nil {
		return err
	}

	job, derr := types.DecodeJob(msg.Body)
	if derr != nil || !job.Valid() {
		// Settle poison messages instead of recycling them; a nack
		// would redeliver them forever.
		w.logger.Warn("dropping invalid job", "error", derr, "body", string(msg.Body))
		return w.queue.Ack(ctx, msg)
	}

	w.logger.Info("processing job", "type", job.Type, "file", job.FileURL, "user", job.UserID)
	w.track.begin(job)
	err = w.handle(ctx, job)
	w.track.finish(err == nil)

	if err != nil {
		w.logger.Error("job failed", "type", job.Type, "file", job.FileURL, "error", err)
		if nerr := w.queue.Nack(ctx, msg); nerr != nil {
			w.logger.Warn("failed to return message to queue", "error", nerr)
		}
		if errors.Is(err, storage.ErrUnavailable) {
			wait := w.retry.NextBackOff()
			w.logger.Warn("store unavailable, backing off", "wait", wait)
			sleepCtx(ctx, wait)
		}
		return nil
	}

	if aerr := w.queue.Ack(ctx, msg); aerr != nil {
		w.logger.Warn("failed to settle message", "error", aerr)
	}
	w.retry.Reset()
	return nil
}

func (w *Worker) handle(ctx context.Context, job *types.Job) error {
	switch job.Type {
	case types.JobProcessFile:
		return w.processFile(ctx, job)
	case types.JobProcessRemovedFile:
		return w.processRemovedFile(ctx, job)
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

// depthReporter is implemented by queue backends that can report an
// approximate message count.
type depthReporter interface {
	ApproximateDepth(ctx context.Context) (int32, error)
}

func (w *Worker) maybeLogDepth(ctx context.Context) {
	dr, ok := w.queue.(depthReporter)
	if !ok {
		return
	}
	now := time.Now()
	if now.Sub(w.lastDepthLog) < depthLogInterval {
		return
	}
	w.lastDepthLog = now
	if n, err := dr.ApproximateDepth(ctx); err == nil {
		w.logger.Info("queue depth", "approximate_messages", n)
	}
}

// sleepCtx sleeps for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
