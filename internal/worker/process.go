package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schemascout/schemascout/internal/extract"
	"github.com/schemascout/schemascout/internal/index"
	"github.com/schemascout/schemascout/internal/storage"
	"github.com/schemascout/schemascout/internal/types"
)

// processFile fetches one payload file, reconciles its ids against the
// store, and mirrors first-reference and last-reference transitions
// into the index. The handler acks in all outcomes except extraction
// and store failures.
func (w *Worker) processFile(ctx context.Context, job *types.Job) error {
	file, err := w.store.GetFile(ctx, job.FileURL, job.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		// Removed between enqueue and dispatch.
		w.logger.Info("file no longer tracked, dropping job", "file", job.FileURL, "user", job.UserID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load file %s: %w", job.FileURL, err)
	}

	res, err := w.extractor.FromURL(ctx, file.FileURL, job.ContentType)
	w.logFetch(file.FileURL, res, err)
	if err != nil {
		w.recordError(ctx, job, types.ErrorExtractionFailed, "failed to extract schema data", err)
		return fmt.Errorf("extract %s: %w", file.FileURL, err)
	}

	recorded := false
	if len(res.IDs) == 0 {
		// Not fatal: an empty payload legitimately drops every id the
		// file used to carry.
		w.logger.Warn("no identified objects in payload", "file", file.FileURL)
		w.recordError(ctx, job, types.ErrorNoIDsFound, "no schema.org objects with @id found in file", nil)
		recorded = true
	}

	diff, err := w.store.DiffFileIDs(ctx, file.FileURL, file.UserID, res.IDs)
	if err != nil {
		return fmt.Errorf("reconcile ids for %s: %w", file.FileURL, err)
	}
	w.logger.Info("ids reconciled", "file", file.FileURL,
		"extracted", len(res.IDs), "added", len(diff.Added), "removed", len(diff.Removed))

	var items []index.Item
	for _, ref := range diff.Added {
		if ref.RefCount != 1 {
			continue // already indexed through another file
		}
		obj := res.Object(ref.ID)
		if obj == nil {
			w.logger.Warn("no object recorded for extracted id", "id", ref.ID)
			continue
		}
		items = append(items, index.Item{ID: ref.ID, Site: file.SiteURL, Object: obj})
	}
	if len(items) > 0 {
		if err := w.indexer.AddBatch(ctx, items); err != nil {
			w.recordError(ctx, job, types.ErrorVectorAddFailed, "failed to add items to vector index", err)
			recorded = true
			if w.opts.NackOnIndexFailure {
				return fmt.Errorf("index add for %s: %w", file.FileURL, err)
			}
		} else {
			w.logIndexed(items)
		}
	}

	var stale []string
	for _, ref := range diff.Removed {
		if ref.RefCount == 0 {
			stale = append(stale, ref.ID)
		}
	}
	if err := w.deleteFromIndex(ctx, stale); err != nil {
		w.recordError(ctx, job, types.ErrorVectorDeleteFailed, "failed to delete items from vector index", err)
		recorded = true
		if w.opts.NackOnIndexFailure {
			return fmt.Errorf("index delete for %s: %w", file.FileURL, err)
		}
	}

	if err := w.store.TouchSiteProcessed(ctx, file.SiteURL, file.UserID, time.Now().UTC()); err != nil {
		return fmt.Errorf("touch site %s: %w", file.SiteURL, err)
	}

	// A clean run retires earlier error records; a run that just
	// recorded one keeps it readable for the user.
	if !recorded {
		if err := w.store.ClearErrors(ctx, file.FileURL, file.UserID); err != nil {
			return fmt.Errorf("clear errors for %s: %w", file.FileURL, err)
		}
	}
	return nil
}

// processRemovedFile drains a tombstoned file: every id the file still
// holds is dropped, ids whose last reference went away are deleted from
// the index, and finally the file row itself is deleted.
func (w *Worker) processRemovedFile(ctx context.Context, job *types.Job) error {
	diff, err := w.store.DiffFileIDs(ctx, job.FileURL, job.UserID, nil)
	if err != nil {
		return fmt.Errorf("drain ids for %s: %w", job.FileURL, err)
	}

	var absent []string
	for _, ref := range diff.Removed {
		if ref.RefCount == 0 {
			absent = append(absent, ref.ID)
		}
	}
	w.logger.Info("draining removed file", "file", job.FileURL,
		"ids", len(diff.Removed), "index_deletes", len(absent))

	if err := w.deleteFromIndex(ctx, absent); err != nil {
		w.recordError(ctx, job, types.ErrorVectorDeleteFailed, "failed to delete items from vector index", err)
		if w.opts.NackOnIndexFailure {
			return fmt.Errorf("index delete for %s: %w", job.FileURL, err)
		}
	}

	if err := w.store.DeleteFile(ctx, job.FileURL, job.UserID); err != nil {
		return fmt.Errorf("delete file %s: %w", job.FileURL, err)
	}
	w.logger.Info("file removed", "file", job.FileURL, "user", job.UserID)
	return nil
}

// deleteFromIndex removes ids in index.MaxBatch chunks so a large
// removal cannot produce an oversized request.
func (w *Worker) deleteFromIndex(ctx context.Context, ids []string) error {
	batches := (len(ids) + index.MaxBatch - 1) / index.MaxBatch
	for start := 0; start < len(ids); start += index.MaxBatch {
		batch := ids[start:min(start+index.MaxBatch, len(ids))]
		w.logger.Info("deleting ids from index",
			"count", len(batch), "batch", start/index.MaxBatch+1, "batches", batches)
		if err := w.indexer.DeleteBatch(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

// recordError appends a ProcessingError row. Failures are logged and
// swallowed so bookkeeping cannot mask the primary failure.
func (w *Worker) recordError(ctx context.Context, job *types.Job, errType, msg string, cause error) {
	perr := &types.ProcessingError{
		FileURL:      job.FileURL,
		UserID:       job.UserID,
		ErrorType:    errType,
		ErrorMessage: msg,
	}
	if cause != nil {
		perr.ErrorDetails = cause.Error()
	}
	if err := w.store.LogError(ctx, perr); err != nil {
		w.logger.Warn("failed to record processing error",
			"error_type", errType, "file", job.FileURL, "error", err)
	}
}

// fetchRecord is one JSONL line of the fetch audit log.
type fetchRecord struct {
	Timestamp string `json:"timestamp"`
	WorkerID  string `json:"worker_id"`
	URL       string `json:"url"`
	NumIDs    int    `json:"num_ids_extracted"`
	Error     string `json:"error,omitempty"`
}

func (w *Worker) logFetch(url string, res *extract.Result, ferr error) {
	if w.opts.FetchLog == nil {
		return
	}
	rec := fetchRecord{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		WorkerID:  w.id,
		URL:       url,
	}
	if res != nil {
		rec.NumIDs = len(res.IDs)
	}
	if ferr != nil {
		rec.Error = ferr.Error()
	}
	if err := w.opts.FetchLog.Append(rec); err != nil {
		w.logger.Warn("failed to append fetch log", "error", err)
	}
}

// indexRecord is one JSONL line of the index audit log.
type indexRecord struct {
	Timestamp string         `json:"timestamp"`
	WorkerID  string         `json:"worker_id"`
	ID        string         `json:"id"`
	Site      string         `json:"site"`
	Data      map[string]any `json:"data"`
}

func (w *Worker) logIndexed(items []index.Item) {
	if w.opts.IndexLog == nil {
		return
	}
	ts := time.Now().UTC().Format(time.RFC3339)
	for _, it := range items {
		rec := indexRecord{Timestamp: ts, WorkerID: w.id, ID: it.ID, Site: it.Site, Data: it.Object}
		if err := w.opts.IndexLog.Append(rec); err != nil {
			w.logger.Warn("failed to append index log", "error", err)
			return
		}
	}
}
