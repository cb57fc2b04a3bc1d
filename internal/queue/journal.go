package queue

import (
	"context"
	"errors"
	"time"

	"github.com/schemascout/schemascout/internal/jsonl"
	"github.com/schemascout/schemascout/internal/types"
)

// journalEntry is one JSONL line in the operation journal.
type journalEntry struct {
	TS        string `json:"ts"`
	Op        string `json:"op"`
	QueueType string `json:"queue_type"`
	MsgType   string `json:"msg_type,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Site      string `json:"site,omitempty"`
	FileURL   string `json:"file_url,omitempty"`
	OK        bool   `json:"ok"`
}

// Journal decorates a Queue with a JSONL append log of its operations.
// Empty receives are not journaled; everything else is, including
// failures. Journal write errors never fail the queue operation.
type Journal struct {
	inner     Queue
	queueType string
	log       *jsonl.Writer
}

var _ Queue = (*Journal)(nil)

// NewJournal wraps inner, appending operation lines to the file at path.
func NewJournal(inner Queue, queueType, path string) (*Journal, error) {
	w, err := jsonl.NewWriter(path)
	if err != nil {
		return nil, err
	}
	return &Journal{inner: inner, queueType: queueType, log: w}, nil
}

func (j *Journal) record(op string, body []byte, ok bool) {
	e := journalEntry{
		TS:        time.Now().UTC().Format(time.RFC3339),
		Op:        op,
		QueueType: j.queueType,
		OK:        ok,
	}
	if job, err := types.DecodeJob(body); err == nil {
		e.MsgType = string(job.Type)
		e.UserID = job.UserID
		e.Site = job.Site
		e.FileURL = job.FileURL
	}
	_ = j.log.Append(e)
}

func (j *Journal) Send(ctx context.Context, body []byte) error {
	err := j.inner.Send(ctx, body)
	j.record("send", body, err == nil)
	return err
}

func (j *Journal) Receive(ctx context.Context, visibility time.Duration) (*Message, error) {
	msg, err := j.inner.Receive(ctx, visibility)
	if errors.Is(err, ErrNoMessage) {
		return nil, err
	}
	var body []byte
	if msg != nil {
		body = msg.Body
	}
	j.record("receive", body, err == nil)
	return msg, err
}

func (j *Journal) Ack(ctx context.Context, msg *Message) error {
	err := j.inner.Ack(ctx, msg)
	j.record("ack", msg.Body, err == nil)
	return err
}

func (j *Journal) Nack(ctx context.Context, msg *Message) error {
	err := j.inner.Nack(ctx, msg)
	j.record("nack", msg.Body, err == nil)
	return err
}

func (j *Journal) Provision(ctx context.Context) error {
	err := j.inner.Provision(ctx)
	j.record("provision", nil, err == nil)
	return err
}

// ApproximateDepth reports the inner queue's depth when the backend
// supports it.
func (j *Journal) ApproximateDepth(ctx context.Context) (int32, error) {
	if dr, ok := j.inner.(interface {
		ApproximateDepth(context.Context) (int32, error)
	}); ok {
		return dr.ApproximateDepth(ctx)
	}
	return 0, errors.New("queue depth not supported")
}

// Close closes the inner queue, then the journal file.
func (j *Journal) Close() error {
	err := j.inner.Close()
	if cerr := j.log.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
