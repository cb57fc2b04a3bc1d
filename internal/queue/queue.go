// Package queue defines the at-least-once job transport between discovery
// and the workers.
//
// A received message is leased for a visibility timeout; until the lease
// expires no other receiver sees it. Ack settles the message permanently,
// Nack releases it for immediate redelivery. A worker that crashes without
// settling loses the lease and the message is redelivered, so handlers must
// be idempotent.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/schemascout/schemascout/internal/types"
)

// DefaultVisibilityTimeout is the lease length workers use.
const DefaultVisibilityTimeout = 300 * time.Second

// ErrNoMessage is returned by Receive when the queue is empty.
var ErrNoMessage = errors.New("no message available")

// Message is one leased job. Receipt carries whatever backend state is
// needed to settle the message and is opaque to callers.
type Message struct {
	ID      string
	Body    []byte
	Receipt string
}

// Queue is an at-least-once delivery transport.
type Queue interface {
	// Send enqueues one message body.
	Send(ctx context.Context, body []byte) error

	// Receive leases the next message for the visibility timeout, or
	// returns ErrNoMessage. A non-positive visibility uses the default.
	Receive(ctx context.Context, visibility time.Duration) (*Message, error)

	// Ack settles a leased message permanently.
	Ack(ctx context.Context, msg *Message) error

	// Nack releases a leased message for immediate redelivery.
	Nack(ctx context.Context, msg *Message) error

	// Provision creates the backing queue resource. Idempotent.
	Provision(ctx context.Context) error

	Close() error
}

// SendJob encodes and enqueues one job.
func SendJob(ctx context.Context, q Queue, job *types.Job) error {
	body, err := job.Encode()
	if err != nil {
		return err
	}
	return q.Send(ctx, body)
}
