// Package storagequeue implements the queue on an Azure Storage queue.
//
// Storage queues carry the visibility timeout per dequeue: a received
// message stays invisible for the requested window, ack deletes it with
// the pop receipt, and nack resets its visibility to zero so it is
// redelivered immediately.
package storagequeue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/cenkalti/backoff/v4"

	"github.com/schemascout/schemascout/internal/queue"
)

// Config selects the storage account and queue. AccountName wins over
// ConnectionString.
type Config struct {
	AccountName      string
	ConnectionString string
	QueueName        string
}

// StorageQueue implements queue.Queue on an Azure Storage queue.
type StorageQueue struct {
	client *azqueue.QueueClient
	name   string
}

var _ queue.Queue = (*StorageQueue)(nil)

// New connects to the storage queue. With an account name, authentication
// goes through DefaultAzureCredential; otherwise the connection string is
// used (which also covers Azurite for local development).
func New(_ context.Context, cfg Config) (*StorageQueue, error) {
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("storagequeue: queue name is required")
	}

	var (
		client *azqueue.QueueClient
		err    error
	)
	switch {
	case cfg.AccountName != "":
		queueURL := fmt.Sprintf("https://%s.queue.core.windows.net/%s", cfg.AccountName, cfg.QueueName)
		cred, cerr := azidentity.NewDefaultAzureCredential(nil)
		if cerr != nil {
			return nil, fmt.Errorf("storagequeue: failed to build credential: %w", cerr)
		}
		client, err = azqueue.NewQueueClient(queueURL, cred, nil)
	case cfg.ConnectionString != "":
		client, err = azqueue.NewQueueClientFromConnectionString(cfg.ConnectionString, cfg.QueueName, nil)
	default:
		return nil, fmt.Errorf("storagequeue: account name or connection string is required")
	}
	if err != nil {
		return nil, fmt.Errorf("storagequeue: failed to create client: %w", err)
	}

	return &StorageQueue{client: client, name: cfg.QueueName}, nil
}

// Send enqueues one message body.
func (q *StorageQueue) Send(ctx context.Context, body []byte) error {
	if _, err := q.client.EnqueueMessage(ctx, string(body), nil); err != nil {
		return fmt.Errorf("storagequeue: failed to send message: %w", err)
	}
	return nil
}

// Receive dequeues one message with the given visibility timeout, or
// returns ErrNoMessage.
func (q *StorageQueue) Receive(ctx context.Context, visibility time.Duration) (*queue.Message, error) {
	if visibility <= 0 {
		visibility = queue.DefaultVisibilityTimeout
	}

	resp, err := q.client.DequeueMessage(ctx, &azqueue.DequeueMessageOptions{
		VisibilityTimeout: to.Ptr(int32(visibility / time.Second)),
	})
	if err != nil {
		return nil, fmt.Errorf("storagequeue: failed to receive message: %w", err)
	}
	if len(resp.Messages) == 0 {
		return nil, queue.ErrNoMessage
	}

	m := resp.Messages[0]
	if m.MessageID == nil || m.PopReceipt == nil {
		return nil, fmt.Errorf("storagequeue: received message without id or pop receipt")
	}
	var body []byte
	if m.MessageText != nil {
		body = []byte(*m.MessageText)
	}
	return &queue.Message{ID: *m.MessageID, Body: body, Receipt: *m.PopReceipt}, nil
}

// Ack deletes the message using its pop receipt.
func (q *StorageQueue) Ack(ctx context.Context, msg *queue.Message) error {
	if _, err := q.client.DeleteMessage(ctx, msg.ID, msg.Receipt, nil); err != nil {
		return fmt.Errorf("storagequeue: failed to delete message %s: %w", msg.ID, err)
	}
	return nil
}

// Nack resets the message's visibility to zero so it is redelivered
// immediately. The body is re-sent unchanged; the old pop receipt becomes
// invalid.
func (q *StorageQueue) Nack(ctx context.Context, msg *queue.Message) error {
	_, err := q.client.UpdateMessage(ctx, msg.ID, msg.Receipt, string(msg.Body),
		&azqueue.UpdateMessageOptions{VisibilityTimeout: to.Ptr(int32(0))})
	if err != nil {
		return fmt.Errorf("storagequeue: failed to return message %s: %w", msg.ID, err)
	}
	return nil
}

// Provision creates the queue, retrying transient failures. An existing
// queue is not an error.
func (q *StorageQueue) Provision(ctx context.Context) error {
	op := func() error {
		_, err := q.client.Create(ctx, nil)
		if err == nil {
			return nil
		}
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.ErrorCode == "QueueAlreadyExists" {
			return nil
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return fmt.Errorf("storagequeue: failed to create queue %s: %w", q.name, err)
	}
	return nil
}

// ApproximateDepth returns the queue's approximate message count.
func (q *StorageQueue) ApproximateDepth(ctx context.Context) (int32, error) {
	props, err := q.client.GetProperties(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("storagequeue: failed to get properties: %w", err)
	}
	if props.ApproximateMessagesCount == nil {
		return 0, nil
	}
	return *props.ApproximateMessagesCount, nil
}

// Close is a no-op; the client holds no persistent connection.
func (q *StorageQueue) Close() error {
	return nil
}
