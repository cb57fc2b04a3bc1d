// Package servicebus implements the queue on an Azure Service Bus queue.
//
// The message lease uses the queue's native lock: receive locks a message,
// ack completes it and nack abandons it. The lock duration is a property
// of the queue entity, so the visibility argument to Receive is not used;
// queues should be provisioned with a 5 minute lock duration.
package servicebus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"github.com/schemascout/schemascout/internal/queue"
)

// pollWait bounds how long one Receive call waits for a message.
const pollWait = 5 * time.Second

// Config selects the namespace and queue. Namespace wins over
// ConnectionString; a bare namespace name gets the standard domain
// appended.
type Config struct {
	Namespace        string
	ConnectionString string
	QueueName        string
}

// BusQueue implements queue.Queue on Azure Service Bus.
type BusQueue struct {
	client   *azservicebus.Client
	sender   *azservicebus.Sender
	receiver *azservicebus.Receiver

	mu       sync.Mutex
	inflight map[string]*azservicebus.ReceivedMessage
}

var _ queue.Queue = (*BusQueue)(nil)

// New connects to the service bus queue. With a namespace, authentication
// goes through DefaultAzureCredential (workload identity, managed
// identity, then developer tooling); otherwise the connection string is
// used.
func New(_ context.Context, cfg Config) (*BusQueue, error) {
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("servicebus: queue name is required")
	}

	var (
		client *azservicebus.Client
		err    error
	)
	switch {
	case cfg.Namespace != "":
		fqns := cfg.Namespace
		if !strings.Contains(fqns, ".servicebus.windows.net") {
			fqns += ".servicebus.windows.net"
		}
		cred, cerr := azidentity.NewDefaultAzureCredential(nil)
		if cerr != nil {
			return nil, fmt.Errorf("servicebus: failed to build credential: %w", cerr)
		}
		client, err = azservicebus.NewClient(fqns, cred, nil)
	case cfg.ConnectionString != "":
		client, err = azservicebus.NewClientFromConnectionString(cfg.ConnectionString, nil)
	default:
		return nil, fmt.Errorf("servicebus: namespace or connection string is required")
	}
	if err != nil {
		return nil, fmt.Errorf("servicebus: failed to create client: %w", err)
	}

	sender, err := client.NewSender(cfg.QueueName, nil)
	if err != nil {
		_ = client.Close(context.Background())
		return nil, fmt.Errorf("servicebus: failed to create sender: %w", err)
	}
	receiver, err := client.NewReceiverForQueue(cfg.QueueName, nil)
	if err != nil {
		_ = client.Close(context.Background())
		return nil, fmt.Errorf("servicebus: failed to create receiver: %w", err)
	}

	return &BusQueue{
		client:   client,
		sender:   sender,
		receiver: receiver,
		inflight: make(map[string]*azservicebus.ReceivedMessage),
	}, nil
}

// Send enqueues one message body.
func (q *BusQueue) Send(ctx context.Context, body []byte) error {
	err := q.sender.SendMessage(ctx, &azservicebus.Message{Body: body}, nil)
	if err != nil {
		return fmt.Errorf("servicebus: failed to send message: %w", err)
	}
	return nil
}

// Receive waits up to the poll budget for one message. The visibility
// argument is ignored; the queue's lock duration applies.
func (q *BusQueue) Receive(ctx context.Context, _ time.Duration) (*queue.Message, error) {
	pollCtx, cancel := context.WithTimeout(ctx, pollWait)
	defer cancel()

	msgs, err := q.receiver.ReceiveMessages(pollCtx, 1, nil)
	if err != nil {
		// An expired poll budget is an empty queue, not a failure.
		if ctx.Err() == nil && pollCtx.Err() != nil {
			return nil, queue.ErrNoMessage
		}
		return nil, fmt.Errorf("servicebus: failed to receive message: %w", err)
	}
	if len(msgs) == 0 {
		return nil, queue.ErrNoMessage
	}

	m := msgs[0]
	q.mu.Lock()
	q.inflight[m.MessageID] = m
	q.mu.Unlock()

	return &queue.Message{ID: m.MessageID, Body: m.Body, Receipt: m.MessageID}, nil
}

// Ack completes the message, removing it from the queue.
func (q *BusQueue) Ack(ctx context.Context, msg *queue.Message) error {
	m := q.take(msg.Receipt)
	if m == nil {
		return fmt.Errorf("servicebus: ack %s: unknown receipt", msg.ID)
	}
	if err := q.receiver.CompleteMessage(ctx, m, nil); err != nil {
		q.putBack(m)
		return fmt.Errorf("servicebus: failed to complete message %s: %w", msg.ID, err)
	}
	return nil
}

// Nack abandons the message, making it immediately available again.
func (q *BusQueue) Nack(ctx context.Context, msg *queue.Message) error {
	m := q.take(msg.Receipt)
	if m == nil {
		return fmt.Errorf("servicebus: nack %s: unknown receipt", msg.ID)
	}
	if err := q.receiver.AbandonMessage(ctx, m, nil); err != nil {
		q.putBack(m)
		return fmt.Errorf("servicebus: failed to abandon message %s: %w", msg.ID, err)
	}
	return nil
}

// Provision verifies connectivity and authorization with a peek. Entity
// creation is an infrastructure concern.
func (q *BusQueue) Provision(ctx context.Context) error {
	if _, err := q.receiver.PeekMessages(ctx, 1, nil); err != nil {
		return fmt.Errorf("servicebus: failed to peek queue: %w", err)
	}
	return nil
}

// Close releases the receiver, sender and connection.
func (q *BusQueue) Close() error {
	ctx := context.Background()
	var firstErr error
	for _, close := range []func(context.Context) error{
		q.receiver.Close, q.sender.Close, q.client.Close,
	} {
		if err := close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (q *BusQueue) take(receipt string) *azservicebus.ReceivedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	m := q.inflight[receipt]
	delete(q.inflight, receipt)
	return m
}

func (q *BusQueue) putBack(m *azservicebus.ReceivedMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.inflight[m.MessageID] = m
}
