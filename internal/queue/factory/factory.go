// Package factory selects and builds the configured queue backend.
package factory

import (
	"context"
	"fmt"

	"github.com/schemascout/schemascout/internal/config"
	"github.com/schemascout/schemascout/internal/queue"
	"github.com/schemascout/schemascout/internal/queue/filequeue"
	"github.com/schemascout/schemascout/internal/queue/servicebus"
	"github.com/schemascout/schemascout/internal/queue/storagequeue"
)

// Queue type names accepted in configuration.
const (
	TypeFile       = "file"
	TypeServiceBus = "servicebus"
	TypeStorage    = "storage"
)

// New creates the queue backend named by cfg.QueueType, wrapping it in the
// operation journal when one is configured. An empty type selects the file
// queue.
func New(ctx context.Context, cfg *config.Config) (queue.Queue, error) {
	queueType := cfg.QueueType
	if queueType == "" {
		queueType = TypeFile
	}

	var (
		q   queue.Queue
		err error
	)
	switch queueType {
	case TypeFile:
		dir := cfg.QueueDir
		if dir == "" {
			dir = "queue_data"
		}
		q, err = filequeue.New(dir)
	case TypeServiceBus:
		q, err = servicebus.New(ctx, servicebus.Config{
			Namespace:        cfg.ServiceBusNamespace,
			ConnectionString: cfg.ServiceBusConnectionString,
			QueueName:        cfg.ServiceBusQueue,
		})
	case TypeStorage:
		q, err = storagequeue.New(ctx, storagequeue.Config{
			AccountName:      cfg.StorageAccount,
			ConnectionString: cfg.StorageConnectionString,
			QueueName:        cfg.StorageQueue,
		})
	default:
		return nil, fmt.Errorf("unsupported queue type: %s (supported: %s, %s, %s)",
			queueType, TypeFile, TypeServiceBus, TypeStorage)
	}
	if err != nil {
		return nil, err
	}

	if cfg.QueueJournal != "" {
		journaled, jerr := queue.NewJournal(q, queueType, cfg.QueueJournal)
		if jerr != nil {
			_ = q.Close()
			return nil, jerr
		}
		return journaled, nil
	}
	return q, nil
}
