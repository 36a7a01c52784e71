// Package dispatch hands ready batches from discovery to validation.
package dispatch

import (
	"context"
	"errors"

	"github.com/go-go-golems/batch-validator/pkg/batch"
)

// ErrClosed is returned by Receive once a source is closed and drained.
var ErrClosed = errors.New("dispatch source closed")

// Dispatcher publishes a claimed batch.
type Dispatcher interface {
	Dispatch(ctx context.Context, b *batch.Batch) error
	Close() error
}

// Delivery is a received batch. Ack must be called once the batch has been
// validated.
type Delivery struct {
	Batch *batch.Batch
	Ack   func(ctx context.Context) error
}

// Source receives dispatched batches.
type Source interface {
	Receive(ctx context.Context) (*Delivery, error)
	Close() error
}

func noAck(context.Context) error { return nil }
