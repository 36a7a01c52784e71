package dispatch

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/go-go-golems/batch-validator/pkg/batch"
	"github.com/rs/zerolog/log"
)

// Channel is an in-process queue. It carries the same JSON payload as the
// Kafka transport and is both a Dispatcher and a Source.
type Channel struct {
	ch chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func NewChannel(size int) *Channel {
	return &Channel{ch: make(chan []byte, size), done: make(chan struct{})}
}

// Dispatch blocks while the queue is full. It returns ErrClosed once Close
// has been called, including for a send that is already waiting.
func (c *Channel) Dispatch(ctx context.Context, b *batch.Batch) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.ch <- data:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Channel) Receive(ctx context.Context) (*Delivery, error) {
	for {
		var data []byte
		select {
		case data = <-c.ch:
		case <-c.done:
			select {
			case data = <-c.ch:
			default:
				return nil, ErrClosed
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		b, err := batch.Decode(data)
		if err != nil {
			log.Warn().Err(err).Msg("Dropping undecodable payload")
			continue
		}
		return &Delivery{Batch: b, Ack: noAck}, nil
	}
}

// Close stops accepting batches. Batches already queued can still be received.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

var (
	_ Dispatcher = &Channel{}
	_ Source     = &Channel{}
)
