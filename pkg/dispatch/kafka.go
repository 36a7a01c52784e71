package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-go-golems/batch-validator/pkg/batch"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// KafkaDispatcher publishes batch payloads to a Kafka topic, keyed by batch
// so that one batch always lands on the same partition.
type KafkaDispatcher struct {
	writer *kafka.Writer
}

func NewKafkaDispatcher(brokers []string, topic string) (*KafkaDispatcher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	if topic == "" {
		return nil, errors.New("no kafka topic configured")
	}
	return &KafkaDispatcher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
	}, nil
}

func (k *KafkaDispatcher) Dispatch(ctx context.Context, b *batch.Batch) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(b.Key().String()),
		Value: data,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish batch %s: %w", b.Key(), err)
	}
	return nil
}

func (k *KafkaDispatcher) Close() error {
	return k.writer.Close()
}

// KafkaSource consumes batch payloads as part of a consumer group. Offsets
// are committed by Delivery.Ack.
type KafkaSource struct {
	reader *kafka.Reader
}

func NewKafkaSource(brokers []string, topic, groupID string) (*KafkaSource, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	if topic == "" || groupID == "" {
		return nil, errors.New("kafka topic and group id are required")
	}
	return &KafkaSource{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
	}, nil
}

func (k *KafkaSource) Receive(ctx context.Context) (*Delivery, error) {
	for {
		msg, err := k.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrClosed
			}
			return nil, fmt.Errorf("failed to fetch message: %w", err)
		}
		b, err := batch.Decode(msg.Value)
		if err != nil {
			log.Warn().Err(err).Int64("offset", msg.Offset).Int("partition", msg.Partition).Msg("Skipping undecodable payload")
			if cerr := k.reader.CommitMessages(ctx, msg); cerr != nil {
				return nil, fmt.Errorf("failed to commit skipped message: %w", cerr)
			}
			continue
		}
		m := msg
		return &Delivery{
			Batch: b,
			Ack: func(ctx context.Context) error {
				return k.reader.CommitMessages(ctx, m)
			},
		}, nil
	}
}

func (k *KafkaSource) Close() error {
	return k.reader.Close()
}

var (
	_ Dispatcher = &KafkaDispatcher{}
	_ Source     = &KafkaSource{}
)
