package queue

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// MessageReader is the part of *kafka.Reader the activity consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaReader returns a group reader for the reservation event topic.
func NewKafkaReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
}

// RunKafka feeds messages from r into the activity log until ctx is done
// or the reader fails.  Undecodable messages are logged and committed so
// they do not block the partition.
func (c *ActivityConsumer) RunKafka(ctx context.Context, r MessageReader) error {
	defer r.Close()

	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if err := c.HandleMessage(msg.Value); err != nil {
			c.log.Error("activity message dropped",
				"partition", msg.Partition, "offset", msg.Offset, "err", err)
		}
		if err := r.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.Warn("kafka commit failed", "offset", msg.Offset, "err", err)
		}
	}
}
