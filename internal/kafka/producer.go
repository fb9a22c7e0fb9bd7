package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

type Config struct {
	Brokers      []string
	BatchTimeout time.Duration // default 50ms
	WriteTimeout time.Duration // default 5s
	RequiredAcks kafka.RequiredAcks
}

// Producer is a thin wrapper around segmentio/kafka-go Writer. The
// topic is set per message, so one producer serves every outbox topic.
type Producer struct {
	w *kafka.Writer
}

func NewProducerFromConfig(c Config) *Producer {
	bt := c.BatchTimeout
	if bt <= 0 {
		bt = 50 * time.Millisecond
	}
	wt := c.WriteTimeout
	if wt <= 0 {
		wt = 5 * time.Second
	}
	acks := c.RequiredAcks
	if acks == 0 {
		acks = kafka.RequireAll
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: bt,
		WriteTimeout: wt,
		RequiredAcks: acks,
	}

	return &Producer{w: w}
}

// Publish writes one message to the given topic. The outbox event id
// becomes the message key and the event name rides in a header, so
// consumers can route on type without parsing the payload.
func (p *Producer) Publish(ctx context.Context, topic, eventName, key string, value []byte) error {
	return p.w.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_name", Value: []byte(eventName)},
		},
	})
}

func (p *Producer) Close() error { return p.w.Close() }
