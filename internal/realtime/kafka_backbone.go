package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/itsDrac/e-auc-bidding/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// KafkaBackbone keys every envelope by lot id, so a lot's envelopes share a
// partition and keep their order. Each instance reads with its own consumer
// group and therefore sees every envelope.
type KafkaBackbone struct {
	w       *kafka.Writer
	brokers []string
	topic   string
	groupID string
	log     *logger.Logger
}

func NewKafkaBackbone(brokers []string, topic, instanceID string, log *logger.Logger) *KafkaBackbone {
	return &KafkaBackbone{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			MaxAttempts:  3,
			WriteTimeout: 5 * time.Second,
			ReadTimeout:  5 * time.Second,
			BatchTimeout: 5 * time.Millisecond,
		},
		brokers: brokers,
		topic:   topic,
		groupID: "bidding-relay-" + instanceID,
		log:     log.Component("backbone.kafka"),
	}
}

func (k *KafkaBackbone) Publish(ctx context.Context, env Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return k.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(env.LotID.String()),
		Value: b,
	})
}

func (k *KafkaBackbone) Subscribe(ctx context.Context, fn func(Envelope)) error {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     k.brokers,
		Topic:       k.topic,
		GroupID:     k.groupID,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    1e6,
		MaxWait:     100 * time.Millisecond,
	})
	defer r.Close()

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var env Envelope
		if err := json.Unmarshal(m.Value, &env); err != nil {
			k.log.Warnw("dropping malformed envelope", "offset", m.Offset, "error", err)
			continue
		}
		fn(env)
	}
}

func (k *KafkaBackbone) Close() error { return k.w.Close() }
