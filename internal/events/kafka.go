package events

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/fathima-sithara/presence-service/internal/domain"
)

type KafkaPublisher struct {
	writer        *kafkago.Writer
	topicMessages string
	topicPresence string
}

func NewKafkaPublisher(brokers []string, topicMessages, topicPresence string, log *zap.Logger) *KafkaPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
		Async:        true,
		Completion: func(messages []kafkago.Message, err error) {
			if err != nil {
				log.Warn("kafka publish failed", zap.Int("count", len(messages)), zap.Error(err))
			}
		},
	}
	return &KafkaPublisher{writer: w, topicMessages: topicMessages, topicPresence: topicPresence}
}

func (p *KafkaPublisher) write(ctx context.Context, topic, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafkago.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: b,
		Time:  time.Now(),
	})
}

func (p *KafkaPublisher) MessageSent(ctx context.Context, m *domain.Message) error {
	return p.write(ctx, p.topicMessages, m.ReceiverID, newMessageSent(m))
}

func (p *KafkaPublisher) PresenceChanged(ctx context.Context, ids []string) error {
	return p.write(ctx, p.topicPresence, "presence", newPresenceChanged(ids))
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
