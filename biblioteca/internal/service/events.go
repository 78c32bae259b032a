package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/javeriana-dev/biblioteca-service/pkg/kafka"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// EventPublisher announces circulation transitions to interested consumers
// (stats, notifications). Publishing is best-effort: a broker outage must
// never fail a loan or reservation.
type EventPublisher interface {
	Publish(event kafka.CirculationEvent) error
}

type kafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string) EventPublisher {
	return &kafkaPublisher{
		producer: producer,
		topic:    topic,
	}
}

func (p *kafkaPublisher) Publish(event kafka.CirculationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{Topic: p.topic, Value: sarama.StringEncoder(data)}
	if _, _, err = p.producer.SendMessage(msg); err != nil {
		return err
	}
	return nil
}

// NopPublisher is used when no broker is configured and in tests.
type NopPublisher struct{}

func (NopPublisher) Publish(kafka.CirculationEvent) error { return nil }

func (s *Service) publish(_ context.Context, typ kafka.EventType, bookID, userID int, uid string) {
	err := s.events.Publish(kafka.CirculationEvent{
		Type:       typ,
		BookID:     bookID,
		UserID:     userID,
		EntityUid:  uid,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		s.log.Warn("publish event", zap.String("type", string(typ)), zap.Error(err))
	}
}
