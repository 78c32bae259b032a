package kafka

import (
	"time"

	"github.com/IBM/sarama"
)

type Config struct {
	Addrs []string `envconfig:"KAFKA_ADDRS" default:"localhost:9092"`
	Topic string   `envconfig:"KAFKA_TOPIC" default:"circulation-events"`
}

type EventType string

const (
	EventLoanCreated          EventType = "LOAN_CREATED"
	EventLoanReturned         EventType = "LOAN_RETURNED"
	EventLoanOverdue          EventType = "LOAN_OVERDUE"
	EventReservationCreated   EventType = "RESERVATION_CREATED"
	EventReservationFulfilled EventType = "RESERVATION_FULFILLED"
	EventReservationCancelled EventType = "RESERVATION_CANCELLED"
	EventReservationExpired   EventType = "RESERVATION_EXPIRED"
)

// CirculationEvent is published for every loan and reservation transition.
type CirculationEvent struct {
	Type       EventType `json:"type"`
	BookID     int       `json:"bookId"`
	UserID     int       `json:"userId"`
	EntityUid  string    `json:"entityUid"`
	OccurredAt time.Time `json:"occurredAt"`
}

func NewProducer(cfg Config) (sarama.SyncProducer, error) {
	defaultCfg := sarama.NewConfig()

	defaultCfg.Producer.RequiredAcks = sarama.WaitForAll
	defaultCfg.Producer.Return.Successes = true

	return sarama.NewSyncProducer(cfg.Addrs, defaultCfg)
}
