package repository

import (
	"context"
	"fmt"
	"time"

	"CrudeDesk/internal/domain/models"
	pkgkafka "CrudeDesk/pkg/kafka"
)

// KafkaNotifier publishes regime transitions so downstream consumers
// (alerting, dashboards) learn about regime flips without polling.
type KafkaNotifier struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaNotifier(producer *pkgkafka.Producer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

type regimeChangeEvent struct {
	Market     string    `json:"market"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	OccurredAt time.Time `json:"occurredAt"`
	Reason     string    `json:"reason"`
}

// NotifyRegimeChange publishes one transition, keyed by market so per-market
// ordering is preserved.
func (n *KafkaNotifier) NotifyRegimeChange(ctx context.Context, market models.Market, t models.RegimeTransition) error {
	ev := regimeChangeEvent{
		Market:     string(market),
		From:       string(t.From),
		To:         string(t.To),
		OccurredAt: t.OccurredAt,
		Reason:     t.Reason,
	}
	if err := n.producer.Publish(ctx, n.topic, []byte(market), ev); err != nil {
		return fmt.Errorf("publish regime change: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.producer.Close()
}
