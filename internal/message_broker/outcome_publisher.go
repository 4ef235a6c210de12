package message_broker

import (
	"context"
	"encoding/json"

	"wakesched/internal/models"
)

// OutcomePublisher publishes retry-policy outcomes as JSON.
type OutcomePublisher struct {
	broker     MessageBroker
	routingKey string
}

func NewOutcomePublisher(broker MessageBroker, routingKey string) *OutcomePublisher {
	return &OutcomePublisher{broker: broker, routingKey: routingKey}
}

func (p *OutcomePublisher) PublishOutcome(ctx context.Context, outcome models.Outcome) error {
	body, err := json.Marshal(outcome)
	if err != nil {
		return err
	}
	return p.broker.Publish(ctx, p.routingKey, body)
}

// DecodeOutcome parses a message produced by PublishOutcome.
func DecodeOutcome(message []byte) (models.Outcome, error) {
	var outcome models.Outcome
	err := json.Unmarshal(message, &outcome)
	return outcome, err
}
