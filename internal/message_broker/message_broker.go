package message_broker

import "context"

type MessageBroker interface {
	Publish(ctx context.Context, routingKey string, message []byte) error
	Consume(ctx context.Context) (<-chan []byte, error)
	Close() error
}
