package sweeper

import "context"

// JSONProducer is satisfied by the Kafka producer.
type JSONProducer interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// StreamPublisher writes transitions keyed by handle, so one node's transitions
// stay ordered within a partition.
type StreamPublisher struct {
	producer JSONProducer
}

func NewStreamPublisher(producer JSONProducer) *StreamPublisher {
	return &StreamPublisher{producer: producer}
}

func (p *StreamPublisher) PublishTransition(ctx context.Context, t Transition) error {
	return p.producer.PublishJSON(ctx, t.Handle.String(), t)
}
