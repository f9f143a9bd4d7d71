package ports

import "context"

const (
	EventObservationCreated = "observation.created"
	EventObservationClosed  = "observation.closed"
	EventObservationDeleted = "observation.deleted"
)

type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, []byte) error { return nil }
