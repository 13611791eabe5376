package events

import "context"

// Subscriber receives raw messages from the bus.
type Subscriber interface {
	// Consume delivers payloads for subject until ctx is done, then closes
	// the returned channel. A non-empty queue joins a queue group so each
	// message reaches one member.
	Consume(ctx context.Context, subject, queue string) (<-chan []byte, error)
	Close() error
}
