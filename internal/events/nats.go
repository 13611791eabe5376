package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
)

// consumeBuffer bounds messages held between the NATS client and Inbound.
// Beyond it the client reports a slow consumer and drops.
const consumeBuffer = 256

// NATSPublisher is used by the CLI to inject envelopes.
type NATSPublisher struct {
	nc *nats.Conn
}

var _ Publisher = (*NATSPublisher)(nil)

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("switchboard-cli"))
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{nc: nc}, nil
}

// Publish returns once the server has seen env, or ctx expires.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, env model.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshaling envelope: %w", err)
	}
	if err := p.nc.Publish(subject, payload); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return p.nc.FlushWithContext(ctx)
}

func (p *NATSPublisher) Close() error {
	p.nc.Close()
	return nil
}

// NATSSubscriber is the server side of the inbound feed. It reconnects
// forever.
type NATSSubscriber struct {
	nc *nats.Conn
}

var _ Subscriber = (*NATSSubscriber)(nil)

func NewNATSSubscriber(url string, extra ...nats.Option) (*NATSSubscriber, error) {
	opts := append([]nats.Option{
		nats.Name("switchboard-inbound"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}, extra...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSSubscriber{nc: nc}, nil
}

func (s *NATSSubscriber) Consume(ctx context.Context, subject, queue string) (<-chan []byte, error) {
	msgs := make(chan *nats.Msg, consumeBuffer)

	var (
		sub *nats.Subscription
		err error
	)
	if queue == "" {
		sub, err = s.nc.ChanSubscribe(subject, msgs)
	} else {
		sub, err = s.nc.ChanQueueSubscribe(subject, queue, msgs)
	}
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", subject, err)
	}
	// Interest has to reach the server before publishers on other
	// connections are routed here.
	if err := s.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("flushing subscription to %s: %w", subject, err)
	}

	// msgs is never closed by the client, so only this goroutine closes out.
	out := make(chan []byte)
	go func() {
		defer close(out)
		defer sub.Unsubscribe() //nolint:errcheck
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-msgs:
				select {
				case out <- m.Data:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *NATSSubscriber) Close() error {
	s.nc.Close()
	return nil
}
