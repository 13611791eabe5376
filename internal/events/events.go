// Package events carries envelopes in over NATS.
//
// Producers that cannot call the admin API publish JSON envelopes on the
// inbound subject; Inbound decodes each one and hands it to the dispatcher.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
)

// DefaultInboundSubject is where producers publish envelopes.
const DefaultInboundSubject = "switchboard.emit"

// Publisher sends envelopes to the inbound subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, env model.Envelope) error
	Close() error
}

// Emitter is the dispatcher side of Inbound.
type Emitter interface {
	Emit(ctx context.Context, env model.Envelope)
}

// InboundOptions configure an Inbound feed.
type InboundOptions struct {
	Subject string // default DefaultInboundSubject
	Queue   string // queue group shared by replicas; empty for none
	Workers int    // envelopes dispatched at once; below 1 means 1
}

// Inbound feeds envelopes received on a subject into an Emitter.
type Inbound struct {
	sub     Subscriber
	emitter Emitter
	opts    InboundOptions
	logger  *slog.Logger
}

func NewInbound(sub Subscriber, emitter Emitter, opts InboundOptions, logger *slog.Logger) *Inbound {
	if opts.Subject == "" {
		opts.Subject = DefaultInboundSubject
	}
	opts.Workers = max(opts.Workers, 1)
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbound{sub: sub, emitter: emitter, opts: opts, logger: logger}
}

// Run consumes the subject until ctx is cancelled and the workers drain. It
// fails only when the subscription cannot be established.
func (in *Inbound) Run(ctx context.Context) error {
	feed, err := in.sub.Consume(ctx, in.opts.Subject, in.opts.Queue)
	if err != nil {
		return err
	}
	in.logger.Info("events: inbound subscribed",
		"subject", in.opts.Subject, "queue", in.opts.Queue, "workers", in.opts.Workers)

	var wg sync.WaitGroup
	for range in.opts.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for data := range feed {
				in.handle(ctx, data)
			}
		}()
	}
	wg.Wait()
	in.logger.Info("events: inbound stopped", "subject", in.opts.Subject)
	return nil
}

func (in *Inbound) handle(ctx context.Context, data []byte) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		in.logger.Warn("events: dropping inbound message", "subject", in.opts.Subject, "err", err)
		return
	}
	in.emitter.Emit(ctx, env)
}

// DecodeEnvelope parses and validates one inbound message.
func DecodeEnvelope(data []byte) (model.Envelope, error) {
	var env model.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return model.Envelope{}, fmt.Errorf("decoding envelope: %w", err)
	}
	if err := env.Validate(); err != nil {
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			return model.Envelope{}, fmt.Errorf("invalid envelope: %w", ve)
		}
		return model.Envelope{}, err
	}
	return env, nil
}
