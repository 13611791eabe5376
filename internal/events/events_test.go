package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
)

type recordingEmitter struct {
	mu  sync.Mutex
	got []model.Envelope
}

func (r *recordingEmitter) Emit(_ context.Context, env model.Envelope) {
	r.mu.Lock()
	r.got = append(r.got, env)
	r.mu.Unlock()
}

func (r *recordingEmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

// chanSubscriber relays a test-owned channel until ctx is done.
type chanSubscriber struct {
	ch      chan []byte
	subject string
	queue   string
	err     error
}

func (c *chanSubscriber) Consume(ctx context.Context, subject, queue string) (<-chan []byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.subject, c.queue = subject, queue
	out := make(chan []byte)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case data := <-c.ch:
				select {
				case out <- data:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (c *chanSubscriber) Close() error { return nil }

func TestDecodeEnvelope(t *testing.T) {
	if _, err := DecodeEnvelope([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := DecodeEnvelope([]byte(`{"event":"call"}`)); err == nil {
		t.Error("expected error for missing instanceName")
	}
	env, err := DecodeEnvelope([]byte(`{"instanceName":"shop-42","event":"CALL","local":true,"integration":["websocket"]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Local || len(env.Integration) != 1 || env.Integration[0] != model.ChannelWebsocket {
		t.Errorf("unexpected envelope: %+v", env)
	}
}

func TestInbound_EmitsValidMessages(t *testing.T) {
	sub := &chanSubscriber{ch: make(chan []byte, 4)}
	em := &recordingEmitter{}
	in := NewInbound(sub, em, InboundOptions{Queue: "replicas", Workers: 2}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- in.Run(ctx) }()

	sub.ch <- []byte(`{"instanceName":"shop-42","event":"messages.upsert"}`)
	sub.ch <- []byte(`{"event":"messages.upsert"}`)
	sub.ch <- []byte(`{"instanceName":"shop-7","event":"call"}`)

	deadline := time.Now().Add(2 * time.Second)
	for em.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("emitted %d envelopes, want 2", em.count())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sub.subject != DefaultInboundSubject || sub.queue != "replicas" {
		t.Errorf("consumed %q in queue %q", sub.subject, sub.queue)
	}
	if em.count() != 2 {
		t.Fatalf("emitted %d envelopes, want 2", em.count())
	}
}

func TestInbound_SubscribeError(t *testing.T) {
	want := errors.New("no connection")
	in := NewInbound(&chanSubscriber{err: want}, &recordingEmitter{}, InboundOptions{Subject: "x"}, nil)
	if err := in.Run(context.Background()); !errors.Is(err, want) {
		t.Fatalf("Run = %v, want %v", err, want)
	}
}
