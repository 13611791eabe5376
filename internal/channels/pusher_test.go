package channels

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/store/memory"
)

type trigger struct {
	channel, event string
	data           string
}

type fakePusher struct {
	mu       sync.Mutex
	triggers []trigger
	err      error
}

func (f *fakePusher) Trigger(channel, event string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, _ := data.(string)
	f.triggers = append(f.triggers, trigger{channel: channel, event: event, data: s})
	return f.err
}

// newTestPusher returns a Pusher whose clients are fakes, plus a record of
// how many clients were built.
func newTestPusher(t *testing.T, st *memory.Store) (*Pusher, *fakePusher, *int) {
	t.Helper()
	fake := &fakePusher{}
	built := 0
	p := NewPusher(st, Options{})
	p.newClient = func(*model.PusherSettings, *http.Client) pusherTrigger {
		built++
		return fake
	}
	return p, fake, &built
}

var testPusherSettings = &model.PusherSettings{AppID: "1", Key: "k", Secret: "s", Cluster: "mt1", UseTLS: true}

func TestPusher_Deliver(t *testing.T) {
	st := memory.New()
	putConfig(t, st, "shop 42", model.ChannelPusher, model.ChannelConfig{Enabled: true, Pusher: testPusherSettings})
	p, fake, _ := newTestPusher(t, st)

	env := testEnvelope("shop 42", "MESSAGES_UPSERT")
	env.APIKey = "tenant-key"
	p.Deliver(context.Background(), env)

	if len(fake.triggers) != 1 {
		t.Fatalf("triggers = %d, want 1", len(fake.triggers))
	}
	got := fake.triggers[0]
	if got.channel != "shop-42" || got.event != "messages.upsert" {
		t.Errorf("trigger = %s/%s", got.channel, got.event)
	}
	var m Message
	if err := json.Unmarshal([]byte(got.data), &m); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	if m.Instance != "shop 42" {
		t.Errorf("instance = %q", m.Instance)
	}
	if m.APIKey != "" {
		t.Errorf("client-facing message carries apikey %q", m.APIKey)
	}
}

func TestPusher_ClientCachedUntilCredentialsChange(t *testing.T) {
	st := memory.New()
	putConfig(t, st, "shop-42", model.ChannelPusher, model.ChannelConfig{Enabled: true, Pusher: testPusherSettings})
	p, _, built := newTestPusher(t, st)
	ctx := context.Background()

	p.Deliver(ctx, testEnvelope("shop-42", "messages.upsert"))
	p.Deliver(ctx, testEnvelope("shop-42", "messages.update"))
	if *built != 1 {
		t.Fatalf("clients built = %d, want 1", *built)
	}

	rotated := *testPusherSettings
	rotated.Secret = "s2"
	putConfig(t, st, "shop-42", model.ChannelPusher, model.ChannelConfig{Enabled: true, Pusher: &rotated})
	p.Deliver(ctx, testEnvelope("shop-42", "messages.upsert"))
	if *built != 2 {
		t.Fatalf("clients built = %d, want 2 after credential change", *built)
	}

	p.Release("shop-42")
	p.Deliver(ctx, testEnvelope("shop-42", "messages.upsert"))
	if *built != 3 {
		t.Fatalf("clients built = %d, want 3 after release", *built)
	}
}

func TestPusher_OversizedPayloadRejected(t *testing.T) {
	st := memory.New()
	p, fake, _ := newTestPusher(t, st)
	rec := &model.ChannelRecord{InstanceName: "shop-42", Channel: model.ChannelPusher, ChannelConfig: model.ChannelConfig{Enabled: true, Pusher: testPusherSettings}}

	env := testEnvelope("shop-42", "messages.upsert")
	env.Data = json.RawMessage(`"` + strings.Repeat("x", MaxPusherPayload) + `"`)
	if err := p.send(context.Background(), rec, env); err == nil {
		t.Fatal("expected error for oversized payload")
	}
	if len(fake.triggers) != 0 {
		t.Fatal("oversized payload reached the client")
	}
}

func TestPusher_TriggerError(t *testing.T) {
	st := memory.New()
	p, fake, _ := newTestPusher(t, st)
	fake.err = errors.New("401 unauthorized")
	rec := &model.ChannelRecord{InstanceName: "shop-42", Channel: model.ChannelPusher, ChannelConfig: model.ChannelConfig{Enabled: true, Pusher: testPusherSettings}}

	if err := p.send(context.Background(), rec, testEnvelope("shop-42", "messages.upsert")); err == nil {
		t.Fatal("expected trigger error")
	}
}

func TestPusher_SetRequiresCredentials(t *testing.T) {
	p, _, _ := newTestPusher(t, memory.New())
	_, err := p.Set(context.Background(), "shop-42", model.ChannelConfig{Enabled: true, Pusher: &model.PusherSettings{AppID: "1"}})
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestPusherChannelName(t *testing.T) {
	tests := map[string]string{
		"shop-42":     "shop-42",
		"loja são jó": "loja-s-o-j-",
		"a/b":         "a-b",
	}
	for in, want := range tests {
		if got := PusherChannelName(in); got != want {
			t.Errorf("PusherChannelName(%q) = %q, want %q", in, got, want)
		}
	}
}
