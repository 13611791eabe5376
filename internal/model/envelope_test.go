package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEnvelope_CloneIsDeep(t *testing.T) {
	orig := Envelope{
		InstanceName: "shop-42",
		Event:        EventMessagesUpsert,
		Data:         json.RawMessage(`{"a":1}`),
		Integration:  []ChannelType{ChannelWebhook},
	}
	c := orig.Clone()
	c.Data[2] = 'b'
	c.Integration[0] = ChannelNATS

	if string(orig.Data) != `{"a":1}` {
		t.Fatalf("clone mutation leaked into original data: %s", orig.Data)
	}
	if orig.Integration[0] != ChannelWebhook {
		t.Fatalf("clone mutation leaked into original integration: %v", orig.Integration)
	}
}

func TestEnvelope_Allows(t *testing.T) {
	env := Envelope{}
	if !env.Allows(ChannelPusher) {
		t.Fatal("nil integration should allow every channel")
	}
	env.Integration = []ChannelType{ChannelWebhook}
	if !env.Allows(ChannelWebhook) {
		t.Fatal("expected webhook to be allowed")
	}
	if env.Allows(ChannelNATS) {
		t.Fatal("expected nats to be rejected")
	}
	env.Integration = []ChannelType{}
	if env.Allows(ChannelWebhook) {
		t.Fatal("empty non-nil integration should allow nothing")
	}
}

func TestEnvelope_Validate(t *testing.T) {
	if err := (Envelope{InstanceName: "a", Event: "call"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := Envelope{Data: json.RawMessage(`{nope`), Integration: []ChannelType{"kafka"}}.Validate()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(ve.Errors) != 4 {
		t.Fatalf("expected 4 field errors, got %d: %v", len(ve.Errors), ve)
	}
}

func TestEnvelope_Payload(t *testing.T) {
	env := Envelope{
		Event: "CONNECTION_UPDATE",
		Data:  json.RawMessage(`{"instance":"shop-42","state":"open","statusReason":200}`),
	}
	p, err := env.Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	cu, ok := p.(ConnectionUpdate)
	if !ok {
		t.Fatalf("expected ConnectionUpdate, got %T", p)
	}
	if cu.State != "open" || cu.StatusReason != 200 {
		t.Fatalf("unexpected payload: %+v", cu)
	}

	env = Envelope{Event: "brand.new", Data: json.RawMessage(`[1,2]`)}
	p, err = env.Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	if raw, ok := p.(RawPayload); !ok || string(raw) != `[1,2]` {
		t.Fatalf("expected RawPayload [1,2], got %#v", p)
	}

	env = Envelope{Event: EventMessagesUpsert, Data: json.RawMessage(`"str"`)}
	if _, err := env.Payload(); err == nil {
		t.Fatal("expected decode error for mismatched messages.upsert data")
	}
}
