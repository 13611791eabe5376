package model

import (
	"reflect"
	"testing"
)

func TestNormalizeEvent(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want string
	}{
		{"messages.upsert", "messages.upsert"},
		{"MESSAGES_UPSERT", "messages.upsert"},
		{"  CONNECTION_UPDATE ", "connection.update"},
		{"GROUP_PARTICIPANTS_UPDATE", "group-participants.update"},
		{"TYPEBOT_CHANGE_STATUS", "typebot.change-status"},
		{"Custom.Thing", "custom.thing"},
		{"", ""},
	} {
		if got := NormalizeEvent(tc.in); got != tc.want {
			t.Errorf("NormalizeEvent(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeEvents(t *testing.T) {
	got := NormalizeEvents([]string{"MESSAGES_UPSERT", "connection.update", "messages.upsert", " "})
	want := []string{"connection.update", "messages.upsert"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeEvents = %v, want %v", got, want)
	}
	if got := NormalizeEvents(nil); got != nil {
		t.Fatalf("NormalizeEvents(nil) = %v, want nil", got)
	}
	if got := NormalizeEvents([]string{"", "  "}); got != nil {
		t.Fatalf("NormalizeEvents(blanks) = %v, want nil", got)
	}
}

func TestEventPath(t *testing.T) {
	if got := EventPath("MESSAGES_UPSERT"); got != "messages-upsert" {
		t.Fatalf("EventPath = %q, want %q", got, "messages-upsert")
	}
	if got := EventPath("call"); got != "call" {
		t.Fatalf("EventPath = %q, want %q", got, "call")
	}
}

func TestParseChannelType(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    ChannelType
		wantErr bool
	}{
		{"webhook", ChannelWebhook, false},
		{"WebSocket", ChannelWebsocket, false},
		{" sqs ", ChannelSQS, false},
		{"rabbitmq", "", true},
		{"", "", true},
	} {
		got, err := ParseChannelType(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseChannelType(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseChannelType(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
