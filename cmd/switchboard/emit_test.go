package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
)

func newEmitCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "emit"}
	addEmitFlags(cmd)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return cmd
}

func TestEnvelopeFromFlags(t *testing.T) {
	cmd := newEmitCmd(t, "--data", `{"state":"open"}`, "--sender", "5511999", "--integration", "websocket,webhook")
	env, err := envelopeFromFlags(cmd, "shop-42", "CONNECTION_UPDATE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.InstanceName != "shop-42" || env.Event != "CONNECTION_UPDATE" || env.Origin != "cli" || env.Sender != "5511999" {
		t.Errorf("env = %+v", env)
	}
	if string(env.Data) != `{"state":"open"}` {
		t.Errorf("data = %s", env.Data)
	}
	if len(env.Integration) != 2 || env.Integration[1] != model.ChannelWebhook {
		t.Errorf("integration = %v", env.Integration)
	}
	if env.DateTime == "" {
		t.Error("dateTime not set")
	}
	if err := env.Validate(); err != nil {
		t.Errorf("envelope does not validate: %v", err)
	}
}

func TestEnvelopeFromFlags_NoIntegrationMeansAll(t *testing.T) {
	env, err := envelopeFromFlags(newEmitCmd(t, "--local"), "shop-42", "QRCODE_UPDATED")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Integration != nil {
		t.Errorf("integration = %v, want nil", env.Integration)
	}
	if !env.Local {
		t.Error("local not set")
	}
	if env.Data != nil {
		t.Errorf("data = %s, want none", env.Data)
	}
}

func TestEnvelopeFromFlags_DataFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "msg.json")
	if err := os.WriteFile(path, []byte(`{"key":{"id":"A1"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	env, err := envelopeFromFlags(newEmitCmd(t, "--data-file", path), "shop-42", "MESSAGES_UPSERT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(env.Data) != `{"key":{"id":"A1"}}` {
		t.Errorf("data = %s", env.Data)
	}
}

func TestEnvelopeFromFlags_Errors(t *testing.T) {
	for name, args := range map[string][]string{
		"InvalidJSON":     {"--data", "{"},
		"BothDataSources": {"--data", "{}", "--data-file", "x.json"},
		"UnknownChannel":  {"--integration", "carrier"},
		"MissingFile":     {"--data-file", filepath.Join(t.TempDir(), "nope.json")},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := envelopeFromFlags(newEmitCmd(t, args...), "shop-42", "call"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
