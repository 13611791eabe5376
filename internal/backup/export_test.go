package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/store/memory"
)

func TestExportJSONL_Empty(t *testing.T) {
	var buf bytes.Buffer
	n, err := ExportJSONL(context.Background(), memory.New(), &buf)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if n != 0 {
		t.Fatalf("records = %d, want 0", n)
	}
	lines := nonEmptyLines(buf.String())
	if len(lines) != 1 {
		t.Fatalf("expected header only, got %d lines", len(lines))
	}
	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("decoding header: %v", err)
	}
	if h.Type != "header" || h.Version != "1" || h.ConfigCount != 0 {
		t.Fatalf("unexpected header: %+v", h)
	}
}

func TestExportJSONL_RedactsSecrets(t *testing.T) {
	st := seededStore(t)
	var buf bytes.Buffer
	n, err := ExportJSONL(context.Background(), st, &buf)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if n != 2 {
		t.Fatalf("records = %d, want 2", n)
	}
	out := buf.String()
	if strings.Contains(out, "s3cr3t") || strings.Contains(out, "Bearer t") {
		t.Fatalf("secret leaked into export:\n%s", out)
	}

	lines := nonEmptyLines(out)
	var rec struct {
		Type string              `json:"type"`
		Data model.ChannelRecord `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatalf("decoding record: %v", err)
	}
	if rec.Type != "config" || rec.Data.InstanceName != "shop-42" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	// The store itself is untouched.
	got, err := st.GetChannelConfig(context.Background(), "shop-42", model.ChannelPusher)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Pusher.Secret != "s3cr3t" {
		t.Fatalf("store secret modified: %q", got.Pusher.Secret)
	}
}

func nonEmptyLines(s string) []string {
	var result []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			result = append(result, line)
		}
	}
	return result
}
