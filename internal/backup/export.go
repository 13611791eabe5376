package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/store"
)

// redacted replaces secret values in exports.
const redacted = "***"

type header struct {
	Version     string    `json:"version"`
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	ConfigCount int       `json:"config_count"`
}

type record struct {
	Type string               `json:"type"`
	Data *model.ChannelRecord `json:"data"`
}

// ExportJSONL writes a header line followed by one "config" line per
// channel record, ordered by instance then channel. It returns the number
// of records written.
func ExportJSONL(ctx context.Context, s store.ConfigStore, w io.Writer) (int, error) {
	recs, err := s.ListChannelConfigs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list channel configs: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:     "1",
		Type:        "header",
		Timestamp:   time.Now().UTC(),
		ConfigCount: len(recs),
	}); err != nil {
		return 0, fmt.Errorf("encode header: %w", err)
	}

	for _, rec := range recs {
		if err := enc.Encode(record{Type: "config", Data: Redact(rec)}); err != nil {
			return 0, fmt.Errorf("encode config %s/%s: %w", rec.InstanceName, rec.Channel, err)
		}
	}
	return len(recs), nil
}

// Redact returns a copy of rec with the pusher secret and webhook header
// values masked.
func Redact(rec *model.ChannelRecord) *model.ChannelRecord {
	out := rec.Clone()
	if out.Pusher != nil && out.Pusher.Secret != "" {
		out.Pusher.Secret = redacted
	}
	if out.Webhook != nil && len(out.Webhook.Headers) > 0 {
		for k := range out.Webhook.Headers {
			out.Webhook.Headers[k] = redacted
		}
	}
	return out
}
