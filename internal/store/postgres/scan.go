package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanChannelRecord scans a single row into a model.ChannelRecord.
// The row must contain columns in the order defined by channelConfigColumns.
func scanChannelRecord(row scannable) (*model.ChannelRecord, error) {
	var (
		rec      model.ChannelRecord
		channel  string
		events   []string
		settings []byte
	)
	err := row.Scan(
		&rec.InstanceName,
		&channel,
		&rec.Enabled,
		pq.Array(&events),
		&settings,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Channel = model.ChannelType(channel)
	if len(events) > 0 {
		rec.Events = events
	}
	if err := decodeSettings(&rec, settings); err != nil {
		return nil, err
	}
	return &rec, nil
}

// encodeSettings marshals the channel-specific settings block, or returns
// nil for channels without one.
func encodeSettings(rec *model.ChannelRecord) ([]byte, error) {
	var v any
	switch {
	case rec.Channel == model.ChannelWebhook && rec.Webhook != nil:
		v = rec.Webhook
	case rec.Channel == model.ChannelPusher && rec.Pusher != nil:
		v = rec.Pusher
	default:
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s settings: %w", rec.Channel, err)
	}
	return data, nil
}

func decodeSettings(rec *model.ChannelRecord, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	switch rec.Channel {
	case model.ChannelWebhook:
		var w model.WebhookSettings
		if err := json.Unmarshal(data, &w); err != nil {
			return fmt.Errorf("unmarshal webhook settings: %w", err)
		}
		rec.Webhook = &w
	case model.ChannelPusher:
		var p model.PusherSettings
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("unmarshal pusher settings: %w", err)
		}
		rec.Pusher = &p
	}
	return nil
}
