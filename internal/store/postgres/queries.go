package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/store"
)

// channelConfigColumns is the column list used for SELECT statements on the
// channel_configs table.
const channelConfigColumns = `instance_name, channel, enabled, events, settings, created_at, updated_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func querySetChannelConfig(ctx context.Context, db executor, rec *model.ChannelRecord) error {
	settings, err := encodeSettings(rec)
	if err != nil {
		return err
	}
	var settingsArg any
	if settings != nil {
		settingsArg = string(settings)
	}
	events := rec.Events
	if events == nil {
		events = []string{}
	}
	return db.QueryRowContext(ctx, `
		INSERT INTO channel_configs (instance_name, channel, enabled, events, settings)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (instance_name, channel) DO UPDATE
			SET enabled = $3, events = $4, settings = $5, updated_at = NOW()
		RETURNING created_at, updated_at`,
		rec.InstanceName, string(rec.Channel), rec.Enabled, pq.Array(events), settingsArg,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

func queryGetChannelConfig(ctx context.Context, db executor, instanceName string, channel model.ChannelType) (*model.ChannelRecord, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+channelConfigColumns+`
		FROM channel_configs WHERE instance_name = $1 AND channel = $2`,
		instanceName, string(channel))
	rec, err := scanChannelRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get channel config: %w", err)
	}
	return rec, nil
}

func queryListChannelConfigs(ctx context.Context, db executor) ([]*model.ChannelRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+channelConfigColumns+`
		FROM channel_configs ORDER BY instance_name, channel`)
	if err != nil {
		return nil, fmt.Errorf("list channel configs: %w", err)
	}
	defer rows.Close()

	var out []*model.ChannelRecord
	for rows.Next() {
		rec, err := scanChannelRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel config: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
