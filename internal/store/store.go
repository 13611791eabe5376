package store

import (
	"context"
	"errors"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
)

// ErrNotFound is returned when an instance has never been configured for a
// channel.
var ErrNotFound = errors.New("channel config not found")

// ConfigStore is the single read/write path to per-instance channel
// configuration.
type ConfigStore interface {
	// GetChannelConfig returns ErrNotFound when the pair was never set.
	GetChannelConfig(ctx context.Context, instanceName string, channel model.ChannelType) (*model.ChannelRecord, error)

	// SetChannelConfig upserts rec and fills in its timestamps.
	SetChannelConfig(ctx context.Context, rec *model.ChannelRecord) error

	// ListChannelConfigs returns every record ordered by instance, channel.
	ListChannelConfigs(ctx context.Context) ([]*model.ChannelRecord, error)

	Close() error
}
