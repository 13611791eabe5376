// Package server exposes the admin HTTP API: per-channel config set/find,
// instance settings bundles, event emission, presence reports, health and
// metrics.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/presence"
)

// Dispatcher is the part of dispatch.Dispatcher the API drives.
type Dispatcher interface {
	Channels() []model.ChannelType
	EmitAsync(ctx context.Context, env model.Envelope)
	SetChannelConfig(ctx context.Context, instanceName string, t model.ChannelType, cfg model.ChannelConfig) (*model.ChannelRecord, error)
	GetInstanceConfig(ctx context.Context, instanceName string, t model.ChannelType) (*model.ChannelRecord, error)
	SetInstanceConfig(ctx context.Context, instanceName string, b model.Bundle) (map[model.ChannelType]*model.ChannelRecord, error)
}

// Presence is the part of presence.Tracker the API drives.
type Presence interface {
	RecordState(instance string, state presence.State)
	Roster(staleThreshold time.Duration) []presence.Entry
}

// Server holds the handlers' dependencies.
type Server struct {
	dispatcher Dispatcher
	presence   Presence
	logger     *slog.Logger
}

// New returns a Server. presence may be nil, in which case presence
// reports are rejected and the roster is empty.
func New(d Dispatcher, p Presence, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{dispatcher: d, presence: p, logger: logger}
}
