// Package client is a Go client for the switchboard admin API, used by the
// CLI and by producers that emit events over HTTP.
package client

import (
	"context"
	"time"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/presence"
)

// Client is the interface the CLI commands use to talk to a server.
type Client interface {
	// Channel config
	SetChannel(ctx context.Context, channel model.ChannelType, instanceName string, cfg model.ChannelConfig) (*model.ChannelRecord, error)
	FindChannel(ctx context.Context, channel model.ChannelType, instanceName string) (*model.ChannelRecord, error)
	SetSettings(ctx context.Context, instanceName string, b model.Bundle) (map[model.ChannelType]*model.ChannelRecord, error)

	// Events
	Emit(ctx context.Context, env model.Envelope) (*EmitResponse, error)

	// Instances
	ReportPresence(ctx context.Context, instanceName string, state presence.State) error
	ListInstances(ctx context.Context, staleThreshold time.Duration) ([]presence.Entry, error)

	// Health
	Health(ctx context.Context) (*HealthResponse, error)

	Close() error
}

// EmitResponse is returned once the server has accepted an envelope.
type EmitResponse struct {
	Status   string `json:"status"`
	Instance string `json:"instance"`
	Event    string `json:"event"`
}

// HealthResponse reports server status and the registered channels.
type HealthResponse struct {
	Status   string   `json:"status"`
	Channels []string `json:"channels"`
}
