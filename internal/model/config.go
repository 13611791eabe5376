package model

import (
	"maps"
	"slices"
	"time"
)

// ChannelConfig is the per-instance configuration of one channel.
// Webhook and Pusher are populated only for their matching channel type.
// On the wire their fields are flattened next to enabled and events.
type ChannelConfig struct {
	Enabled bool

	// Events is the allow-list of event names. Empty means all events.
	Events []string

	Webhook *WebhookSettings
	Pusher  *PusherSettings
}

// WebhookSettings are the webhook-specific fields of a ChannelConfig.
type WebhookSettings struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`

	// ByEvents routes each event to <url>/<event-path> instead of <url>.
	ByEvents bool `json:"byEvents"`

	// Base64 keeps base64-encoded media fields in the delivered payload.
	Base64 bool `json:"base64"`
}

// PusherSettings are the pusher-specific fields of a ChannelConfig.
type PusherSettings struct {
	AppID   string `json:"appId"`
	Key     string `json:"key"`
	Secret  string `json:"secret"`
	Cluster string `json:"cluster,omitempty"`
	UseTLS  bool   `json:"useTLS"`
}

// Normalize returns a copy of c with canonical events and only the settings
// block belonging to channel.
func (c ChannelConfig) Normalize(channel ChannelType) ChannelConfig {
	out := ChannelConfig{
		Enabled: c.Enabled,
		Events:  NormalizeEvents(c.Events),
	}
	switch channel {
	case ChannelWebhook:
		if c.Webhook != nil {
			w := *c.Webhook
			w.Headers = maps.Clone(c.Webhook.Headers)
			out.Webhook = &w
		}
	case ChannelPusher:
		if c.Pusher != nil {
			p := *c.Pusher
			out.Pusher = &p
		}
	}
	return out
}

// Accepts reports whether the event passes the allow-list.
func (c ChannelConfig) Accepts(event string) bool {
	if len(c.Events) == 0 {
		return true
	}
	return slices.Contains(c.Events, NormalizeEvent(event))
}

// ChannelRecord is a persisted ChannelConfig.
type ChannelRecord struct {
	InstanceName string
	Channel      ChannelType
	ChannelConfig
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Bundle carries a partial update of an instance's channel configuration.
// A nil member leaves that channel unchanged.
type Bundle struct {
	Websocket *ChannelConfig `json:"websocket,omitempty"`
	NATS      *ChannelConfig `json:"nats,omitempty"`
	Webhook   *ChannelConfig `json:"webhook,omitempty"`
	Pusher    *ChannelConfig `json:"pusher,omitempty"`
	SQS       *ChannelConfig `json:"sqs,omitempty"`
}

// Entries returns the present members keyed by channel type.
func (b Bundle) Entries() map[ChannelType]ChannelConfig {
	m := make(map[ChannelType]ChannelConfig)
	for c, cfg := range map[ChannelType]*ChannelConfig{
		ChannelWebsocket: b.Websocket,
		ChannelNATS:      b.NATS,
		ChannelWebhook:   b.Webhook,
		ChannelPusher:    b.Pusher,
		ChannelSQS:       b.SQS,
	} {
		if cfg != nil {
			m[c] = *cfg
		}
	}
	return m
}

// Clone returns a deep copy of the record.
func (r *ChannelRecord) Clone() *ChannelRecord {
	c := *r
	c.Events = slices.Clone(r.Events)
	if r.Webhook != nil {
		w := *r.Webhook
		w.Headers = maps.Clone(r.Webhook.Headers)
		c.Webhook = &w
	}
	if r.Pusher != nil {
		p := *r.Pusher
		c.Pusher = &p
	}
	return &c
}
