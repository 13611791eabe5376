package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// channelConfigJSON is the wire form of ChannelConfig. Webhook and pusher
// fields sit flat beside enabled and events; a present field selects its
// settings block.
type channelConfigJSON struct {
	Enabled bool     `json:"enabled"`
	Events  []string `json:"events,omitempty"`

	URL      *string           `json:"url,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	ByEvents *bool             `json:"byEvents,omitempty"`
	Base64   *bool             `json:"base64,omitempty"`

	AppID   *string `json:"appId,omitempty"`
	Key     *string `json:"key,omitempty"`
	Secret  *string `json:"secret,omitempty"`
	Cluster *string `json:"cluster,omitempty"`
	UseTLS  *bool   `json:"useTLS,omitempty"`
}

func (w *channelConfigJSON) webhookFields() []string {
	var f []string
	if w.URL != nil {
		f = append(f, "url")
	}
	if w.Headers != nil {
		f = append(f, "headers")
	}
	if w.ByEvents != nil {
		f = append(f, "byEvents")
	}
	if w.Base64 != nil {
		f = append(f, "base64")
	}
	return f
}

func (w *channelConfigJSON) pusherFields() []string {
	var f []string
	if w.AppID != nil {
		f = append(f, "appId")
	}
	if w.Key != nil {
		f = append(f, "key")
	}
	if w.Secret != nil {
		f = append(f, "secret")
	}
	if w.Cluster != nil {
		f = append(f, "cluster")
	}
	if w.UseTLS != nil {
		f = append(f, "useTLS")
	}
	return f
}

func wireConfig(c ChannelConfig) channelConfigJSON {
	w := channelConfigJSON{Enabled: c.Enabled, Events: c.Events}
	if s := c.Webhook; s != nil {
		w.URL, w.Headers, w.ByEvents, w.Base64 = &s.URL, s.Headers, &s.ByEvents, &s.Base64
	}
	if s := c.Pusher; s != nil {
		w.AppID, w.Key, w.Secret, w.Cluster, w.UseTLS = &s.AppID, &s.Key, &s.Secret, &s.Cluster, &s.UseTLS
	}
	return w
}

func (w *channelConfigJSON) config() (ChannelConfig, error) {
	hook, push := w.webhookFields(), w.pusherFields()
	if len(hook) > 0 && len(push) > 0 {
		return ChannelConfig{}, fmt.Errorf("config mixes webhook field %q with pusher field %q", hook[0], push[0])
	}
	c := ChannelConfig{Enabled: w.Enabled, Events: w.Events}
	if len(hook) > 0 {
		c.Webhook = &WebhookSettings{URL: deref(w.URL), Headers: w.Headers, ByEvents: deref(w.ByEvents), Base64: deref(w.Base64)}
	}
	if len(push) > 0 {
		c.Pusher = &PusherSettings{AppID: deref(w.AppID), Key: deref(w.Key), Secret: deref(w.Secret), Cluster: deref(w.Cluster), UseTLS: deref(w.UseTLS)}
	}
	return c, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// decodeStrict rejects fields the target does not declare.
func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (c ChannelConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireConfig(c))
}

func (c *ChannelConfig) UnmarshalJSON(data []byte) error {
	var w channelConfigJSON
	if err := decodeStrict(data, &w); err != nil {
		return err
	}
	cfg, err := w.config()
	if err != nil {
		return err
	}
	*c = cfg
	return nil
}

// DecodeChannelConfig parses the flat config for channel. Fields that belong
// to another channel are reported as a *ValidationError.
func DecodeChannelConfig(channel ChannelType, data []byte) (ChannelConfig, error) {
	var w channelConfigJSON
	if err := decodeStrict(data, &w); err != nil {
		return ChannelConfig{}, fmt.Errorf("invalid %s config: %w", channel, err)
	}

	ve := ValidationError{Channel: channel}
	var foreign []string
	if channel != ChannelWebhook {
		foreign = append(foreign, w.webhookFields()...)
	}
	if channel != ChannelPusher {
		foreign = append(foreign, w.pusherFields()...)
	}
	for _, f := range foreign {
		ve.Errors = append(ve.Errors, FieldError{Field: f, Message: "is not a " + string(channel) + " setting"})
	}
	if ve.HasErrors() {
		return ChannelConfig{}, &ve
	}
	return w.config()
}

type channelRecordJSON struct {
	InstanceName string      `json:"instanceName"`
	Channel      ChannelType `json:"channel"`
	channelConfigJSON
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (r ChannelRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(channelRecordJSON{
		InstanceName:      r.InstanceName,
		Channel:           r.Channel,
		channelConfigJSON: wireConfig(r.ChannelConfig),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	})
}

func (r *ChannelRecord) UnmarshalJSON(data []byte) error {
	var w channelRecordJSON
	if err := decodeStrict(data, &w); err != nil {
		return err
	}
	cfg, err := w.config()
	if err != nil {
		return err
	}
	*r = ChannelRecord{
		InstanceName:  w.InstanceName,
		Channel:       w.Channel,
		ChannelConfig: cfg,
		CreatedAt:     w.CreatedAt,
		UpdatedAt:     w.UpdatedAt,
	}
	return nil
}

// UnmarshalJSON decodes each member with DecodeChannelConfig. Keys that
// name no channel are rejected.
func (b *Bundle) UnmarshalJSON(data []byte) error {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}
	var out Bundle
	for key, raw := range members {
		channel := ChannelType(key)
		if !channel.IsValid() {
			return fmt.Errorf("unknown channel %q in bundle", key)
		}
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		cfg, err := DecodeChannelConfig(channel, raw)
		if err != nil {
			return err
		}
		*out.member(channel) = &cfg
	}
	*b = out
	return nil
}

func (b *Bundle) member(c ChannelType) **ChannelConfig {
	switch c {
	case ChannelWebsocket:
		return &b.Websocket
	case ChannelNATS:
		return &b.NATS
	case ChannelWebhook:
		return &b.Webhook
	case ChannelPusher:
		return &b.Pusher
	case ChannelSQS:
		return &b.SQS
	}
	panic("model: no bundle member for " + string(c))
}
