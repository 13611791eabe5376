// Package channels implements the outbound delivery adapters.
//
// Every adapter runs the same gate before sending: load the instance's
// config for the channel, skip when it is missing, disabled or unreadable,
// honour the envelope's Local flag and Integration list, then apply the
// event allow-list. Only then is the transport-specific send invoked, under
// the adapter's timeout. Delivery errors stop at the adapter: they are
// logged and counted, never returned.
package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/metrics"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/store"
)

// DefaultTimeout bounds a single transport send.
const DefaultTimeout = 10 * time.Second

// Channel is one outbound delivery mechanism.
type Channel interface {
	Type() model.ChannelType

	// Init performs one-time transport setup at process start. Adapters
	// whose broker is unreachable log and defer the connection.
	Init(ctx context.Context) error

	// Deliver sends env if the instance's config allows it. It never fails.
	Deliver(ctx context.Context, env model.Envelope)

	// Set validates and persists cfg for instanceName.
	Set(ctx context.Context, instanceName string, cfg model.ChannelConfig) (*model.ChannelRecord, error)

	// Get returns the persisted config, wrapping store.ErrNotFound when the
	// instance was never configured for this channel.
	Get(ctx context.Context, instanceName string) (*model.ChannelRecord, error)

	// Release drops transient per-instance transport handles.
	Release(instanceName string)

	Close() error
}

// Options are shared by every adapter constructor.
type Options struct {
	Logger  *slog.Logger
	Timeout time.Duration
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o Options) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return DefaultTimeout
}

// TransportError describes a failed send.
type TransportError struct {
	Channel  model.ChannelType
	Instance string
	Event    string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s delivery of %s for %s: %v", e.Channel, e.Event, e.Instance, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ConfigReadError describes a config lookup that failed for a reason other
// than the config being absent. Delivery is skipped (fail closed).
type ConfigReadError struct {
	Channel  model.ChannelType
	Instance string
	Err      error
}

func (e *ConfigReadError) Error() string {
	return fmt.Sprintf("reading %s config for %s: %v", e.Channel, e.Instance, e.Err)
}

func (e *ConfigReadError) Unwrap() error { return e.Err }

// errSkipped is returned by a send that decided not to deliver (for
// example, no sockets attached). It is counted as skipped, not failed.
var errSkipped = errors.New("nothing to deliver to")

// errClosed is returned by a send on a channel that has been closed.
var errClosed = errors.New("channel closed")

// sendFunc performs the transport-specific part of a delivery.
type sendFunc func(ctx context.Context, rec *model.ChannelRecord, env model.Envelope) error

// base carries the config gate shared by all adapters.
type base struct {
	channel model.ChannelType
	store   store.ConfigStore
	logger  *slog.Logger
	timeout time.Duration

	// remote channels are suppressed for envelopes marked Local.
	remote bool
}

func newBase(channel model.ChannelType, s store.ConfigStore, opts Options, remote bool) base {
	return base{
		channel: channel,
		store:   s,
		logger:  opts.logger().With("channel", string(channel)),
		timeout: opts.timeout(),
		remote:  remote,
	}
}

func (b *base) Type() model.ChannelType { return b.channel }

// eligible loads the config and applies every filter. It returns nil when
// the envelope must not be delivered on this channel.
func (b *base) eligible(ctx context.Context, env model.Envelope) *model.ChannelRecord {
	rec, err := b.store.GetChannelConfig(ctx, env.InstanceName, b.channel)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		cerr := &ConfigReadError{Channel: b.channel, Instance: env.InstanceName, Err: err}
		b.logger.Error("channels: config read failed, skipping delivery",
			"instance", env.InstanceName, "event", env.Event, "err", cerr)
		metrics.DeliveriesTotal.WithLabelValues(string(b.channel), metrics.ResultConfigKO).Inc()
		return nil
	}
	if !rec.Enabled {
		return nil
	}
	// Local suppresses remote channels even when Integration names them.
	if env.Local && b.remote {
		return nil
	}
	if !env.Allows(b.channel) {
		return nil
	}
	if !rec.Accepts(env.Event) {
		return nil
	}
	return rec
}

// deliver runs the gate and, if the envelope is eligible, send under the
// adapter timeout.
func (b *base) deliver(ctx context.Context, env model.Envelope, send sendFunc) {
	rec := b.eligible(ctx, env)
	if rec == nil {
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	start := time.Now()
	err := send(sendCtx, rec, env)
	metrics.DeliveryDuration.WithLabelValues(string(b.channel)).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.DeliveriesTotal.WithLabelValues(string(b.channel), metrics.ResultSent).Inc()
		b.logger.Debug("channels: delivered", "instance", env.InstanceName, "event", env.Event)
	case errors.Is(err, errSkipped):
		metrics.DeliveriesTotal.WithLabelValues(string(b.channel), metrics.ResultSkipped).Inc()
		b.logger.Debug("channels: skipped", "instance", env.InstanceName, "event", env.Event, "reason", err)
	default:
		terr := &TransportError{Channel: b.channel, Instance: env.InstanceName, Event: env.Event, Err: err}
		metrics.DeliveriesTotal.WithLabelValues(string(b.channel), metrics.ResultFailed).Inc()
		b.logger.Error("channels: delivery failed",
			"instance", env.InstanceName, "event", env.Event, "err", terr)
	}
}

// set validates, normalises and persists a config.
func (b *base) set(ctx context.Context, instanceName string, cfg model.ChannelConfig) (*model.ChannelRecord, error) {
	if instanceName == "" {
		return nil, &model.ValidationError{Channel: b.channel, Errors: []model.FieldError{{Field: "instanceName", Message: "is required"}}}
	}
	if err := cfg.Validate(b.channel); err != nil {
		metrics.ConfigWritesTotal.WithLabelValues(string(b.channel), "invalid").Inc()
		return nil, err
	}

	rec := &model.ChannelRecord{
		InstanceName:  instanceName,
		Channel:       b.channel,
		ChannelConfig: cfg.Normalize(b.channel),
	}
	if err := b.store.SetChannelConfig(ctx, rec); err != nil {
		metrics.ConfigWritesTotal.WithLabelValues(string(b.channel), "error").Inc()
		return nil, fmt.Errorf("saving %s config for %s: %w", b.channel, instanceName, err)
	}
	metrics.ConfigWritesTotal.WithLabelValues(string(b.channel), "ok").Inc()
	b.logger.Info("channels: config saved", "instance", instanceName, "enabled", rec.Enabled, "events", len(rec.Events))
	return rec, nil
}

func (b *base) get(ctx context.Context, instanceName string) (*model.ChannelRecord, error) {
	rec, err := b.store.GetChannelConfig(ctx, instanceName, b.channel)
	if err != nil {
		return nil, fmt.Errorf("%s config for %s: %w", b.channel, instanceName, err)
	}
	return rec, nil
}

// Message is the JSON body published by the queue, broadcast and pub/sub
// channels.
type Message struct {
	Event     string          `json:"event"`
	Instance  string          `json:"instance"`
	Data      json.RawMessage `json:"data,omitempty"`
	ServerURL string          `json:"server_url"`
	DateTime  string          `json:"date_time"`
	Sender    string          `json:"sender"`
	APIKey    string          `json:"apikey,omitempty"`
	Origin    string          `json:"origin,omitempty"`
}

// newClientMessage is newMessage without the API key, for channels whose
// subscribers are end clients rather than backend services.
func newClientMessage(env model.Envelope) Message {
	m := newMessage(env)
	m.APIKey = ""
	return m
}

func newMessage(env model.Envelope) Message {
	return Message{
		Event:     model.NormalizeEvent(env.Event),
		Instance:  env.InstanceName,
		Data:      env.Data,
		ServerURL: env.ServerURL,
		DateTime:  env.DateTime,
		Sender:    env.Sender,
		APIKey:    env.APIKey,
		Origin:    env.Origin,
	}
}
