// Package dispatch fans each event out to every registered channel.
//
// Emit starts one goroutine per channel and waits for all of them. A channel
// that panics or fails never affects its siblings, and nothing is reported
// back to the emitter.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/channels"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/idgen"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/metrics"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
)

// ErrUnknownChannel is returned for a channel type with no registered adapter.
var ErrUnknownChannel = errors.New("unknown channel")

// Attacher is implemented by channels that serve routes on the shared mux.
type Attacher interface {
	Attach(mux *http.ServeMux)
}

// Dispatcher owns the channel registry.
type Dispatcher struct {
	channels map[model.ChannelType]channels.Channel
	order    []model.ChannelType
	logger   *slog.Logger

	wg sync.WaitGroup // in-flight EmitAsync calls
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// New builds a dispatcher over chans. Two channels of the same type are
// rejected.
func New(chans []channels.Channel, opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		channels: make(map[model.ChannelType]channels.Channel, len(chans)),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	for _, c := range chans {
		t := c.Type()
		if _, dup := d.channels[t]; dup {
			return nil, fmt.Errorf("channel %s registered twice", t)
		}
		d.channels[t] = c
		d.order = append(d.order, t)
	}
	return d, nil
}

// Channels returns the registered channel types in registration order.
func (d *Dispatcher) Channels() []model.ChannelType {
	return append([]model.ChannelType(nil), d.order...)
}

// Init performs each channel's one-time setup concurrently and attaches
// routes to mux for channels that serve any. Errors are logged. Calling
// Init more than once is not supported.
func (d *Dispatcher) Init(ctx context.Context, mux *http.ServeMux) {
	var wg sync.WaitGroup
	for _, t := range d.order {
		c := d.channels[t]
		if a, ok := c.(Attacher); ok && mux != nil {
			a.Attach(mux)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer d.recoverChannel(t, "init")
			if err := c.Init(ctx); err != nil {
				d.logger.Error("dispatch: channel init failed", "channel", string(t), "err", err)
			}
		}()
	}
	wg.Wait()
	d.logger.Info("dispatch: channels initialized", "count", len(d.order))
}

// Emit delivers env on every channel and returns once all have finished.
// Cancelling ctx does not cancel deliveries already started; each channel
// bounds its own send with a timeout.
func (d *Dispatcher) Emit(ctx context.Context, env model.Envelope) {
	if env.InstanceName == "" || env.Event == "" {
		d.logger.Warn("dispatch: dropping envelope without instance or event",
			"instance", env.InstanceName, "event", env.Event)
		return
	}
	metrics.EmitsTotal.Inc()

	ctx = context.WithoutCancel(ctx)
	id := idgen.DeliveryID()
	d.logger.Debug("dispatch: emit", "delivery_id", id, "instance", env.InstanceName, "event", env.Event)

	var wg sync.WaitGroup
	for _, t := range d.order {
		c := d.channels[t]
		own := env.Clone()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer d.recoverChannel(t, id)
			c.Deliver(ctx, own)
		}()
	}
	wg.Wait()
}

// EmitAsync runs Emit in the background. Close waits for in-flight calls.
func (d *Dispatcher) EmitAsync(ctx context.Context, env model.Envelope) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.Emit(ctx, env)
	}()
}

func (d *Dispatcher) recoverChannel(t model.ChannelType, deliveryID string) {
	if r := recover(); r != nil {
		metrics.PanicsRecovered.WithLabelValues(string(t)).Inc()
		d.logger.Error("dispatch: channel panicked",
			"channel", string(t), "delivery_id", deliveryID, "panic", r, "stack", string(debug.Stack()))
	}
}

// SetInstanceConfig validates every config in b and, only if all are valid,
// saves each through its channel. Members for unregistered channels are
// ignored. The saved records are returned keyed by channel.
func (d *Dispatcher) SetInstanceConfig(ctx context.Context, instanceName string, b model.Bundle) (map[model.ChannelType]*model.ChannelRecord, error) {
	entries := b.Entries()

	var ve model.ValidationError
	if instanceName == "" {
		ve.Errors = append(ve.Errors, model.FieldError{Field: "instanceName", Message: "is required"})
	}
	for _, t := range d.order {
		cfg, ok := entries[t]
		if !ok {
			continue
		}
		if err := cfg.Validate(t); err != nil {
			var cve *model.ValidationError
			if !errors.As(err, &cve) {
				return nil, err
			}
			for _, fe := range cve.Errors {
				fe.Field = string(t) + "." + fe.Field
				ve.Errors = append(ve.Errors, fe)
			}
		}
	}
	if ve.HasErrors() {
		return nil, &ve
	}

	saved := make(map[model.ChannelType]*model.ChannelRecord, len(entries))
	for _, t := range d.order {
		cfg, ok := entries[t]
		if !ok {
			continue
		}
		rec, err := d.channels[t].Set(ctx, instanceName, cfg)
		if err != nil {
			return saved, err
		}
		saved[t] = rec
	}
	return saved, nil
}

// SetChannelConfig saves one channel's config for instanceName.
func (d *Dispatcher) SetChannelConfig(ctx context.Context, instanceName string, t model.ChannelType, cfg model.ChannelConfig) (*model.ChannelRecord, error) {
	c, ok := d.channels[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, t)
	}
	return c.Set(ctx, instanceName, cfg)
}

// GetInstanceConfig returns the persisted config of one channel.
func (d *Dispatcher) GetInstanceConfig(ctx context.Context, instanceName string, t model.ChannelType) (*model.ChannelRecord, error) {
	c, ok := d.channels[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, t)
	}
	return c.Get(ctx, instanceName)
}

// Release drops every channel's transient handles for instanceName.
func (d *Dispatcher) Release(instanceName string) {
	for _, t := range d.order {
		d.channels[t].Release(instanceName)
	}
	d.logger.Info("dispatch: released instance", "instance", instanceName)
}

// Close waits for in-flight EmitAsync calls, then closes every channel.
func (d *Dispatcher) Close() error {
	d.wg.Wait()
	var errs []error
	for _, t := range d.order {
		if err := d.channels[t].Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", t, err))
		}
	}
	return errors.Join(errs...)
}
