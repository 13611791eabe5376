package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"

	pusher "github.com/pusher/pusher-http-go/v5"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/store"
)

// MaxPusherPayload is the largest event body Pusher accepts.
const MaxPusherPayload = 10 * 1024

// pusherTrigger is the subset of *pusher.Client used for delivery.
type pusherTrigger interface {
	Trigger(channel string, eventName string, data interface{}) error
}

type pusherEntry struct {
	fingerprint string
	client      pusherTrigger
}

// Pusher triggers events on a Pusher channel named after the instance,
// using credentials stored in each instance's config.
type Pusher struct {
	base
	httpClient *http.Client

	// newClient is replaced in tests.
	newClient func(settings *model.PusherSettings, hc *http.Client) pusherTrigger

	mu      sync.Mutex
	clients map[string]pusherEntry
}

var _ Channel = (*Pusher)(nil)

func NewPusher(s store.ConfigStore, opts Options) *Pusher {
	p := &Pusher{
		base:    newBase(model.ChannelPusher, s, opts, true),
		clients: make(map[string]pusherEntry),
	}
	p.httpClient = &http.Client{Timeout: p.timeout}
	p.newClient = newPusherClient
	return p
}

func newPusherClient(settings *model.PusherSettings, hc *http.Client) pusherTrigger {
	return &pusher.Client{
		AppID:      settings.AppID,
		Key:        settings.Key,
		Secret:     settings.Secret,
		Cluster:    settings.Cluster,
		Secure:     settings.UseTLS,
		HTTPClient: hc,
	}
}

func (p *Pusher) Init(context.Context) error { return nil }

func (p *Pusher) Deliver(ctx context.Context, env model.Envelope) {
	p.deliver(ctx, env, p.send)
}

func (p *Pusher) Set(ctx context.Context, instanceName string, cfg model.ChannelConfig) (*model.ChannelRecord, error) {
	rec, err := p.set(ctx, instanceName, cfg)
	if err != nil {
		return nil, err
	}
	// Credentials may have changed; rebuild on next send.
	p.Release(instanceName)
	return rec, nil
}

func (p *Pusher) Get(ctx context.Context, instanceName string) (*model.ChannelRecord, error) {
	return p.get(ctx, instanceName)
}

// Release drops the cached client for instanceName.
func (p *Pusher) Release(instanceName string) {
	p.mu.Lock()
	delete(p.clients, instanceName)
	p.mu.Unlock()
}

func (p *Pusher) Close() error {
	p.mu.Lock()
	p.clients = make(map[string]pusherEntry)
	p.mu.Unlock()
	p.httpClient.CloseIdleConnections()
	return nil
}

// client returns the cached client for the instance, rebuilding it when
// the stored credentials differ from the cached ones.
func (p *Pusher) client(instanceName string, settings *model.PusherSettings) pusherTrigger {
	fp := pusherFingerprint(settings)

	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.clients[instanceName]; ok && e.fingerprint == fp {
		return e.client
	}
	c := p.newClient(settings, p.httpClient)
	p.clients[instanceName] = pusherEntry{fingerprint: fp, client: c}
	return c
}

func (p *Pusher) send(ctx context.Context, rec *model.ChannelRecord, env model.Envelope) error {
	settings := rec.Pusher
	if settings == nil || settings.AppID == "" || settings.Key == "" || settings.Secret == "" {
		return fmt.Errorf("credentials not configured")
	}

	data, err := json.Marshal(newClientMessage(env))
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	if len(data) > MaxPusherPayload {
		return fmt.Errorf("payload is %d bytes, limit is %d", len(data), MaxPusherPayload)
	}

	c := p.client(env.InstanceName, settings)

	// The pusher client has no context support; run the trigger so that the
	// send timeout still bounds the delivery.
	errc := make(chan error, 1)
	go func() {
		errc <- c.Trigger(PusherChannelName(env.InstanceName), model.NormalizeEvent(env.Event), string(data))
	}()
	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("triggering: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("triggering: %w", ctx.Err())
	}
}

var pusherInvalidChars = regexp.MustCompile(`[^A-Za-z0-9_\-=@,.;]`)

// PusherChannelName maps an instance name onto the characters Pusher
// allows in channel names.
func PusherChannelName(instanceName string) string {
	name := pusherInvalidChars.ReplaceAllString(instanceName, "-")
	if len(name) > 164 {
		name = name[:164]
	}
	return name
}

func pusherFingerprint(s *model.PusherSettings) string {
	return strings.Join([]string{s.AppID, s.Key, s.Secret, s.Cluster, fmt.Sprint(s.UseTLS)}, "\x00")
}
