package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/store"
)

// Webhook POSTs events to a per-instance URL.
type Webhook struct {
	base
	client *http.Client
}

var _ Channel = (*Webhook)(nil)

// NewWebhook creates the webhook channel. A nil client uses a dedicated
// http.Client; each request is still bounded by the channel timeout.
func NewWebhook(s store.ConfigStore, client *http.Client, opts Options) *Webhook {
	if client == nil {
		client = &http.Client{}
	}
	return &Webhook{
		base:   newBase(model.ChannelWebhook, s, opts, true),
		client: client,
	}
}

// webhookBody is the wire format of a webhook delivery.
type webhookBody struct {
	Event       string          `json:"event"`
	Instance    string          `json:"instance"`
	Data        json.RawMessage `json:"data,omitempty"`
	Destination string          `json:"destination"`
	DateTime    string          `json:"date_time"`
	Sender      string          `json:"sender"`
	ServerURL   string          `json:"server_url"`
	APIKey      string          `json:"apikey,omitempty"`
}

func (w *Webhook) Init(context.Context) error { return nil }

func (w *Webhook) Deliver(ctx context.Context, env model.Envelope) {
	w.deliver(ctx, env, w.send)
}

func (w *Webhook) Set(ctx context.Context, instanceName string, cfg model.ChannelConfig) (*model.ChannelRecord, error) {
	return w.set(ctx, instanceName, cfg)
}

func (w *Webhook) Get(ctx context.Context, instanceName string) (*model.ChannelRecord, error) {
	return w.get(ctx, instanceName)
}

func (w *Webhook) Release(string) {}

func (w *Webhook) Close() error {
	w.client.CloseIdleConnections()
	return nil
}

func (w *Webhook) send(ctx context.Context, rec *model.ChannelRecord, env model.Envelope) error {
	settings := rec.Webhook
	if settings == nil || settings.URL == "" {
		return fmt.Errorf("no url configured")
	}

	target := settings.URL
	if settings.ByEvents {
		target = strings.TrimRight(target, "/") + "/" + model.EventPath(env.Event)
	}

	data := env.Data
	if !settings.Base64 {
		data = stripBase64(data)
	}

	body, err := json.Marshal(webhookBody{
		Event:       model.NormalizeEvent(env.Event),
		Instance:    env.InstanceName,
		Data:        data,
		Destination: target,
		DateTime:    env.DateTime,
		Sender:      env.Sender,
		ServerURL:   env.ServerURL,
		APIKey:      env.APIKey,
	})
	if err != nil {
		return fmt.Errorf("marshaling body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range settings.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, target)
	}
	return nil
}

// stripBase64 removes base64-encoded media from an event payload: the
// top-level "base64" field and the one nested under "message". Payloads that
// are not JSON objects are returned unchanged. The input is never modified.
func stripBase64(data json.RawMessage) json.RawMessage {
	var obj map[string]json.RawMessage
	if len(data) == 0 || json.Unmarshal(data, &obj) != nil {
		return data
	}

	changed := false
	if _, ok := obj["base64"]; ok {
		delete(obj, "base64")
		changed = true
	}
	if raw, ok := obj["message"]; ok {
		var msg map[string]json.RawMessage
		if json.Unmarshal(raw, &msg) == nil {
			if _, ok := msg["base64"]; ok {
				delete(msg, "base64")
				if out, err := json.Marshal(msg); err == nil {
					obj["message"] = out
					changed = true
				}
			}
		}
	}
	if !changed {
		return data
	}
	out, err := json.Marshal(obj)
	if err != nil {
		return data
	}
	return out
}
