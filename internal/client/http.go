package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/presence"
)

// HTTPClient implements Client against the switchboard HTTP/JSON API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client targeting baseURL (e.g.
// "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) Close() error { return nil }

// --- Channel config ---

func (c *HTTPClient) SetChannel(ctx context.Context, channel model.ChannelType, instanceName string, cfg model.ChannelConfig) (*model.ChannelRecord, error) {
	body := map[string]any{
		"instanceName":  instanceName,
		string(channel): cfg,
	}
	var rec model.ChannelRecord
	if err := c.doJSON(ctx, http.MethodPost, "/v1/"+url.PathEscape(string(channel))+"/set", body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *HTTPClient) FindChannel(ctx context.Context, channel model.ChannelType, instanceName string) (*model.ChannelRecord, error) {
	q := url.Values{}
	q.Set("instanceName", instanceName)
	var rec model.ChannelRecord
	if err := c.doJSON(ctx, http.MethodGet, "/v1/"+url.PathEscape(string(channel))+"/find?"+q.Encode(), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *HTTPClient) SetSettings(ctx context.Context, instanceName string, b model.Bundle) (map[model.ChannelType]*model.ChannelRecord, error) {
	var saved map[model.ChannelType]*model.ChannelRecord
	if err := c.doJSON(ctx, http.MethodPost, "/v1/instances/"+url.PathEscape(instanceName)+"/settings", b, &saved); err != nil {
		return nil, err
	}
	return saved, nil
}

// --- Events ---

func (c *HTTPClient) Emit(ctx context.Context, env model.Envelope) (*EmitResponse, error) {
	var resp EmitResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/events/emit", env, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Instances ---

func (c *HTTPClient) ReportPresence(ctx context.Context, instanceName string, state presence.State) error {
	body := map[string]string{"state": string(state)}
	return c.doJSON(ctx, http.MethodPost, "/v1/instances/"+url.PathEscape(instanceName)+"/presence", body, nil)
}

func (c *HTTPClient) ListInstances(ctx context.Context, staleThreshold time.Duration) ([]presence.Entry, error) {
	path := "/v1/instances"
	if staleThreshold > 0 {
		path += "?stale_threshold_secs=" + strconv.Itoa(int(staleThreshold.Seconds()))
	}
	var resp struct {
		Instances []presence.Entry `json:"instances"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Instances, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

// APIError is a non-2xx answer from the server. Fields is set for
// validation failures.
type APIError struct {
	StatusCode int
	Message    string
	Fields     []model.FieldError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// doJSON sends in (if any) as JSON and decodes a successful reply into out
// (if any).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	req, err := c.newRequest(ctx, method, path, in)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxResponseBytes)
	if resp.StatusCode >= 400 {
		return readAPIError(resp.StatusCode, body)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, body)
		return nil
	}
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, in any) (*http.Request, error) {
	var payload io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "switchboard-cli")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// readAPIError prefers the server's {"error", "fields"} body and falls back
// to the raw text.
func readAPIError(status int, body io.Reader) error {
	raw, _ := io.ReadAll(body)
	var payload struct {
		Error  string             `json:"error"`
		Fields []model.FieldError `json:"fields"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return &APIError{StatusCode: status, Message: payload.Error, Fields: payload.Fields}
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Message: msg}
}
