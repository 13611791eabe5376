package model

import (
	"encoding/json"
	"slices"
)

// Envelope is the single event record passed through the dispatcher.
// It is treated as immutable once built: every channel receives its own
// copy from Clone.
type Envelope struct {
	InstanceName string          `json:"instanceName"`
	Origin       string          `json:"origin"`
	Event        string          `json:"event"`
	Data         json.RawMessage `json:"data,omitempty"`
	ServerURL    string          `json:"serverUrl"`
	DateTime     string          `json:"dateTime"`
	Sender       string          `json:"sender"`
	APIKey       string          `json:"apiKey,omitempty"`
	Local        bool            `json:"local,omitempty"`

	// Integration, when non-nil, restricts delivery to the listed channels.
	Integration []ChannelType `json:"integration,omitempty"`
}

// Clone returns a deep copy of the envelope.
func (e Envelope) Clone() Envelope {
	c := e
	if e.Data != nil {
		c.Data = slices.Clone(e.Data)
	}
	if e.Integration != nil {
		c.Integration = slices.Clone(e.Integration)
	}
	return c
}

// Allows reports whether the integration list permits the given channel.
// A nil list permits every channel.
func (e Envelope) Allows(c ChannelType) bool {
	if e.Integration == nil {
		return true
	}
	return slices.Contains(e.Integration, c)
}

// Validate checks the fields every emitter must supply.
func (e Envelope) Validate() error {
	var ve ValidationError
	if e.InstanceName == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "instanceName", Message: "is required"})
	}
	if e.Event == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "event", Message: "is required"})
	}
	for _, c := range e.Integration {
		if !c.IsValid() {
			ve.Errors = append(ve.Errors, FieldError{Field: "integration", Message: "unknown channel " + string(c)})
		}
	}
	if len(e.Data) > 0 && !json.Valid(e.Data) {
		ve.Errors = append(ve.Errors, FieldError{Field: "data", Message: "must be valid JSON"})
	}
	if ve.HasErrors() {
		return &ve
	}
	return nil
}
