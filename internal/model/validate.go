package model

import (
	"net/url"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Channel ChannelType
	Errors  []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	prefix := "validation failed: "
	if e.Channel != "" {
		prefix = string(e.Channel) + " validation failed: "
	}
	return prefix + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate checks that the fields required for the requested enabled state
// are present. It returns a *ValidationError, or nil if the config is valid.
func (c ChannelConfig) Validate(channel ChannelType) error {
	ve := ValidationError{Channel: channel}

	if !channel.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{Field: "channel", Message: "unknown channel " + string(channel)})
		return &ve
	}

	for _, e := range c.Events {
		if strings.TrimSpace(e) == "" {
			ve.Errors = append(ve.Errors, FieldError{Field: "events", Message: "must not contain blank names"})
			break
		}
	}

	if c.Enabled {
		switch channel {
		case ChannelWebhook:
			validateWebhook(c.Webhook, &ve)
		case ChannelPusher:
			validatePusher(c.Pusher, &ve)
		}
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

func validateWebhook(w *WebhookSettings, ve *ValidationError) {
	if w == nil || strings.TrimSpace(w.URL) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "url", Message: "is required when enabled"})
		return
	}
	u, err := url.Parse(w.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		ve.Errors = append(ve.Errors, FieldError{Field: "url", Message: "must be an absolute http(s) URL"})
	}
	for k := range w.Headers {
		if strings.TrimSpace(k) == "" {
			ve.Errors = append(ve.Errors, FieldError{Field: "headers", Message: "header names must not be blank"})
			break
		}
	}
}

func validatePusher(p *PusherSettings, ve *ValidationError) {
	if p == nil {
		p = &PusherSettings{}
	}
	if strings.TrimSpace(p.AppID) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "appId", Message: "is required when enabled"})
	}
	if strings.TrimSpace(p.Key) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "key", Message: "is required when enabled"})
	}
	if strings.TrimSpace(p.Secret) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "secret", Message: "is required when enabled"})
	}
}
