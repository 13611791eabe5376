package model

import (
	"encoding/json"
	"fmt"
)

// Payload is implemented by the typed decodings of Envelope.Data.
type Payload interface {
	payload()
}

// ConnectionUpdate is the data of a connection.update event.
type ConnectionUpdate struct {
	Instance     string `json:"instance"`
	State        string `json:"state"`
	StatusReason int    `json:"statusReason,omitempty"`
}

// QRCodeUpdate is the data of a qrcode.updated event.
type QRCodeUpdate struct {
	QRCode struct {
		Instance    string `json:"instance"`
		PairingCode string `json:"pairingCode,omitempty"`
		Code        string `json:"code"`
		Base64      string `json:"base64,omitempty"`
	} `json:"qrcode"`
}

// MessageUpsert is the data of a messages.upsert event. Message content is
// kept raw because its shape depends on the message type.
type MessageUpsert struct {
	Key struct {
		RemoteJID string `json:"remoteJid"`
		FromMe    bool   `json:"fromMe"`
		ID        string `json:"id"`
	} `json:"key"`
	PushName         string          `json:"pushName,omitempty"`
	MessageType      string          `json:"messageType,omitempty"`
	MessageTimestamp int64           `json:"messageTimestamp,omitempty"`
	Message          json.RawMessage `json:"message,omitempty"`
}

// RawPayload carries the data of events without a typed decoding.
type RawPayload json.RawMessage

func (ConnectionUpdate) payload() {}
func (QRCodeUpdate) payload()     {}
func (MessageUpsert) payload()    {}
func (RawPayload) payload()       {}

// Payload decodes Data according to the envelope's event. Unknown events
// yield a RawPayload so new event types pass through untouched.
func (e Envelope) Payload() (Payload, error) {
	var target Payload
	switch NormalizeEvent(e.Event) {
	case EventConnectionUpdate:
		var p ConnectionUpdate
		if err := decodeData(e.Data, &p); err != nil {
			return nil, err
		}
		target = p
	case EventQRCodeUpdated:
		var p QRCodeUpdate
		if err := decodeData(e.Data, &p); err != nil {
			return nil, err
		}
		target = p
	case EventMessagesUpsert:
		var p MessageUpsert
		if err := decodeData(e.Data, &p); err != nil {
			return nil, err
		}
		target = p
	default:
		target = RawPayload(e.Data)
	}
	return target, nil
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding event data: %w", err)
	}
	return nil
}
