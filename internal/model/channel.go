package model

import (
	"fmt"
	"strings"
)

// ChannelType tags one outbound delivery mechanism.
type ChannelType string

const (
	ChannelWebsocket ChannelType = "websocket" // in-process socket broadcast
	ChannelNATS      ChannelType = "nats"      // message queue publish
	ChannelWebhook   ChannelType = "webhook"   // HTTP POST
	ChannelPusher    ChannelType = "pusher"    // hosted pub/sub publish
	ChannelSQS       ChannelType = "sqs"       // generic outbound notifier (AWS SQS)
)

// AllChannels lists every channel type in a stable order.
var AllChannels = []ChannelType{
	ChannelWebsocket,
	ChannelNATS,
	ChannelWebhook,
	ChannelPusher,
	ChannelSQS,
}

// String returns the string representation of the channel type.
func (c ChannelType) String() string {
	return string(c)
}

// IsValid reports whether c is one of the known channel types.
func (c ChannelType) IsValid() bool {
	switch c {
	case ChannelWebsocket, ChannelNATS, ChannelWebhook, ChannelPusher, ChannelSQS:
		return true
	}
	return false
}

// ParseChannelType parses a channel tag case-insensitively.
func ParseChannelType(s string) (ChannelType, error) {
	c := ChannelType(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("unknown channel %q", s)
	}
	return c, nil
}
