// Package idgen generates the short random IDs used to correlate log lines:
// one per emitted envelope and one per attached socket.
package idgen

import (
	nanoid "github.com/matoous/go-nanoid/v2"
)

const (
	deliveryPrefix = "dlv_"
	socketPrefix   = "ws_"

	alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	length   = 12
)

// DeliveryID returns an ID for one Emit call.
func DeliveryID() string { return generate(deliveryPrefix) }

// SocketID returns an ID for one websocket connection.
func SocketID() string { return generate(socketPrefix) }

// generate never fails: nanoid only errors on invalid alphabet or length,
// both of which are constants here.
func generate(prefix string) string {
	id, err := nanoid.Generate(alphabet, length)
	if err != nil {
		panic("idgen: " + err.Error())
	}
	return prefix + id
}
