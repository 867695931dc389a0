// Package transport defines the BLE link contract the client package
// drives and a FakeTransport test double standing in for a real adapter
// (e.g. tinygo-org/bluetooth or a platform-specific GATT binding), the way
// ntor_test.go stands in for a live relay with simulateServer.
package transport

import (
	"context"
	"fmt"
)

// Service and characteristic UUIDs for the Flic 2 BLE GATT profile.
const (
	ServiceUUID                = "00420000-8f59-4420-870d-84f3b617e493"
	WriteCharacteristicUUID     = "00420001-8f59-4420-870d-84f3b617e493"
	NotifyCharacteristicUUID    = "00420002-8f59-4420-870d-84f3b617e493"
)

// Link is the minimum a concrete BLE adapter must implement: a
// write-without-response send, notification delivery, and disconnect.
// It is consumed, not implemented, by this module — real adapters live
// outside the core.
type Link interface {
	Send(ctx context.Context, data []byte) error
	Notifications() <-chan []byte
	Close() error
}

// FakeLink is an in-memory Link for tests: Send appends to Sent, and
// queued replies are delivered through Notifications in order.
type FakeLink struct {
	Sent    [][]byte
	notify  chan []byte
	closed  bool
}

// NewFakeLink returns a ready-to-use FakeLink with the given notification
// buffer depth.
func NewFakeLink(bufferSize int) *FakeLink {
	return &FakeLink{notify: make(chan []byte, bufferSize)}
}

func (f *FakeLink) Send(ctx context.Context, data []byte) error {
	if f.closed {
		return fmt.Errorf("send on closed link")
	}
	f.Sent = append(f.Sent, append([]byte(nil), data...))
	return nil
}

func (f *FakeLink) Notifications() <-chan []byte { return f.notify }

// QueueNotification makes data available on the Notifications channel.
func (f *FakeLink) QueueNotification(data []byte) {
	f.notify <- append([]byte(nil), data...)
}

func (f *FakeLink) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	close(f.notify)
	return nil
}
