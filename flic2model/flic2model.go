// Package flic2model holds the value types shared across the pairing,
// session, events, store, and client packages. Keeping them in one leaf
// package avoids the import cycles that would otherwise appear between
// pairing (produces credentials) and store (persists them).
package flic2model

import "fmt"

// ButtonEventType is the logical event Kind decoded from a notification record.
type ButtonEventType int

const (
	EventUp ButtonEventType = iota
	EventDown
	EventClick
	EventSingleClick
	EventDoubleClick
	EventHold
)

func (t ButtonEventType) String() string {
	switch t {
	case EventUp:
		return "UP"
	case EventDown:
		return "DOWN"
	case EventClick:
		return "CLICK"
	case EventSingleClick:
		return "SINGLE_CLICK"
	case EventDoubleClick:
		return "DOUBLE_CLICK"
	case EventHold:
		return "HOLD"
	default:
		return "UNKNOWN"
	}
}

// ButtonEvent is an immutable decoded record from the event stream.
type ButtonEvent struct {
	Type         ButtonEventType
	WasQueued    bool
	AgeSeconds   float64
	PressCounter uint32
}

// ConnectionState tracks the orchestrator's lifecycle. The zero value is
// Disconnected.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Pairing
	QuickVerifying
	Ready
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	case Pairing:
		return "PAIRING"
	case QuickVerifying:
		return "QUICK_VERIFYING"
	case Ready:
		return "READY"
	default:
		return "UNKNOWN"
	}
}

// DisconnectReason decodes the single reason byte carried by a
// DISCONNECTED_LINK notification.
type DisconnectReason int

const (
	DisconnectPingTimeout DisconnectReason = iota
	DisconnectInvalidSignature
	DisconnectNewConnection
	DisconnectByUser
)

func (r DisconnectReason) String() string {
	switch r {
	case DisconnectPingTimeout:
		return "PING_TIMEOUT"
	case DisconnectInvalidSignature:
		return "INVALID_SIGNATURE"
	case DisconnectNewConnection:
		return "NEW_CONNECTION"
	case DisconnectByUser:
		return "BY_USER"
	default:
		return "UNKNOWN"
	}
}

// ButtonInfo is the decoded FullVerifyResponse2 / GetButtonInfo payload.
type ButtonInfo struct {
	Address         string
	UUID            string
	Name            string
	SerialNumber    string
	FirmwareVersion uint32
	BatteryLevel    uint8
}

func (b ButtonInfo) String() string {
	return fmt.Sprintf("Flic2Button(%s, %s)", b.Name, b.Address)
}

// PairingCredentials are the durable outputs of a Full Verify handshake.
// PairingID/PairingKey must never be logged or printed in cleartext; use
// Redacted() for diagnostics.
type PairingCredentials struct {
	Address         string
	PairingID       [4]byte
	PairingKey      [16]byte
	ButtonUUID      string
	Name            string
	SerialNumber    string
	FirmwareVersion uint32
	LastBootID      *uint32
	LastEventCount  *uint32
}

// Redacted returns a copy with PairingID/PairingKey zeroed, safe to log.
func (c PairingCredentials) Redacted() PairingCredentials {
	r := c
	r.PairingID = [4]byte{}
	r.PairingKey = [16]byte{}
	return r
}

func (c PairingCredentials) String() string {
	return fmt.Sprintf("PairingCredentials(address=%s, name=%s, pairing_id=<redacted>, pairing_key=<redacted>)", c.Address, c.Name)
}

// SessionState is the orchestrator's live session bookkeeping. It is owned
// exclusively by the session engine's single task.
type SessionState struct {
	ConnID      uint8
	SessionKey  [16]byte
	TxCounter   uint64
	RxCounter   uint64
	IsPaired    bool
	BootID      uint32
	EventCount  uint32
}

// Reset clears all fields, including zeroing SessionKey.
func (s *SessionState) Reset() {
	s.ConnID = 0
	for i := range s.SessionKey {
		s.SessionKey[i] = 0
	}
	s.TxCounter = 0
	s.RxCounter = 0
	s.IsPaired = false
	s.BootID = 0
	s.EventCount = 0
}
