// Package session drives a connection once a session key is installed:
// signed requests, event dispatch, pings, and disconnect/battery
// bookkeeping. Every post-session signed request uses the
// direction-and-counter MAC variant, including ping — the protocol's own
// reference client signs pings with the plain (counter-less) variant, but
// nothing else it sends post-session does, and a MAC that never binds a
// counter is a replay hole; the engine here closes it uniformly.
package session

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cvsouth/flic2-go/events"
	"github.com/cvsouth/flic2-go/flic2err"
	"github.com/cvsouth/flic2-go/flic2model"
	"github.com/cvsouth/flic2-go/packet"
)

const (
	dirTX uint8 = 1
	dirRX uint8 = 0

	defaultPingTimeout = 2 * time.Second
	defaultInitTimeout = 10 * time.Second
)

// Transport is the minimum a BLE link must provide for the session engine
// to drive it: a write-without-response send and nothing else — responses
// arrive out of band through Engine.Deliver.
type Transport interface {
	Send(ctx context.Context, data []byte) error
}

// Callbacks lets the orchestrator observe session-level events.
type Callbacks struct {
	OnButtonEvent    func([]flic2model.ButtonEvent)
	OnBatteryLevel   func(uint8)
	OnDisconnect     func(flic2model.DisconnectReason)
}

// Engine owns one authenticated connection's signed send/receive state. It
// is driven by a single goroutine: Deliver posts inbound notifications,
// and every exported method other than Deliver must be called from that
// same goroutine (or externally serialized by the caller).
type Engine struct {
	transport Transport
	state     *flic2model.SessionState

	encoder *packet.Encoder
	decoder *packet.Decoder

	callbacks Callbacks

	pending chan []byte
}

// New builds an Engine bound to transport, with the given connection id
// and session key already installed (as produced by a completed pairing
// handshake).
func New(transport Transport, connID uint8, sessionKey [16]byte, cb Callbacks) *Engine {
	enc := packet.NewEncoder()
	dec := packet.NewDecoder()
	enc.SetSessionKey(sessionKey)
	dec.SetSessionKey(sessionKey)

	state := &flic2model.SessionState{ConnID: connID, SessionKey: sessionKey}

	return &Engine{
		transport: transport,
		state:     state,
		encoder:   enc,
		decoder:   dec,
		callbacks: cb,
		pending:   make(chan []byte, 8),
	}
}

// Deliver posts one inbound notification for later processing by
// WaitForResponse or the caller's dispatch loop. It must never block the
// BLE notification callback it is typically invoked from.
func (e *Engine) Deliver(data []byte) {
	select {
	case e.pending <- data:
	default:
		// drop oldest rather than block the notification source
		select {
		case <-e.pending:
		default:
		}
		e.pending <- data
	}
}

// WaitForResponse blocks until the next delivered notification or ctx
// expiry.
func (e *Engine) WaitForResponse(ctx context.Context) ([]byte, error) {
	select {
	case data := <-e.pending:
		return data, nil
	case <-ctx.Done():
		return nil, flic2err.Timeout("timed out waiting for response")
	}
}

func (e *Engine) sendSigned(ctx context.Context, opcode packet.Opcode, payload []byte) error {
	wire, err := e.encoder.EncodeSigned(opcode, payload, e.state.ConnID, dirTX, e.state.TxCounter)
	if err != nil {
		return flic2err.Protocol(err, "encode signed request")
	}
	e.state.TxCounter++
	if err := e.transport.Send(ctx, wire); err != nil {
		return flic2err.Connection(err, "send signed request")
	}
	return nil
}

// Ping sends a signed, empty-payload ping and waits up to 2 seconds for a
// reply. It reports false (not an error) on timeout, matching the
// best-effort nature of a liveness probe.
func (e *Engine) Ping(ctx context.Context) (bool, error) {
	if err := e.sendSigned(ctx, packet.OpPingRequest, nil); err != nil {
		return false, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if _, err := e.WaitForResponse(waitCtx); err != nil {
		return false, nil
	}
	return true, nil
}

// initButtonEventsBitfield packs auto_disconnect_time | max_queued_packets
// | max_queued_packets_age | enable_hid into the 5-byte subscription
// bitfield.
func initButtonEventsBitfield(autoDisconnectTime uint32, maxQueuedPackets uint32, maxQueuedPacketsAge uint32, enableHID bool) uint64 {
	var v uint64
	v |= uint64(autoDisconnectTime) & 0x1FF // 9 bits
	v |= (uint64(maxQueuedPackets) & 0x1F) << 9
	v |= (uint64(maxQueuedPacketsAge) & 0xFFFFF) << 14
	if enableHID {
		v |= 1 << 34
	}
	return v
}

// InitButtonEvents subscribes to the button's event stream: it sends the
// fixed init_button_events payload (event_count=0, boot_id=0, a packed
// subscription bitfield) and waits for the button's acknowledgment.
func (e *Engine) InitButtonEvents(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultInitTimeout
	}

	bitfield := initButtonEventsBitfield(511, 31, 0xFFFFF, false)

	payload := make([]byte, 4+4+5)
	binary.LittleEndian.PutUint32(payload[0:4], 0) // event_count
	binary.LittleEndian.PutUint32(payload[4:8], 0) // boot_id
	payload[8] = byte(bitfield)
	payload[9] = byte(bitfield >> 8)
	payload[10] = byte(bitfield >> 16)
	payload[11] = byte(bitfield >> 24)
	payload[12] = byte(bitfield >> 32)

	if err := e.sendSigned(ctx, packet.OpInitButtonEvents, payload); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := e.WaitForResponse(waitCtx)
	if err != nil {
		return err
	}

	decoded, err := e.decoder.VerifySigned(data, dirRX, e.state.RxCounter)
	if err != nil {
		return flic2err.InvalidSignature(err, "init button events response failed verification")
	}
	e.state.RxCounter++

	switch decoded.Opcode {
	case packet.OpDisconnectedLink:
		reason := flic2model.DisconnectPingTimeout
		if len(decoded.Payload) > 0 {
			reason = mapDisconnectReason(decoded.Payload[0])
		}
		if e.callbacks.OnDisconnect != nil {
			e.callbacks.OnDisconnect(reason)
		}
		return flic2err.Connection(nil, "link disconnected during init: %s", reason)

	case packet.OpInitButtonEventsResponse, packet.OpInitButtonEventsNoBoot:
		resp, err := packet.DecodeInitButtonEventsResponse(decoded.Payload)
		if err != nil {
			return flic2err.Protocol(err, "decode init button events response")
		}
		e.state.BootID = resp.BootID
		e.state.EventCount = resp.EventCount
		e.state.IsPaired = true
		if resp.BatteryLevel > 0 && e.callbacks.OnBatteryLevel != nil {
			e.callbacks.OnBatteryLevel(resp.BatteryLevel)
		}
		return nil

	default:
		return flic2err.Protocol(nil, "unexpected opcode 0x%02x from init button events", byte(decoded.Opcode))
	}
}

// GetButtonInfo re-requests the button-info payload post-pairing (name,
// firmware version, battery level, serial number) over the same session,
// reusing FullVerifyResponse2's payload layout since the button emits the
// identical fields on this opcode.
func (e *Engine) GetButtonInfo(ctx context.Context) (flic2model.ButtonInfo, error) {
	if err := e.sendSigned(ctx, packet.OpGetInfoRequest, nil); err != nil {
		return flic2model.ButtonInfo{}, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	data, err := e.WaitForResponse(waitCtx)
	if err != nil {
		return flic2model.ButtonInfo{}, err
	}

	decoded, err := e.decoder.VerifySigned(data, dirRX, e.state.RxCounter)
	if err != nil {
		return flic2model.ButtonInfo{}, flic2err.InvalidSignature(err, "get button info response failed verification")
	}
	e.state.RxCounter++

	if decoded.Opcode != packet.OpGetInfoResponse {
		return flic2model.ButtonInfo{}, flic2err.Protocol(nil, "unexpected opcode 0x%02x from get button info", byte(decoded.Opcode))
	}

	resp, err := packet.DecodeFullVerifyResponse2(decoded.Payload)
	if err != nil {
		return flic2model.ButtonInfo{}, flic2err.Protocol(err, "decode button info response")
	}

	info := flic2model.ButtonInfo{
		UUID:            resp.UUID,
		Name:            resp.Name,
		FirmwareVersion: resp.FirmwareVersion,
		BatteryLevel:    resp.BatteryLevel,
		SerialNumber:    resp.SerialNumber,
	}
	if info.BatteryLevel > 0 && e.callbacks.OnBatteryLevel != nil {
		e.callbacks.OnBatteryLevel(info.BatteryLevel)
	}
	return info, nil
}

// HandleNotification verifies and dispatches one post-session signed
// notification: button events are decoded, forwarded to
// Callbacks.OnButtonEvent, and acknowledged by event count so the button
// can drop the record from its on-device queue; disconnect notices update
// RxCounter bookkeeping and invoke Callbacks.OnDisconnect; everything else
// is forwarded as the raw decoded packet for callers (e.g. a pending
// get-info round trip) to consume via WaitForResponse instead.
func (e *Engine) HandleNotification(ctx context.Context, data []byte) error {
	decoded, err := e.decoder.VerifySigned(data, dirRX, e.state.RxCounter)
	if err != nil {
		return flic2err.InvalidSignature(err, "notification failed MAC verification")
	}
	e.state.RxCounter++

	switch decoded.Opcode {
	case packet.OpButtonEventSingle, packet.OpButtonEventNotification:
		evs, err := events.Decode(decoded.Payload)
		if err != nil {
			return flic2err.Protocol(err, "decode button event payload")
		}
		if e.callbacks.OnButtonEvent != nil {
			e.callbacks.OnButtonEvent(evs)
		}
		if len(decoded.Payload) >= 4 {
			ack := make([]byte, 4)
			copy(ack, decoded.Payload[:4])
			if err := e.sendSigned(ctx, packet.OpAckButtonEvents, ack); err != nil {
				return flic2err.Connection(err, "ack button event count")
			}
		}
		return nil

	case packet.OpDisconnectedLink:
		reason := flic2model.DisconnectPingTimeout
		if len(decoded.Payload) > 0 {
			reason = mapDisconnectReason(decoded.Payload[0])
		}
		if e.callbacks.OnDisconnect != nil {
			e.callbacks.OnDisconnect(reason)
		}
		return nil

	case packet.OpPingResponse:
		return nil

	default:
		return fmt.Errorf("unhandled post-session opcode 0x%02x", byte(decoded.Opcode))
	}
}

// State exposes the engine's live bookkeeping for diagnostics and the
// credential store's update_event_tracking.
func (e *Engine) State() flic2model.SessionState { return *e.state }

func mapDisconnectReason(b byte) flic2model.DisconnectReason {
	switch packet.DisconnectReasonByte(b) {
	case packet.DisconnectByteInvalidSig:
		return flic2model.DisconnectInvalidSignature
	case packet.DisconnectByteNewConnection:
		return flic2model.DisconnectNewConnection
	case packet.DisconnectByteByUser:
		return flic2model.DisconnectByUser
	default:
		return flic2model.DisconnectPingTimeout
	}
}
