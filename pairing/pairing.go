// Package pairing implements the Full Verify and Quick Verify handshake
// state machines that bring a connection from an unauthenticated link to
// an installed session key.
package pairing

import (
	"crypto/rand"
	"fmt"

	"github.com/cvsouth/flic2-go/flic2err"
	"github.com/cvsouth/flic2-go/flic2model"
	"github.com/cvsouth/flic2-go/keyagreement"
	"github.com/cvsouth/flic2-go/packet"
)

// State is a handshake's position in its state machine.
type State int

const (
	StateIdle State = iota
	StateFullVerifyRequest1Sent
	StateFullVerifyRequest2Sent
	StateFullVerifyComplete
	StateQuickVerifyRequestSent
	StateQuickVerifyComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateFullVerifyRequest1Sent:
		return "FULL_VERIFY_REQUEST_1_SENT"
	case StateFullVerifyRequest2Sent:
		return "FULL_VERIFY_REQUEST_2_SENT"
	case StateFullVerifyComplete:
		return "FULL_VERIFY_COMPLETE"
	case StateQuickVerifyRequestSent:
		return "QUICK_VERIFY_REQUEST_SENT"
	case StateQuickVerifyComplete:
		return "QUICK_VERIFY_COMPLETE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Callbacks lets the orchestrator observe handshake progress without the
// state machine depending on the session or client packages.
type Callbacks struct {
	OnSessionKey      func(key [16]byte)
	OnPairingComplete func(flic2model.PairingCredentials, flic2model.ButtonInfo)
	OnError           func(error)
}

func randomBytes8() ([8]byte, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return b, fmt.Errorf("read client random: %w", err)
	}
	return b, nil
}

func randomBytes4() ([4]byte, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return b, fmt.Errorf("read tmp id: %w", err)
	}
	return b, nil
}

// FullVerify drives a from-scratch pairing handshake to a button.
type FullVerify struct {
	state State

	address     [6]byte
	addressType byte

	keyPair      *keyagreement.KeyPair
	clientRandom [8]byte
	tmpID        [4]byte

	connID   uint8
	schedule keyagreement.Schedule

	encoder *packet.Encoder
	decoder *packet.Decoder

	callbacks Callbacks
}

// NewFullVerify starts a Full Verify handshake for the button at address.
// It generates a fresh X25519 keypair and client random and returns the
// first wire packet (FullVerifyRequest1) to send.
func NewFullVerify(address [6]byte, addressType byte, cb Callbacks) (*FullVerify, []byte, error) {
	kp, err := keyagreement.GenerateKeyPair()
	if err != nil {
		return nil, nil, flic2err.Pairing(flic2err.ReasonNone, "generate keypair: %v", err)
	}
	clientRandom, err := randomBytes8()
	if err != nil {
		return nil, nil, flic2err.Pairing(flic2err.ReasonNone, "generate client random: %v", err)
	}
	tmpID, err := randomBytes4()
	if err != nil {
		return nil, nil, flic2err.Pairing(flic2err.ReasonNone, "generate tmp id: %v", err)
	}

	fv := &FullVerify{
		state:        StateFullVerifyRequest1Sent,
		address:      address,
		addressType:  addressType,
		keyPair:      kp,
		clientRandom: clientRandom,
		tmpID:        tmpID,
		encoder:      packet.NewEncoder(),
		decoder:      packet.NewDecoder(),
		callbacks:    cb,
	}

	wire, err := fv.encoder.EncodeFullVerifyRequest1(tmpID)
	if err != nil {
		return nil, nil, err
	}
	return fv, wire, nil
}

// State returns the machine's current state.
func (fv *FullVerify) State() State { return fv.state }

// ConnID returns the connection id the button assigned, valid once a
// response has been processed.
func (fv *FullVerify) ConnID() uint8 { return fv.connID }

// SessionKey returns the derived session key, valid once Request2 has been sent.
func (fv *FullVerify) SessionKey() [16]byte { return fv.schedule.SessionKey }

// IsComplete reports whether the handshake reached FullVerifyComplete.
func (fv *FullVerify) IsComplete() bool { return fv.state == StateFullVerifyComplete }

// IsFailed reports whether the handshake terminated in failure.
func (fv *FullVerify) IsFailed() bool { return fv.state == StateFailed }

// HandlePacket advances the state machine with one inbound packet and
// returns a reply to send, if any. A nil reply with no error and
// IsComplete() still false means "keep waiting".
func (fv *FullVerify) HandlePacket(data []byte) ([]byte, error) {
	decoded, err := fv.decoder.Decode(data, false)
	if err != nil {
		return nil, flic2err.Protocol(err, "decode full verify packet")
	}

	switch fv.state {
	case StateFullVerifyRequest1Sent:
		return fv.handleResponse1(decoded)
	case StateFullVerifyRequest2Sent:
		return fv.handleResponse2(decoded)
	default:
		return nil, flic2err.Protocol(nil, "full verify packet received in state %s", fv.state)
	}
}

func (fv *FullVerify) fail(err error) ([]byte, error) {
	fv.state = StateFailed
	if fv.callbacks.OnError != nil {
		fv.callbacks.OnError(err)
	}
	return nil, err
}

func (fv *FullVerify) handleResponse1(decoded packet.Decoded) ([]byte, error) {
	if decoded.Opcode == packet.OpFullVerifyFailResponse1 {
		reason := packet.FullVerifyFailReason(0)
		if len(decoded.Payload) > 0 {
			reason = packet.FullVerifyFailReason(decoded.Payload[0])
		}
		return fv.fail(flic2err.Pairing(mapFullVerifyFailReason(reason), "full verify request 1 rejected"))
	}

	resp, err := packet.DecodeFullVerifyResponse1(decoded.Payload)
	if err != nil {
		return fv.fail(flic2err.Protocol(err, "decode full verify response 1"))
	}

	if !resp.IsPublicMode {
		return fv.fail(flic2err.Pairing(flic2err.ReasonNotInPairingMode, "button is not in public/pairing mode"))
	}

	sigBits, err := keyagreement.VerifyButtonIdentity(resp.Signature, resp.Address, resp.AddressType, resp.ECDHPubkey)
	if err != nil {
		return fv.fail(flic2err.InvalidSignature(err, "button identity signature did not verify"))
	}

	shared, err := fv.keyPair.SharedSecret(resp.ECDHPubkey)
	if err != nil {
		return fv.fail(flic2err.Pairing(flic2err.ReasonNone, "compute shared secret: %v", err))
	}

	fv.schedule = keyagreement.DeriveFullVerifySchedule(shared, byte(sigBits), resp.ButtonRandom, fv.clientRandom)
	fv.address = resp.Address
	fv.addressType = resp.AddressType
	fv.connID = decoded.Header.ConnID

	wire, err := fv.encoder.EncodeFullVerifyRequest2(fv.keyPair.Public, fv.clientRandom, fv.schedule.Verifier, fv.connID)
	if err != nil {
		return fv.fail(err)
	}

	fv.state = StateFullVerifyRequest2Sent
	fv.encoder.SetSessionKey(fv.schedule.SessionKey)
	fv.decoder.SetSessionKey(fv.schedule.SessionKey)
	if fv.callbacks.OnSessionKey != nil {
		fv.callbacks.OnSessionKey(fv.schedule.SessionKey)
	}

	return wire, nil
}

func (fv *FullVerify) handleResponse2(decoded packet.Decoded) ([]byte, error) {
	if decoded.Opcode == packet.OpFullVerifyFailResponse2 {
		reason := packet.FullVerifyFailReason(0)
		if len(decoded.Payload) > 0 {
			reason = packet.FullVerifyFailReason(decoded.Payload[0])
		}
		mapped := mapFullVerifyFailReason(reason)
		err := flic2err.Pairing(mapped, "full verify request 2 rejected")
		if mapped == flic2err.ReasonInvalidVerifier {
			return fv.fail(err)
		}
		if fv.callbacks.OnError != nil {
			fv.callbacks.OnError(err)
		}
		return nil, err
	}

	resp, err := packet.DecodeFullVerifyResponse2(decoded.Payload)
	if err != nil {
		return fv.fail(flic2err.Protocol(err, "decode full verify response 2"))
	}

	creds := flic2model.PairingCredentials{
		Address:         formatAddress(fv.address),
		PairingID:       fv.schedule.PairingID,
		PairingKey:      fv.schedule.PairingKey,
		ButtonUUID:      resp.UUID,
		Name:            resp.Name,
		SerialNumber:    resp.SerialNumber,
		FirmwareVersion: resp.FirmwareVersion,
	}
	info := flic2model.ButtonInfo{
		Address:         creds.Address,
		UUID:            resp.UUID,
		Name:            resp.Name,
		SerialNumber:    resp.SerialNumber,
		FirmwareVersion: resp.FirmwareVersion,
		BatteryLevel:    resp.BatteryLevel,
	}

	fv.state = StateFullVerifyComplete
	if fv.callbacks.OnPairingComplete != nil {
		fv.callbacks.OnPairingComplete(creds, info)
	}
	return nil, nil
}

// QuickVerify re-establishes a session with a previously paired button
// using a stored pairing key, skipping Diffie-Hellman and Ed25519.
type QuickVerify struct {
	state State

	pairingID    [4]byte
	pairingKey   [16]byte
	clientRandom [8]byte
	tmpID        [4]byte

	connID     uint8
	sessionKey [16]byte

	encoder *packet.Encoder
	decoder *packet.Decoder

	callbacks Callbacks
}

// NewQuickVerify starts a Quick Verify handshake using stored credentials.
func NewQuickVerify(creds flic2model.PairingCredentials, cb Callbacks) (*QuickVerify, []byte, error) {
	clientRandom, err := randomBytes8()
	if err != nil {
		return nil, nil, flic2err.Pairing(flic2err.ReasonNone, "generate client random: %v", err)
	}
	tmpID, err := randomBytes4()
	if err != nil {
		return nil, nil, flic2err.Pairing(flic2err.ReasonNone, "generate tmp id: %v", err)
	}

	qv := &QuickVerify{
		state:        StateQuickVerifyRequestSent,
		pairingID:    creds.PairingID,
		pairingKey:   creds.PairingKey,
		clientRandom: clientRandom,
		tmpID:        tmpID,
		encoder:      packet.NewEncoder(),
		decoder:      packet.NewDecoder(),
		callbacks:    cb,
	}

	wire, err := qv.encoder.EncodeQuickVerifyRequest(qv.pairingID, clientRandom, tmpID, 0)
	if err != nil {
		return nil, nil, err
	}
	return qv, wire, nil
}

func (qv *QuickVerify) State() State          { return qv.state }
func (qv *QuickVerify) IsComplete() bool      { return qv.state == StateQuickVerifyComplete }
func (qv *QuickVerify) IsFailed() bool        { return qv.state == StateFailed }
func (qv *QuickVerify) SessionKey() [16]byte  { return qv.sessionKey }
func (qv *QuickVerify) ConnID() uint8         { return qv.connID }

func (qv *QuickVerify) fail(err error) error {
	qv.state = StateFailed
	if qv.callbacks.OnError != nil {
		qv.callbacks.OnError(err)
	}
	return err
}

// HandlePacket advances the quick verify state machine with one inbound packet.
func (qv *QuickVerify) HandlePacket(data []byte) error {
	decoded, err := qv.decoder.Decode(data, false)
	if err != nil {
		return flic2err.Protocol(err, "decode quick verify packet")
	}

	switch decoded.Opcode {
	case packet.OpNoPairingExists:
		return qv.fail(flic2err.Pairing(flic2err.ReasonInvalidPairingID, "no pairing exists for this pairing id"))
	case packet.OpQuickVerifyFail:
		reason := packet.QuickVerifyFailReason(0)
		if len(decoded.Payload) > 0 {
			reason = packet.QuickVerifyFailReason(decoded.Payload[0])
		}
		return qv.fail(flic2err.Pairing(mapQuickVerifyFailReason(reason), "quick verify rejected"))
	case packet.OpQuickVerifyResponse:
		resp, err := packet.DecodeQuickVerifyResponse(decoded.Payload)
		if err != nil {
			return qv.fail(flic2err.Protocol(err, "decode quick verify response"))
		}
		qv.connID = decoded.Header.ConnID
		qv.sessionKey = keyagreement.DeriveQuickVerifySessionKey(qv.pairingKey, qv.clientRandom, resp.ButtonRandom)
		qv.encoder.SetSessionKey(qv.sessionKey)
		qv.decoder.SetSessionKey(qv.sessionKey)
		qv.state = StateQuickVerifyComplete
		if qv.callbacks.OnSessionKey != nil {
			qv.callbacks.OnSessionKey(qv.sessionKey)
		}
		return nil
	default:
		return flic2err.Protocol(nil, "unexpected opcode 0x%02x during quick verify", byte(decoded.Opcode))
	}
}

func mapFullVerifyFailReason(r packet.FullVerifyFailReason) flic2err.Reason {
	switch r {
	case packet.FullVerifyInvalidVerifier:
		return flic2err.ReasonInvalidVerifier
	case packet.FullVerifyNotInPublicMode:
		return flic2err.ReasonNotInPublicMode
	case packet.FullVerifyTooManyPairings:
		return flic2err.ReasonTooManyPairings
	case packet.FullVerifyNotInPairingMode:
		return flic2err.ReasonNotInPairingMode
	default:
		return flic2err.ReasonNone
	}
}

func mapQuickVerifyFailReason(r packet.QuickVerifyFailReason) flic2err.Reason {
	switch r {
	case packet.QuickVerifyInvalidSignature:
		return flic2err.ReasonInvalidSignature
	case packet.QuickVerifyInvalidPairingID:
		return flic2err.ReasonInvalidPairingID
	default:
		return flic2err.ReasonNone
	}
}

func formatAddress(addr [6]byte) string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", addr[0], addr[1], addr[2], addr[3], addr[4], addr[5])
}
