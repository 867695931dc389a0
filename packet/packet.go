// Package packet implements the Flic 2 wire framing: a header byte
// (connection id plus three flag bits), an opcode byte, a payload, and an
// optional 5-byte Chaskey signature.
package packet

import (
	"crypto/subtle"
	"fmt"

	"github.com/cvsouth/flic2-go/chaskey"
)

// Header bit layout (const.py CONN_ID_MASK/NEWLY_ASSIGNED_BIT/MULTI_BIT/FRAGMENT_BIT).
const (
	ConnIDMask       = 0x1F
	NewlyAssignedBit = 0x20
	MultiBit         = 0x40
	FragmentBit      = 0x80
)

// SignatureLength is the truncated MAC length carried on signed packets.
const SignatureLength = 5

// MaxPayloadSize is the largest payload before BLE-transport fragmentation.
const MaxPayloadSize = 20

// Header is the decoded form of a packet's first byte.
type Header struct {
	ConnID        uint8
	NewlyAssigned bool
	Multi         bool
	Fragment      bool
}

// Byte reconstructs the wire header byte.
func (h Header) Byte() byte {
	b := h.ConnID & ConnIDMask
	if h.NewlyAssigned {
		b |= NewlyAssignedBit
	}
	if h.Multi {
		b |= MultiBit
	}
	if h.Fragment {
		b |= FragmentBit
	}
	return b
}

// DecodeHeader splits a raw header byte into its fields.
func DecodeHeader(b byte) Header {
	return Header{
		ConnID:        b & ConnIDMask,
		NewlyAssigned: b&NewlyAssignedBit != 0,
		Multi:         b&MultiBit != 0,
		Fragment:      b&FragmentBit != 0,
	}
}

// Decoded is a fully parsed inbound packet.
type Decoded struct {
	Header    Header
	Opcode    Opcode
	Payload   []byte
	Signature []byte // non-nil only when verification was requested and the packet carried one
}

// Encoder builds outbound packets, optionally signing them once a session
// key has been installed.
type Encoder struct {
	mac *chaskey.Cipher
}

// NewEncoder returns an Encoder with no session key installed; only
// unsigned packets (the Full Verify request builders) can be produced
// until SetSessionKey is called.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// SetSessionKey installs (or replaces) the key used by Encode's sign path
// and EncodeSigned.
func (e *Encoder) SetSessionKey(key [16]byte) {
	e.mac = chaskey.New(key)
}

// Encode builds header || opcode || payload, optionally appending a plain
// mac5 signature. This is the pairing-phase framing: a fixed MAC with no
// direction/counter binding.
func (e *Encoder) Encode(opcode Opcode, payload []byte, connID uint8, newlyAssigned bool, sign bool) ([]byte, error) {
	hdr := Header{ConnID: connID, NewlyAssigned: newlyAssigned}

	packet := make([]byte, 0, 2+len(payload)+SignatureLength)
	packet = append(packet, hdr.Byte(), byte(opcode))
	packet = append(packet, payload...)

	if sign {
		if e.mac == nil {
			return nil, fmt.Errorf("encode: sign requested but no session key installed")
		}
		sig := e.mac.Mac5(packet)
		packet = append(packet, sig[:]...)
	}

	return packet, nil
}

// EncodeSigned builds a post-session signed request: header || opcode ||
// payload || mac_with_dir_and_counter(header||opcode||payload, dir, counter).
// The caller is responsible for incrementing its tx_counter atomically with
// this call.
func (e *Encoder) EncodeSigned(opcode Opcode, payload []byte, connID uint8, dir uint8, counter uint64) ([]byte, error) {
	if e.mac == nil {
		return nil, fmt.Errorf("encode signed: no session key installed")
	}
	hdr := Header{ConnID: connID}
	body := make([]byte, 0, 2+len(payload))
	body = append(body, hdr.Byte(), byte(opcode))
	body = append(body, payload...)

	sig := e.mac.MacWithDirAndCounter(body, dir, counter)
	return append(body, sig[:]...), nil
}

// EncodeFullVerifyRequest1 builds the opening Full Verify packet: tmp_id(4).
func (e *Encoder) EncodeFullVerifyRequest1(tmpID [4]byte) ([]byte, error) {
	return e.Encode(OpFullVerifyRequest1, tmpID[:], 0, false, false)
}

// EncodeFullVerifyRequest2 builds pubkey(32) || client_random(8) || rfu(1) || verifier(16).
func (e *Encoder) EncodeFullVerifyRequest2(ourPubkey [32]byte, clientRandom [8]byte, verifier [16]byte, connID uint8) ([]byte, error) {
	payload := make([]byte, 0, 57)
	payload = append(payload, ourPubkey[:]...)
	payload = append(payload, clientRandom[:]...)
	payload = append(payload, 0) // rfu
	payload = append(payload, verifier[:]...)
	return e.Encode(OpFullVerifyRequest2, payload, connID, false, false)
}

// EncodeQuickVerifyRequest builds client_random[0:7](7) || flags(1) || tmp_id(4) || pairing_id(4).
func (e *Encoder) EncodeQuickVerifyRequest(pairingID [4]byte, clientRandom [8]byte, tmpID [4]byte, flags byte) ([]byte, error) {
	payload := make([]byte, 0, 16)
	payload = append(payload, clientRandom[:7]...)
	payload = append(payload, flags)
	payload = append(payload, tmpID[:]...)
	payload = append(payload, pairingID[:]...)
	return e.Encode(OpQuickVerifyRequest, payload, 0, false, false)
}

// Decoder parses inbound packets, optionally verifying the plain mac5
// trailer against an installed session key.
type Decoder struct {
	mac *chaskey.Cipher
}

// NewDecoder returns a Decoder with no session key installed.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// SetSessionKey installs (or replaces) the key used by Decode's verify path
// and by VerifySigned.
func (d *Decoder) SetSessionKey(key [16]byte) {
	d.mac = chaskey.New(key)
}

// Decode parses header/opcode/payload and, if verifySignature is true and a
// session key is installed and the packet is long enough to carry a
// trailer, checks it with the plain mac5 variant. This is the pairing-phase
// decode path; post-session inbound verification uses VerifySigned instead.
func (d *Decoder) Decode(data []byte, verifySignature bool) (Decoded, error) {
	if len(data) < 2 {
		return Decoded{}, fmt.Errorf("packet too short: %d bytes", len(data))
	}

	hdr := DecodeHeader(data[0])
	opcode := Opcode(data[1])

	var signature []byte
	payload := data[2:]

	if verifySignature && d.mac != nil && len(data) > SignatureLength+2 {
		signature = data[len(data)-SignatureLength:]
		signedPart := data[:len(data)-SignatureLength]

		expected := d.mac.Mac5(signedPart)
		if !bytesEqual(signature, expected[:]) {
			return Decoded{}, fmt.Errorf("packet signature mismatch")
		}

		payload = data[2 : len(data)-SignatureLength]
	}

	return Decoded{
		Header:    hdr,
		Opcode:    opcode,
		Payload:   payload,
		Signature: signature,
	}, nil
}

// VerifySigned checks a post-session packet's trailing MAC against
// mac_with_dir_and_counter(header||opcode||payload, dir, counter) and
// returns the parsed packet on success.
func (d *Decoder) VerifySigned(data []byte, dir uint8, counter uint64) (Decoded, error) {
	if d.mac == nil {
		return Decoded{}, fmt.Errorf("verify signed: no session key installed")
	}
	if len(data) < 2+SignatureLength {
		return Decoded{}, fmt.Errorf("signed packet too short: %d bytes", len(data))
	}

	signedPart := data[:len(data)-SignatureLength]
	signature := data[len(data)-SignatureLength:]

	expected := d.mac.MacWithDirAndCounter(signedPart, dir, counter)
	if !bytesEqual(signature, expected[:]) {
		return Decoded{}, fmt.Errorf("signed packet signature mismatch")
	}

	hdr := DecodeHeader(data[0])
	return Decoded{
		Header:    hdr,
		Opcode:    Opcode(data[1]),
		Payload:   data[2 : len(data)-SignatureLength],
		Signature: signature,
	}, nil
}

// bytesEqual compares a received MAC against the expected one in constant
// time; a length- or data-dependent compare here would leak the signature
// byte-by-byte to a timing attacker.
func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
