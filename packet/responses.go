package packet

import (
	"encoding/binary"
	"fmt"
)

// FullVerifyResponse1 is the button's reply to FullVerifyRequest1: its
// Ed25519 identity signature over address||address_type||ecdh_pubkey, plus
// the fields that signature covers, plus its own ECDH random contribution.
type FullVerifyResponse1 struct {
	Signature    [64]byte
	Address      [6]byte
	AddressType  byte
	ECDHPubkey   [32]byte
	ButtonRandom [8]byte
	IsPublicMode bool
}

// DecodeFullVerifyResponse1 parses tmp_id_echo(4) || signature(64) ||
// address(6) || address_type(1) || ecdh_pubkey(32) || button_random(8) and,
// when the payload is long enough to carry it, the public-mode flags byte
// at offset 115.
func DecodeFullVerifyResponse1(payload []byte) (FullVerifyResponse1, error) {
	const minLen = 4 + 64 + 6 + 1 + 32 + 8
	if len(payload) < minLen {
		return FullVerifyResponse1{}, fmt.Errorf("full verify response 1 too short: %d bytes, want >= %d", len(payload), minLen)
	}

	var r FullVerifyResponse1
	off := 4 // skip tmp_id echo
	copy(r.Signature[:], payload[off:off+64])
	off += 64
	copy(r.Address[:], payload[off:off+6])
	off += 6
	r.AddressType = payload[off]
	off++
	copy(r.ECDHPubkey[:], payload[off:off+32])
	off += 32
	copy(r.ButtonRandom[:], payload[off:off+8])
	off += 8

	if len(payload) > 115 {
		flags := payload[115]
		r.IsPublicMode = (flags>>1)&1 == 1
	}

	return r, nil
}

// FullVerifyResponse2 is the button's final handshake reply, carrying the
// durable identity fields stored alongside the pairing credentials.
type FullVerifyResponse2 struct {
	UUID            string
	Name            string
	FirmwareVersion uint32
	BatteryLevel    uint8
	SerialNumber    string
}

// DecodeFullVerifyResponse2 parses uuid(16) || flags(1) || name_len(1) ||
// name(24, padded) || firmware(4 LE) || battery(1) || unknown(1) ||
// serial_number (remaining bytes, terminated at the first NUL or
// non-printable byte).
func DecodeFullVerifyResponse2(payload []byte) (FullVerifyResponse2, error) {
	const headerLen = 16 + 1 + 1 + 24 + 4 + 1 + 1
	if len(payload) < headerLen {
		return FullVerifyResponse2{}, fmt.Errorf("full verify response 2 too short: %d bytes, want >= %d", len(payload), headerLen)
	}

	var r FullVerifyResponse2
	off := 0
	r.UUID = formatUUID(payload[off : off+16])
	off += 16
	off++ // flags

	nameLen := int(payload[off])
	off++
	if nameLen > 24 {
		nameLen = 24
	}
	r.Name = string(trimTrailingZeros(payload[off : off+nameLen]))
	off += 24

	r.FirmwareVersion = binary.LittleEndian.Uint32(payload[off : off+4])
	off += 4

	r.BatteryLevel = payload[off]
	off++
	off++ // unknown/reserved byte

	r.SerialNumber = scanSerialNumber(payload[off:])

	return r, nil
}

// QuickVerifyResponse is the button's reply completing a quick verify.
type QuickVerifyResponse struct {
	ButtonRandom [8]byte
}

// DecodeQuickVerifyResponse parses button_random(8).
func DecodeQuickVerifyResponse(payload []byte) (QuickVerifyResponse, error) {
	if len(payload) < 8 {
		return QuickVerifyResponse{}, fmt.Errorf("quick verify response too short: %d bytes", len(payload))
	}
	var r QuickVerifyResponse
	copy(r.ButtonRandom[:], payload[:8])
	return r, nil
}

// InitButtonEventsResponse reports the button's event-subscription boot
// context, used to resynchronize boot_id/event_count bookkeeping.
type InitButtonEventsResponse struct {
	BootID       uint32
	EventCount   uint32
	TimestampHi  uint32
	BatteryLevel uint8
}

// DecodeInitButtonEventsResponse parses boot_id(4 LE) || event_count(4 LE) ||
// timestamp_hi(4 LE) || battery_level(1). Callers must first strip the
// header byte, opcode byte, and trailing 5-byte signature.
func DecodeInitButtonEventsResponse(payload []byte) (InitButtonEventsResponse, error) {
	const want = 4 + 4 + 4 + 1
	if len(payload) < want {
		return InitButtonEventsResponse{}, fmt.Errorf("init button events response too short: %d bytes, want >= %d", len(payload), want)
	}
	return InitButtonEventsResponse{
		BootID:       binary.LittleEndian.Uint32(payload[0:4]),
		EventCount:   binary.LittleEndian.Uint32(payload[4:8]),
		TimestampHi:  binary.LittleEndian.Uint32(payload[8:12]),
		BatteryLevel: payload[12],
	}, nil
}

// BatteryStatus is the decoded GET_INFO/battery-status reply.
type BatteryStatus struct {
	BatteryLevel uint8
	Timestamp    uint32
}

// DecodeBatteryStatus parses battery_level(1) || timestamp(4 LE).
func DecodeBatteryStatus(payload []byte) (BatteryStatus, error) {
	if len(payload) < 5 {
		return BatteryStatus{}, fmt.Errorf("battery status too short: %d bytes", len(payload))
	}
	return BatteryStatus{
		BatteryLevel: payload[0],
		Timestamp:    binary.LittleEndian.Uint32(payload[1:5]),
	}, nil
}

func formatUUID(b []byte) string {
	return fmt.Sprintf("%02x%02x%02x%02x-%02x%02x-%02x%02x-%02x%02x-%02x%02x%02x%02x%02x%02x",
		b[0], b[1], b[2], b[3], b[4], b[5], b[6], b[7],
		b[8], b[9], b[10], b[11], b[12], b[13], b[14], b[15])
}

func trimTrailingZeros(b []byte) []byte {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return b[:end]
}

func scanSerialNumber(b []byte) string {
	end := 0
	for end < len(b) {
		c := b[end]
		if c == 0 || c < 0x20 || c > 0x7E {
			break
		}
		end++
	}
	return string(b[:end])
}
