package packet

// Opcode identifies a packet's purpose. Several values are intentionally
// reused for more than one meaning depending on connection phase; these
// collisions are load-bearing on the wire (they match the real firmware's
// opcode table) and must not be "fixed" by renumbering — callers
// disambiguate by the phase/state they're in, not by the byte alone.
type Opcode uint8

const (
	// Full Verify handshake. 0x00 is shared by the client's first request
	// and the button's phase-matched reply; 0x01 is shared by the first
	// response's failure variant and the second response's success
	// payload — a receiver only ever expects one or the other depending
	// on whether it just sent request 1 or request 2.
	OpFullVerifyRequest1      Opcode = 0x00
	OpFullVerifyResponse1     Opcode = 0x00
	OpFullVerifyFailResponse1 Opcode = 0x01
	OpFullVerifyResponse2     Opcode = 0x01
	OpFullVerifyRequest2      Opcode = 0x02
	OpFullVerifyFailResponse2 Opcode = 0x03

	// OpAckButtonEvents has no real-firmware counterpart in the captured
	// opcode table (0x04 is unclaimed by any known request/response); it
	// is this client's own choice of wire byte for acknowledging a
	// button-event notification's event count so the button can drop the
	// record from its on-device queue.
	OpAckButtonEvents Opcode = 0x04

	// Quick Verify (reconnection with a stored pairing key).
	OpQuickVerifyRequest  Opcode = 0x05
	OpNoPairingExists     Opcode = 0x06
	OpQuickVerifyResponse Opcode = 0x08
	OpQuickVerifyFail     Opcode = 0x09 // shares its byte with OpDisconnectedLink; only expected mid quick-verify

	OpDisconnectedLink Opcode = 0x09

	// Button events. BUTTON_EVENT_SINGLE is a legacy opcode some
	// firmwares never emit; the init-events acknowledgment opcodes are
	// distinct from the steady-state notification opcode.
	OpButtonEventSingle        Opcode = 0x07
	OpInitButtonEventsResponse Opcode = 0x0A
	OpInitButtonEventsNoBoot   Opcode = 0x0B
	OpButtonEventNotification  Opcode = 0x0C

	// Ping and GetButtonInfo share a request/response opcode pair; which
	// one a reply means is scoped to whichever request is outstanding.
	OpPingRequest     Opcode = 0x0E
	OpGetInfoRequest  Opcode = 0x0E
	OpPingResponse    Opcode = 0x0F
	OpGetInfoResponse Opcode = 0x0F

	OpInitButtonEvents Opcode = 0x17
)

// FullVerifyFailReason enumerates the reason byte carried by
// OpFullVerifyFailResponse1/OpFullVerifyFailResponse2.
type FullVerifyFailReason uint8

const (
	FullVerifyInvalidVerifier   FullVerifyFailReason = 0
	FullVerifyNotInPublicMode   FullVerifyFailReason = 1
	FullVerifyTooManyPairings   FullVerifyFailReason = 2
	FullVerifyNotInPairingMode  FullVerifyFailReason = 3
)

// QuickVerifyFailReason enumerates the reason byte carried by
// OpQuickVerifyFail.
type QuickVerifyFailReason uint8

const (
	QuickVerifyInvalidSignature QuickVerifyFailReason = 0
	QuickVerifyInvalidPairingID QuickVerifyFailReason = 1
)

// DisconnectReasonByte maps the reason byte at offset 2 of a
// DISCONNECTED_LINK notification.
type DisconnectReasonByte uint8

const (
	DisconnectBytePingTimeout     DisconnectReasonByte = 0
	DisconnectByteInvalidSig      DisconnectReasonByte = 1
	DisconnectByteNewConnection   DisconnectReasonByte = 2
	DisconnectByteByUser          DisconnectReasonByte = 3
)
