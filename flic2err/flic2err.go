// Package flic2err defines the error-kind hierarchy the core raises:
// connection, timeout, pairing (with a sub-reason), protocol, not-paired,
// and storage failures, all wrapping an underlying cause.
package flic2err

import "fmt"

// Kind classifies a core failure the way a supervisor needs to dispatch on:
// does this mean re-pair, retry, or give up.
type Kind int

const (
	KindConnection Kind = iota
	KindTimeout
	KindPairing
	KindProtocol
	KindNotPaired
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindTimeout:
		return "timeout"
	case KindPairing:
		return "pairing"
	case KindProtocol:
		return "protocol"
	case KindNotPaired:
		return "not_paired"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Reason is a pairing-specific sub-code, matching FullVerifyFailReason /
// QuickVerifyFailReason / the local signature-verification failures.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonInvalidVerifier
	ReasonNotInPublicMode
	ReasonTooManyPairings
	ReasonNotInPairingMode
	ReasonNoPairingExists
	ReasonInvalidSignature
	ReasonInvalidPairingID
	ReasonNoSpace
)

func (r Reason) String() string {
	switch r {
	case ReasonInvalidVerifier:
		return "INVALID_VERIFIER"
	case ReasonNotInPublicMode:
		return "NOT_IN_PUBLIC_MODE"
	case ReasonTooManyPairings:
		return "TOO_MANY_PAIRINGS"
	case ReasonNotInPairingMode:
		return "NOT_IN_PAIRING_MODE"
	case ReasonNoPairingExists:
		return "NO_PAIRING_EXISTS"
	case ReasonInvalidSignature:
		return "INVALID_SIGNATURE"
	case ReasonInvalidPairingID:
		return "INVALID_PAIRING_ID"
	case ReasonNoSpace:
		return "NO_SPACE"
	default:
		return "NONE"
	}
}

// Error is the core's error type. It always carries a Kind; Reason is
// populated only for KindPairing.
type Error struct {
	Kind    Kind
	Reason  Reason
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Kind == KindPairing && e.Reason != ReasonNone {
		if e.Cause != nil {
			return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Reason, e.Message, e.Cause)
		}
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Reason, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, flic2err.Pairing(flic2err.ReasonInvalidVerifier, ""))-style
// matching on Kind and Reason alone, ignoring Message/Cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	if t.Kind == KindPairing && t.Reason != ReasonNone && t.Reason != e.Reason {
		return false
	}
	return true
}

func newf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func Connection(cause error, format string, args ...any) *Error {
	return newf(KindConnection, cause, format, args...)
}

func Timeout(format string, args ...any) *Error {
	return newf(KindTimeout, nil, format, args...)
}

func Protocol(cause error, format string, args ...any) *Error {
	return newf(KindProtocol, cause, format, args...)
}

func NotPaired(format string, args ...any) *Error {
	return newf(KindNotPaired, nil, format, args...)
}

func Storage(cause error, format string, args ...any) *Error {
	return newf(KindStorage, cause, format, args...)
}

// Pairing builds a pairing failure tagged with reason.
func Pairing(reason Reason, format string, args ...any) *Error {
	e := newf(KindPairing, nil, format, args...)
	e.Reason = reason
	return e
}

// InvalidSignature is the pairing-reason shortcut used for both Ed25519
// identity failures and post-session MAC mismatches.
func InvalidSignature(cause error, format string, args ...any) *Error {
	e := newf(KindPairing, cause, format, args...)
	e.Reason = ReasonInvalidSignature
	return e
}
