// Package keyagreement implements the Flic 2 pairing key schedule: X25519
// Diffie-Hellman, Ed25519 identity verification with embedded sig-bits
// recovery, and the HMAC-SHA256-based derivation of the session key,
// verifier, and durable pairing credentials.
package keyagreement

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/curve25519"

	"github.com/cvsouth/flic2-go/chaskey"
)

// FlicPublicKeyHex is Flic's Ed25519 identity public key, used to verify
// every button's signature over its ECDH pubkey and address.
const FlicPublicKeyHex = "d33f2440dd54b31b2e1dcf40132efa41d8f8a7474168df4008f5a95fb3b0d022"

// FlicPublicKey is the decoded form of FlicPublicKeyHex.
var FlicPublicKey = mustDecodeHex(FlicPublicKeyHex)

func mustDecodeHex(s string) ed25519.PublicKey {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return ed25519.PublicKey(b)
}

// KeyPair is an X25519 scalar keypair.
type KeyPair struct {
	Private [32]byte
	Public  [32]byte
}

// GenerateKeyPair creates a fresh X25519 keypair from the system CSPRNG.
func GenerateKeyPair() (*KeyPair, error) {
	var priv [32]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return nil, fmt.Errorf("generate x25519 private key: %w", err)
	}
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("derive x25519 public key: %w", err)
	}
	kp := &KeyPair{Private: priv}
	copy(kp.Public[:], pub)
	return kp, nil
}

// SharedSecret computes the X25519 ECDH shared secret with a peer's public key.
func (kp *KeyPair) SharedSecret(peerPublic [32]byte) ([32]byte, error) {
	var out [32]byte
	s, err := curve25519.X25519(kp.Private[:], peerPublic[:])
	if err != nil {
		return out, fmt.Errorf("x25519 exchange: %w", err)
	}
	copy(out[:], s)
	return out, nil
}

// VerifyButtonIdentity recovers sig_bits and checks the button's Ed25519
// signature over address || address_type || ecdh_pubkey.
//
// The button stashes two extra bits of protocol state in the low 2 bits of
// signature byte 32 (the first byte of the scalar s), which must be masked
// off before the signature will verify. There is no way to know which of
// the 4 values was used except by trying all of them.
func VerifyButtonIdentity(signature [64]byte, address [6]byte, addressType byte, ecdhPubkey [32]byte) (sigBits int, err error) {
	message := make([]byte, 0, 39)
	message = append(message, address[:]...)
	message = append(message, addressType)
	message = append(message, ecdhPubkey[:]...)

	candidate := signature

	for b := 0; b < 4; b++ {
		candidate[32] = (signature[32] &^ 0x03) | byte(b)
		if ed25519.Verify(FlicPublicKey, message, candidate[:]) {
			return b, nil
		}
	}

	return 0, fmt.Errorf("no valid sig_bits found for button identity signature")
}

// Schedule holds the key material derived from a completed Full Verify
// Diffie-Hellman exchange.
type Schedule struct {
	FullVerifySecret [32]byte
	Verifier         [16]byte
	SessionKey       [16]byte
	PairingID        [4]byte
	PairingKey       [16]byte
}

// DeriveFullVerifySchedule runs the full key schedule:
//
//	fvs       = SHA256(sharedSecret || sigBits || buttonRandom || clientRandom || 0x00)
//	verifier  = HMAC-SHA256(fvs, "AT")[:16]
//	sessionKey = HMAC-SHA256(fvs, "SK")[:16]
//	pairingData = HMAC-SHA256(fvs, "PK")[:20]; id = [:4]; key = [4:20]
func DeriveFullVerifySchedule(sharedSecret [32]byte, sigBits byte, buttonRandom, clientRandom [8]byte) Schedule {
	h := sha256.New()
	h.Write(sharedSecret[:])
	h.Write([]byte{sigBits})
	h.Write(buttonRandom[:])
	h.Write(clientRandom[:])
	h.Write([]byte{0x00})

	var sched Schedule
	copy(sched.FullVerifySecret[:], h.Sum(nil))

	copy(sched.Verifier[:], hmacTag(sched.FullVerifySecret[:], "AT")[:16])
	copy(sched.SessionKey[:], hmacTag(sched.FullVerifySecret[:], "SK")[:16])

	pairingData := hmacTag(sched.FullVerifySecret[:], "PK")[:20]
	copy(sched.PairingID[:], pairingData[0:4])
	copy(sched.PairingKey[:], pairingData[4:20])

	return sched
}

func hmacTag(key []byte, msg string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(msg))
	return h.Sum(nil)
}

// DeriveQuickVerifySessionKey re-derives a session key from a stored
// pairing key without re-running X25519 or Ed25519, using a single
// Chaskey-LTS block encryption of clientRandom[0:7] || 0x00 || buttonRandom[0:8].
func DeriveQuickVerifySessionKey(pairingKey [16]byte, clientRandom [8]byte, buttonRandom [8]byte) [16]byte {
	var plaintext [16]byte
	copy(plaintext[0:7], clientRandom[:7])
	plaintext[7] = 0x00
	copy(plaintext[8:16], buttonRandom[:8])

	return chaskey.New(pairingKey).EncryptBlock(plaintext)
}
