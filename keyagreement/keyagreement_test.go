package keyagreement

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"testing"
)

// TestDeriveFullVerifySchedule reproduces a hand-computed vector for the
// full key schedule given fixed shared secret, sig_bits, and randoms.
func TestDeriveFullVerifySchedule(t *testing.T) {
	var shared [32]byte
	for i := range shared {
		shared[i] = byte(i)
	}
	var buttonRandom, clientRandom [8]byte
	for i := 0; i < 8; i++ {
		buttonRandom[i] = byte(0x20 + i)
		clientRandom[i] = byte(0x30 + i)
	}

	sched := DeriveFullVerifySchedule(shared, 2, buttonRandom, clientRandom)

	check := func(name string, got []byte, wantHex string) {
		t.Helper()
		want, err := hex.DecodeString(wantHex)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("%s = %x, want %x", name, got, want)
		}
	}

	check("FullVerifySecret", sched.FullVerifySecret[:], "50c678167a10f4315296326a968f94782c2659c3e6c7ef4953bc25650abcf78c")
	check("Verifier", sched.Verifier[:], "c2ce6362be60c2073e0a5300cc801278")
	check("SessionKey", sched.SessionKey[:], "90a4a2e871a162594f4cb20a68776e80")
	check("PairingID", sched.PairingID[:], "96caf742")
	check("PairingKey", sched.PairingKey[:], "8d1af1a8b64c6697cd25469c424924b5")
}

// TestVerifyButtonIdentityRecoversSigBits builds a real Ed25519 keypair,
// signs the message, stashes a known sig_bits value in the low 2 bits of
// byte 32, and checks that verification recovers exactly that value.
func TestVerifyButtonIdentityRecoversSigBits(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}

	// Swap in our test key as "Flic's" public key for this test.
	orig := FlicPublicKey
	FlicPublicKey = pub
	defer func() { FlicPublicKey = orig }()

	var address [6]byte
	copy(address[:], []byte{1, 2, 3, 4, 5, 6})
	addressType := byte(1)
	var ecdhPubkey [32]byte
	for i := range ecdhPubkey {
		ecdhPubkey[i] = byte(100 + i)
	}

	message := append(append(append([]byte{}, address[:]...), addressType), ecdhPubkey[:]...)
	sig := ed25519.Sign(priv, message)

	for wantBits := 0; wantBits < 4; wantBits++ {
		var signature [64]byte
		copy(signature[:], sig)
		signature[32] = (signature[32] &^ 0x03) | byte(wantBits)

		gotBits, err := VerifyButtonIdentity(signature, address, addressType, ecdhPubkey)
		if err != nil {
			t.Fatalf("sig_bits=%d: VerifyButtonIdentity failed: %v", wantBits, err)
		}
		if gotBits != wantBits {
			t.Fatalf("sig_bits=%d: recovered %d", wantBits, gotBits)
		}
	}
}

func TestVerifyButtonIdentityRejectsTamperedMessage(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	orig := FlicPublicKey
	FlicPublicKey = pub
	defer func() { FlicPublicKey = orig }()

	var address [6]byte
	copy(address[:], []byte{1, 2, 3, 4, 5, 6})
	addressType := byte(1)
	var ecdhPubkey [32]byte

	message := append(append(append([]byte{}, address[:]...), addressType), ecdhPubkey[:]...)
	sig := ed25519.Sign(priv, message)
	var signature [64]byte
	copy(signature[:], sig)

	address[0] ^= 0xFF // tamper
	if _, err := VerifyButtonIdentity(signature, address, addressType, ecdhPubkey); err == nil {
		t.Fatal("expected VerifyButtonIdentity to fail on tampered address")
	}
}

func TestDeriveQuickVerifySessionKey(t *testing.T) {
	var pairingKey [16]byte
	for i := range pairingKey {
		pairingKey[i] = 0xAA
	}
	var clientRandom, buttonRandom [8]byte
	for i := 0; i < 7; i++ {
		clientRandom[i] = byte(i + 1)
	}
	for i := 0; i < 8; i++ {
		buttonRandom[i] = byte(0x10 + i)
	}

	got := DeriveQuickVerifySessionKey(pairingKey, clientRandom, buttonRandom)
	want, err := hex.DecodeString("4861446769ad7c44ff8b437795d84332")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got[:], want) {
		t.Fatalf("DeriveQuickVerifySessionKey = %x, want %x", got, want)
	}
}
