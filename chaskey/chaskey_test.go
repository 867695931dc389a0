package chaskey

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func mustKey(hexStr string) [16]byte {
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		panic(err)
	}
	var k [16]byte
	copy(k[:], b)
	return k
}

// TestMacWithDirAndCounterVector reproduces the golden vector from the
// reference C implementation: key 0x00112233...eeff, message "Hello",
// dir=1, ctr=0.
func TestMacWithDirAndCounterVector(t *testing.T) {
	c := New(mustKey("00112233445566778899aabbccddeeff"))
	got := c.MacWithDirAndCounter([]byte("Hello"), 1, 0)

	want, err := hex.DecodeString("d476da65d3")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got[:], want) {
		t.Fatalf("MacWithDirAndCounter = %x, want %x", got, want)
	}
}

// TestEncryptBlockVector reproduces the quick-verify key derivation vector:
// pairing_key = 16x0xAA, client_random[0:7] = 0x01..0x07, button_random = 0x10..0x17.
func TestEncryptBlockVector(t *testing.T) {
	var key [16]byte
	for i := range key {
		key[i] = 0xAA
	}
	c := New(key)

	var plaintext [16]byte
	for i := 0; i < 7; i++ {
		plaintext[i] = byte(i + 1)
	}
	plaintext[7] = 0x00
	for i := 0; i < 8; i++ {
		plaintext[8+i] = byte(0x10 + i)
	}

	got := c.EncryptBlock(plaintext)
	want, err := hex.DecodeString("4861446769ad7c44ff8b437795d84332")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got[:], want) {
		t.Fatalf("EncryptBlock = %x, want %x", got, want)
	}
}

func TestMacDeterministic(t *testing.T) {
	c := New(mustKey("000102030405060708090a0b0c0d0e0f"))
	msg := []byte("some message body")

	a := c.Mac(msg)
	b := c.Mac(msg)
	if a != b {
		t.Fatalf("Mac is not deterministic: %x != %x", a, b)
	}
}

func TestMacSensitiveToBitFlip(t *testing.T) {
	c := New(mustKey("000102030405060708090a0b0c0d0e0f"))
	msg := []byte("some message body")
	base := c.Mac(msg)

	flipped := append([]byte(nil), msg...)
	flipped[0] ^= 0x01
	if c.Mac(flipped) == base {
		t.Fatal("Mac did not change after flipping a message bit")
	}

	var flippedKey [16]byte
	kb := mustKey("000102030405060708090a0b0c0d0e0f")
	copy(flippedKey[:], kb[:])
	flippedKey[0] ^= 0x01
	if New(flippedKey).Mac(msg) == base {
		t.Fatal("Mac did not change after flipping a key bit")
	}
}

func TestMacWithDirAndCounterSensitivity(t *testing.T) {
	c := New(mustKey("000102030405060708090a0b0c0d0e0f"))
	msg := []byte("a post-session payload")

	base := c.MacWithDirAndCounter(msg, 1, 42)

	if c.MacWithDirAndCounter(msg, 0, 42) == base {
		t.Fatal("MacWithDirAndCounter did not change with direction")
	}
	if c.MacWithDirAndCounter(msg, 1, 43) == base {
		t.Fatal("MacWithDirAndCounter did not change with counter")
	}
	flipped := append([]byte(nil), msg...)
	flipped[0] ^= 0x01
	if c.MacWithDirAndCounter(flipped, 1, 42) == base {
		t.Fatal("MacWithDirAndCounter did not change with message")
	}
}

// TestMacWithDirAndCounterExactBlockBoundary exercises the strict
// i+16 < len(msg) loop guard: a message whose length is an exact multiple
// of 16 must still route its last block through the k1/k2 path rather than
// starting a new all-zero block.
func TestMacWithDirAndCounterExactBlockBoundary(t *testing.T) {
	c := New(mustKey("000102030405060708090a0b0c0d0e0f"))
	msg16 := bytes.Repeat([]byte{0x42}, 16)
	msg17 := bytes.Repeat([]byte{0x42}, 17)

	tag16 := c.MacWithDirAndCounter(msg16, 1, 0)
	tag17 := c.MacWithDirAndCounter(msg17, 1, 0)
	if tag16 == tag17 {
		t.Fatal("16-byte and 17-byte messages produced the same tag")
	}
}

func TestEncryptBlockBijective(t *testing.T) {
	var key [16]byte
	for i := range key {
		key[i] = byte(i)
	}
	c := New(key)

	seen := map[[16]byte]bool{}
	for i := 0; i < 256; i++ {
		var pt [16]byte
		pt[0] = byte(i)
		ct := c.EncryptBlock(pt)
		if seen[ct] {
			t.Fatalf("EncryptBlock collision at i=%d", i)
		}
		seen[ct] = true
	}
}
