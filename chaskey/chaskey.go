// Package chaskey implements the Flic 2 variant of the Chaskey-LTS MAC.
//
// This is not textbook Chaskey-LTS. The subkey doubling shifts bits from
// v[3] (most significant word) toward v[0], the opposite direction of the
// published construction, and the permutation's r6 lane is rotated before
// and after the round loop. Both deviations must be reproduced exactly or
// the MAC will not agree with a real button.
package chaskey

import (
	"encoding/binary"
	"math/bits"
)

const rounds = 16

// Cipher holds the expanded key schedule for one 128-bit key.
type Cipher struct {
	k  [4]uint32
	k1 [4]uint32
	k2 [4]uint32
}

// New expands a 16-byte key into a Cipher.
func New(key [16]byte) *Cipher {
	k := wordsFromBytes(key[:])
	k1 := timesTwo(k)
	k2 := timesTwo(k1)
	return &Cipher{k: k, k1: k1, k2: k2}
}

// timesTwo doubles a 128-bit value in GF(2^128), treating v[3] as the
// most-significant word and the reduction polynomial as 0x87.
func timesTwo(v [4]uint32) [4]uint32 {
	c := (v[3] >> 31) * 0x87
	return [4]uint32{
		(v[0] << 1) ^ c,
		(v[1] << 1) | (v[0] >> 31),
		(v[2] << 1) | (v[1] >> 31),
		(v[3] << 1) | (v[2] >> 31),
	}
}

func ror(x uint32, n uint) uint32 {
	return bits.RotateLeft32(x, -int(n))
}

// permute runs the 16-round ARX core with Flic's pre/post rotation of r6.
func permute(v [4]uint32) [4]uint32 {
	r4, r5, r6, r7 := v[0], v[1], v[2], v[3]

	r6 = ror(r6, 16)

	for i := 0; i < rounds; i++ {
		r4 += r5
		r5 = r4 ^ ror(r5, 27)
		r6 = r7 + ror(r6, 16)
		r7 = r6 ^ ror(r7, 24)
		r6 += r5
		r4 = r7 + ror(r4, 16)
		r5 = r6 ^ ror(r5, 25)
		r7 = r4 ^ ror(r7, 19)
	}

	r6 = ror(r6, 16)

	return [4]uint32{r4, r5, r6, r7}
}

func wordsFromBytes(b []byte) [4]uint32 {
	var w [4]uint32
	for i := range w {
		w[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return w
}

func bytesFromWords(v [4]uint32) [16]byte {
	var b [16]byte
	for i, w := range v {
		binary.LittleEndian.PutUint32(b[i*4:], w)
	}
	return b
}

// lastBlock pads message tail to 16 bytes and picks k1 (exact block) or
// k2 (short block, 0x01 then zero padding).
func (c *Cipher) lastBlock(tail []byte) ([4]uint32, [4]uint32) {
	var b [16]byte
	if len(tail) < 16 {
		copy(b[:], tail)
		b[len(tail)] = 0x01
		return wordsFromBytes(b[:]), c.k2
	}
	copy(b[:], tail)
	return wordsFromBytes(b[:]), c.k1
}

// Mac computes the full 16-byte Chaskey-LTS tag over msg.
func (c *Cipher) Mac(msg []byte) [16]byte {
	v := c.k

	i := 0
	for i+16 <= len(msg) {
		block := wordsFromBytes(msg[i : i+16])
		v[0] ^= block[0]
		v[1] ^= block[1]
		v[2] ^= block[2]
		v[3] ^= block[3]
		v = permute(v)
		i += 16
	}

	block, subkey := c.lastBlock(msg[i:])
	v[0] ^= block[0] ^ subkey[0]
	v[1] ^= block[1] ^ subkey[1]
	v[2] ^= block[2] ^ subkey[2]
	v[3] ^= block[3] ^ subkey[3]
	v = permute(v)

	v[0] ^= c.k[0]
	v[1] ^= c.k[1]
	v[2] ^= c.k[2]
	v[3] ^= c.k[3]

	return bytesFromWords(v)
}

// Mac5 truncates Mac to the 5 bytes carried on the wire for plain-signed
// pairing packets.
func (c *Cipher) Mac5(msg []byte) [5]byte {
	full := c.Mac(msg)
	var out [5]byte
	copy(out[:], full[:5])
	return out
}

// MacWithDirAndCounter computes the 5-byte signature used on every
// post-session packet: direction and a 64-bit counter are folded into the
// state before the message is absorbed, binding the tag to both.
//
// The block loop here uses a strict i+16 < len(msg) guard (not <=), so an
// exact multiple of 16 bytes still routes its final block through the
// k1/k2 path instead of starting a new, empty final block.
func (c *Cipher) MacWithDirAndCounter(msg []byte, dir uint8, counter uint64) [5]byte {
	v := c.k
	v[0] ^= uint32(counter)
	v[1] ^= uint32(counter >> 32)
	v[2] ^= uint32(dir)
	v = permute(v)

	i := 0
	for i+16 < len(msg) {
		block := wordsFromBytes(msg[i : i+16])
		v[0] ^= block[0]
		v[1] ^= block[1]
		v[2] ^= block[2]
		v[3] ^= block[3]
		v = permute(v)
		i += 16
	}

	block, subkey := c.lastBlock(msg[i:])
	v[0] ^= block[0]
	v[1] ^= block[1]
	v[2] ^= block[2]
	v[3] ^= block[3]
	v[0] ^= subkey[0]
	v[1] ^= subkey[1]
	v[2] ^= subkey[2]
	v[3] ^= subkey[3]
	v = permute(v)

	v[0] ^= subkey[0]
	v[1] ^= subkey[1]

	var out [5]byte
	binary.LittleEndian.PutUint32(out[0:4], v[0])
	out[4] = byte(v[1])
	return out
}

// EncryptBlock encrypts a single 16-byte block. Used only to derive the
// quick-verify session key from the stored pairing key.
func (c *Cipher) EncryptBlock(plaintext [16]byte) [16]byte {
	block := wordsFromBytes(plaintext[:])
	v := [4]uint32{
		block[0] ^ c.k[0] ^ c.k1[0],
		block[1] ^ c.k[1] ^ c.k1[1],
		block[2] ^ c.k[2] ^ c.k1[2],
		block[3] ^ c.k[3] ^ c.k1[3],
	}
	v = permute(v)
	v[0] ^= c.k1[0]
	v[1] ^= c.k1[1]
	v[2] ^= c.k1[2]
	v[3] ^= c.k1[3]
	return bytesFromWords(v)
}
