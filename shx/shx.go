// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

// Package shx implements the SHX block cipher: the Serpent round structure
// extended to configurable round counts, with the round-key schedule
// produced by an HMAC extract-and-expand KDF instead of the original
// recurrence. The state is four little-endian 32-bit words; rounds apply the
// eight Serpent S-boxes in rotation followed by the linear transformation.
package shx

import (
	"encoding/binary"
	"math/bits"

	"github.com/keyparcel/keyparcel/cryptoerr"
	"github.com/keyparcel/keyparcel/kdf"
	"github.com/keyparcel/keyparcel/keys"
	"github.com/keyparcel/keyparcel/suite"
)

// BlockSize is the cipher block size in bytes.
const BlockSize = 16

// MinKeySize is the smallest accepted key. Longer keys grow in 128-byte
// steps: len = 64 + 128*k.
const MinKeySize = 192

// DefaultRounds is used when a description leaves the round count zero.
const DefaultRounds = 64

// kdfInfo is the fixed 32-byte expansion constant of the key schedule.
var kdfInfo = []byte("SHX version 1 information string")

var validRounds = map[int]bool{
	32: true, 40: true, 48: true, 56: true, 64: true, 80: true, 96: true, 128: true,
}

// Cipher is an SHX instance. Encrypt and Decrypt only read the loaded
// schedule and may run concurrently; Initialize and Destroy must not overlap
// any other call.
type Cipher struct {
	rk        []uint32 // 4*(rounds+1) schedule words
	rounds    int
	kdfDigest suite.DigestType
	encrypt   bool
	ready     bool
}

// New constructs an uninitialized cipher with the given round count and
// schedule digest. A zero round count selects DefaultRounds.
func New(rounds int, kdfDigest suite.DigestType) (*Cipher, error) {
	if rounds == 0 {
		rounds = DefaultRounds
	}
	if !validRounds[rounds] {
		return nil, cryptoerr.New("shx.New", cryptoerr.ErrInvalidArgument, "round count %d", rounds)
	}
	if _, err := kdf.Digest(kdfDigest); err != nil {
		return nil, err
	}
	return &Cipher{rounds: rounds, kdfDigest: kdfDigest}, nil
}

// BlockSize returns the block size in bytes.
func (c *Cipher) BlockSize() int { return BlockSize }

// Rounds returns the configured round count.
func (c *Cipher) Rounds() int { return c.rounds }

// Name returns the engine name.
func (c *Cipher) Name() string { return "SHX" }

// IsInitialized reports whether a key schedule is loaded.
func (c *Cipher) IsInitialized() bool { return c.ready }

// IsEncryption reports the configured direction.
func (c *Cipher) IsEncryption() bool { return c.encrypt }

// Initialize sets the direction and expands the key. The key must be at
// least 192 bytes with (len-64) an exact multiple of 128: the leading 64
// bytes are the IKM, the remainder the HMAC salt.
func (c *Cipher) Initialize(encryption bool, p *keys.Params) error {
	const op = "shx.Initialize"
	if p == nil || p.Key() == nil {
		return cryptoerr.New(op, cryptoerr.ErrInvalidArgument, "nil key parameters")
	}
	key := p.Key()
	if len(key) < MinKeySize || (len(key)-64)%128 != 0 {
		return cryptoerr.New(op, cryptoerr.ErrInvalidKeySize,
			"%d bytes; want 64+128*k with k >= 1", len(key))
	}
	h, err := kdf.Digest(c.kdfDigest)
	if err != nil {
		return err
	}
	ikm, salt := key[:64], key[64:]
	raw := kdf.Key(h, ikm, salt, kdfInfo, BlockSize*(c.rounds+1))
	rk := make([]uint32, 4*(c.rounds+1))
	for i := range rk {
		rk[i] = binary.LittleEndian.Uint32(raw[4*i:])
	}
	keys.Wipe(raw)
	if c.rk != nil {
		wipeWords(c.rk)
	}
	c.rk = rk
	c.encrypt = encryption
	c.ready = true
	return nil
}

// Transform dispatches one block on the configured direction.
func (c *Cipher) Transform(dst, src []byte) error {
	if !c.ready {
		return cryptoerr.New("shx.Transform", cryptoerr.ErrNotInitialized, "")
	}
	if c.encrypt {
		c.Encrypt(dst, src)
	} else {
		c.Decrypt(dst, src)
	}
	return nil
}

// Encrypt transforms one 16-byte block with the forward permutation. Both
// slices must hold at least BlockSize bytes; the schedule must be loaded.
func (c *Cipher) Encrypt(dst, src []byte) {
	r0 := binary.LittleEndian.Uint32(src[0:])
	r1 := binary.LittleEndian.Uint32(src[4:])
	r2 := binary.LittleEndian.Uint32(src[8:])
	r3 := binary.LittleEndian.Uint32(src[12:])

	R := c.rounds
	for i := 0; i < R-1; i++ {
		k := c.rk[4*i:]
		r0 ^= k[0]
		r1 ^= k[1]
		r2 ^= k[2]
		r3 ^= k[3]
		r0, r1, r2, r3 = sbox(i&7, r0, r1, r2, r3)
		r0, r1, r2, r3 = linear(r0, r1, r2, r3)
	}
	// Final round swaps the linear transformation for a second key mix.
	k := c.rk[4*(R-1):]
	r0 ^= k[0]
	r1 ^= k[1]
	r2 ^= k[2]
	r3 ^= k[3]
	r0, r1, r2, r3 = sbox((R-1)&7, r0, r1, r2, r3)
	k = c.rk[4*R:]
	r0 ^= k[0]
	r1 ^= k[1]
	r2 ^= k[2]
	r3 ^= k[3]

	binary.LittleEndian.PutUint32(dst[0:], r0)
	binary.LittleEndian.PutUint32(dst[4:], r1)
	binary.LittleEndian.PutUint32(dst[8:], r2)
	binary.LittleEndian.PutUint32(dst[12:], r3)
}

// Decrypt transforms one 16-byte block with the inverse permutation.
func (c *Cipher) Decrypt(dst, src []byte) {
	r0 := binary.LittleEndian.Uint32(src[0:])
	r1 := binary.LittleEndian.Uint32(src[4:])
	r2 := binary.LittleEndian.Uint32(src[8:])
	r3 := binary.LittleEndian.Uint32(src[12:])

	R := c.rounds
	k := c.rk[4*R:]
	r0 ^= k[0]
	r1 ^= k[1]
	r2 ^= k[2]
	r3 ^= k[3]
	r0, r1, r2, r3 = sboxInv((R-1)&7, r0, r1, r2, r3)
	k = c.rk[4*(R-1):]
	r0 ^= k[0]
	r1 ^= k[1]
	r2 ^= k[2]
	r3 ^= k[3]

	for i := R - 2; i >= 0; i-- {
		r0, r1, r2, r3 = linearInv(r0, r1, r2, r3)
		r0, r1, r2, r3 = sboxInv(i&7, r0, r1, r2, r3)
		k = c.rk[4*i:]
		r0 ^= k[0]
		r1 ^= k[1]
		r2 ^= k[2]
		r3 ^= k[3]
	}

	binary.LittleEndian.PutUint32(dst[0:], r0)
	binary.LittleEndian.PutUint32(dst[4:], r1)
	binary.LittleEndian.PutUint32(dst[8:], r2)
	binary.LittleEndian.PutUint32(dst[12:], r3)
}

// Destroy zeroizes the round-key schedule.
func (c *Cipher) Destroy() {
	if c.rk != nil {
		wipeWords(c.rk)
		c.rk = nil
	}
	c.ready = false
}

func wipeWords(w []uint32) {
	for i := range w {
		w[i] = 0
	}
}

// linear is the Serpent linear transformation over the four state words.
func linear(x0, x1, x2, x3 uint32) (uint32, uint32, uint32, uint32) {
	x0 = bits.RotateLeft32(x0, 13)
	x2 = bits.RotateLeft32(x2, 3)
	x1 ^= x0 ^ x2
	x3 ^= x2 ^ (x0 << 3)
	x1 = bits.RotateLeft32(x1, 1)
	x3 = bits.RotateLeft32(x3, 7)
	x0 ^= x1 ^ x3
	x2 ^= x3 ^ (x1 << 7)
	x0 = bits.RotateLeft32(x0, 5)
	x2 = bits.RotateLeft32(x2, 22)
	return x0, x1, x2, x3
}

func linearInv(x0, x1, x2, x3 uint32) (uint32, uint32, uint32, uint32) {
	x2 = bits.RotateLeft32(x2, -22)
	x0 = bits.RotateLeft32(x0, -5)
	x2 ^= x3 ^ (x1 << 7)
	x0 ^= x1 ^ x3
	x3 = bits.RotateLeft32(x3, -7)
	x1 = bits.RotateLeft32(x1, -1)
	x3 ^= x2 ^ (x0 << 3)
	x1 ^= x0 ^ x2
	x2 = bits.RotateLeft32(x2, -3)
	x0 = bits.RotateLeft32(x0, -13)
	return x0, x1, x2, x3
}
