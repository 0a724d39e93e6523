// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

// Package chacha implements the ChaCha and Salsa keystream generators with
// extended-key support. Both operate on a 16-word state, produce 64-byte
// keystream blocks, and XOR the keystream into the input; encryption and
// decryption are the same transform.
package chacha

import (
	"encoding/binary"
	"math/bits"

	"github.com/keyparcel/keyparcel/cryptoerr"
	"github.com/keyparcel/keyparcel/keys"
)

// StateSize is the core state size in 32-bit words.
const StateSize = 16

// BlockSize is the keystream granule in bytes.
const BlockSize = 64

// IVSize is the required nonce length in bytes.
const IVSize = 8

// DefaultRounds is used when the round count is left zero.
const DefaultRounds = 20

var sigma = [4]uint32{0x61707865, 0x3320646e, 0x79622d32, 0x6b206574} // "expand 32-byte k"
var tau = [4]uint32{0x61707865, 0x3120646e, 0x79622d36, 0x6b206574}   // "expand 16-byte k"

func validKeyLen(n int) bool { return n == 16 || n == 32 || n == 48 || n == 56 }

func validRounds(r int) bool { return r >= 8 && r <= 30 && r%2 == 0 }

// antiSymmetric checks the injected nonce region for degenerate patterns: no
// byte value may occur more than twice, and two occurrences of the same value
// must lie at least five positions apart.
func antiSymmetric(b []byte) bool {
	var count [256]int
	var last [256]int
	for i := range last {
		last[i] = -5
	}
	for i, v := range b {
		count[v]++
		if count[v] > 2 {
			return false
		}
		if count[v] == 2 && i-last[v] < 5 {
			return false
		}
		last[v] = i
	}
	return true
}

// Cipher is a ChaCha instance. The state is laid out as
// constants(4) || key(8) || counter(2) || nonce(2).
type Cipher struct {
	state  [StateSize]uint32
	block  [BlockSize]byte // buffered keystream
	avail  int             // unread bytes at the tail of block
	rounds int
	ready  bool
}

// New constructs an uninitialized ChaCha with the given round count. A zero
// round count selects DefaultRounds; valid counts are the even numbers from
// 8 through 30.
func New(rounds int) (*Cipher, error) {
	if rounds == 0 {
		rounds = DefaultRounds
	}
	if !validRounds(rounds) {
		return nil, cryptoerr.New("chacha.New", cryptoerr.ErrInvalidArgument, "round count %d", rounds)
	}
	return &Cipher{rounds: rounds}, nil
}

// Rounds returns the configured round count.
func (c *Cipher) Rounds() int { return c.rounds }

// Name returns the engine name.
func (c *Cipher) Name() string { return "ChaCha" }

// IsInitialized reports whether the state is keyed.
func (c *Cipher) IsInitialized() bool { return c.ready }

// Initialize keys the state. Keys of 16 or 32 bytes follow the public
// specification; 48- and 56-byte keys carry extra material that is folded
// into the nonce slots and screened by the anti-symmetry test. The counter
// always restarts at zero.
func (c *Cipher) Initialize(p *keys.Params) error {
	const op = "chacha.Initialize"
	if p == nil || p.Key() == nil {
		return cryptoerr.New(op, cryptoerr.ErrInvalidArgument, "nil key parameters")
	}
	key, iv := p.Key(), p.IV()
	if !validKeyLen(len(key)) {
		return cryptoerr.New(op, cryptoerr.ErrInvalidKeySize, "%d bytes", len(key))
	}
	if len(iv) != IVSize {
		return cryptoerr.New(op, cryptoerr.ErrInvalidIv, "%d bytes, want %d", len(iv), IVSize)
	}

	if len(key) == 16 {
		copy(c.state[:4], tau[:])
		for i := 0; i < 4; i++ {
			w := binary.LittleEndian.Uint32(key[4*i:])
			c.state[4+i] = w
			c.state[8+i] = w
		}
	} else {
		copy(c.state[:4], sigma[:])
		for i := 0; i < 8; i++ {
			c.state[4+i] = binary.LittleEndian.Uint32(key[4*i:])
		}
	}
	c.state[12], c.state[13] = 0, 0
	c.state[14] = binary.LittleEndian.Uint32(iv[0:])
	c.state[15] = binary.LittleEndian.Uint32(iv[4:])

	if len(key) > 32 {
		c.injectExtended(key[32:])
	}
	c.avail = 0
	c.ready = true
	return nil
}

// injectExtended folds key material beyond 32 bytes into the nonce words and
// reseeds the state when the resulting nonce region fails the anti-symmetry
// screen.
func (c *Cipher) injectExtended(extra []byte) {
	for i := 0; i+4 <= len(extra); i += 4 {
		c.state[14+(i/4)%2] ^= binary.LittleEndian.Uint32(extra[i:])
	}
	var nonce [8]byte
	binary.LittleEndian.PutUint32(nonce[0:], c.state[14])
	binary.LittleEndian.PutUint32(nonce[4:], c.state[15])
	if !antiSymmetric(nonce[:]) {
		var out [StateSize]uint32
		core(c.rounds, &c.state, &out)
		c.state[14] = out[14]
		c.state[15] = out[15]
	}
}

// Transform XORs keystream into src, writing len(src) bytes to dst. Partial
// blocks are buffered, so consecutive calls continue the keystream exactly.
func (c *Cipher) Transform(dst, src []byte) error {
	if !c.ready {
		return cryptoerr.New("chacha.Transform", cryptoerr.ErrNotInitialized, "")
	}
	for len(src) > 0 {
		if c.avail == 0 {
			var out [StateSize]uint32
			core(c.rounds, &c.state, &out)
			for i, w := range out {
				binary.LittleEndian.PutUint32(c.block[4*i:], w)
			}
			c.incrCounter()
			c.avail = BlockSize
		}
		ks := c.block[BlockSize-c.avail:]
		n := len(src)
		if n > len(ks) {
			n = len(ks)
		}
		for i := 0; i < n; i++ {
			dst[i] = src[i] ^ ks[i]
		}
		dst, src = dst[n:], src[n:]
		c.avail -= n
	}
	return nil
}

// Skip advances (or with a negative count retreats) the block counter
// without producing output. Buffered keystream is discarded.
func (c *Cipher) Skip(blocks int64) {
	c.addCounter(blocks)
	c.avail = 0
}

// Counter returns the current 64-bit block counter.
func (c *Cipher) Counter() uint64 {
	return uint64(c.state[12]) | uint64(c.state[13])<<32
}

// Destroy zeroizes the state.
func (c *Cipher) Destroy() {
	for i := range c.state {
		c.state[i] = 0
	}
	keys.Wipe(c.block[:])
	c.avail = 0
	c.ready = false
}

func (c *Cipher) incrCounter() {
	c.state[12]++
	if c.state[12] == 0 {
		c.state[13]++
	}
}

func (c *Cipher) addCounter(n int64) {
	v := uint64(c.state[12]) | uint64(c.state[13])<<32
	v += uint64(n)
	c.state[12] = uint32(v)
	c.state[13] = uint32(v >> 32)
}

// core runs the double-round schedule and adds the input state into the
// permuted words.
func core(rounds int, in, out *[StateSize]uint32) {
	x0, x1, x2, x3 := in[0], in[1], in[2], in[3]
	x4, x5, x6, x7 := in[4], in[5], in[6], in[7]
	x8, x9, x10, x11 := in[8], in[9], in[10], in[11]
	x12, x13, x14, x15 := in[12], in[13], in[14], in[15]

	for i := 0; i < rounds; i += 2 {
		// column round
		x0, x4, x8, x12 = quarter(x0, x4, x8, x12)
		x1, x5, x9, x13 = quarter(x1, x5, x9, x13)
		x2, x6, x10, x14 = quarter(x2, x6, x10, x14)
		x3, x7, x11, x15 = quarter(x3, x7, x11, x15)
		// diagonal round
		x0, x5, x10, x15 = quarter(x0, x5, x10, x15)
		x1, x6, x11, x12 = quarter(x1, x6, x11, x12)
		x2, x7, x8, x13 = quarter(x2, x7, x8, x13)
		x3, x4, x9, x14 = quarter(x3, x4, x9, x14)
	}

	out[0], out[1], out[2], out[3] = x0+in[0], x1+in[1], x2+in[2], x3+in[3]
	out[4], out[5], out[6], out[7] = x4+in[4], x5+in[5], x6+in[6], x7+in[7]
	out[8], out[9], out[10], out[11] = x8+in[8], x9+in[9], x10+in[10], x11+in[11]
	out[12], out[13], out[14], out[15] = x12+in[12], x13+in[13], x14+in[14], x15+in[15]
}

func quarter(a, b, c, d uint32) (uint32, uint32, uint32, uint32) {
	a += b
	d ^= a
	d = bits.RotateLeft32(d, 16)
	c += d
	b ^= c
	b = bits.RotateLeft32(b, 12)
	a += b
	d ^= a
	d = bits.RotateLeft32(d, 8)
	c += d
	b ^= c
	b = bits.RotateLeft32(b, 7)
	return a, b, c, d
}
