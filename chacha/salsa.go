// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package chacha

import (
	"encoding/binary"
	"math/bits"

	"github.com/keyparcel/keyparcel/cryptoerr"
	"github.com/keyparcel/keyparcel/keys"
)

// Salsa is a Salsa20-family instance. It carries the same data as ChaCha in
// the rotated Bernstein layout: constants at words 0, 5, 10 and 15, key
// halves at 1-4 and 11-14, nonce at 6-7, counter at 8-9.
type Salsa struct {
	state  [StateSize]uint32
	block  [BlockSize]byte
	avail  int
	rounds int
	ready  bool
}

// NewSalsa constructs an uninitialized Salsa with the given round count.
func NewSalsa(rounds int) (*Salsa, error) {
	if rounds == 0 {
		rounds = DefaultRounds
	}
	if !validRounds(rounds) {
		return nil, cryptoerr.New("chacha.NewSalsa", cryptoerr.ErrInvalidArgument, "round count %d", rounds)
	}
	return &Salsa{rounds: rounds}, nil
}

// Rounds returns the configured round count.
func (s *Salsa) Rounds() int { return s.rounds }

// Name returns the engine name.
func (s *Salsa) Name() string { return "Salsa" }

// IsInitialized reports whether the state is keyed.
func (s *Salsa) IsInitialized() bool { return s.ready }

// Initialize keys the state; the key and IV rules match ChaCha.
func (s *Salsa) Initialize(p *keys.Params) error {
	const op = "chacha.Salsa.Initialize"
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

	var k [8]uint32
	if len(key) == 16 {
		s.state[0], s.state[5], s.state[10], s.state[15] = tau[0], tau[1], tau[2], tau[3]
		for i := 0; i < 4; i++ {
			k[i] = binary.LittleEndian.Uint32(key[4*i:])
			k[4+i] = k[i]
		}
	} else {
		s.state[0], s.state[5], s.state[10], s.state[15] = sigma[0], sigma[1], sigma[2], sigma[3]
		for i := 0; i < 8; i++ {
			k[i] = binary.LittleEndian.Uint32(key[4*i:])
		}
	}
	s.state[1], s.state[2], s.state[3], s.state[4] = k[0], k[1], k[2], k[3]
	s.state[11], s.state[12], s.state[13], s.state[14] = k[4], k[5], k[6], k[7]
	s.state[6] = binary.LittleEndian.Uint32(iv[0:])
	s.state[7] = binary.LittleEndian.Uint32(iv[4:])
	s.state[8], s.state[9] = 0, 0

	if len(key) > 32 {
		s.injectExtended(key[32:])
	}
	s.avail = 0
	s.ready = true
	return nil
}

func (s *Salsa) injectExtended(extra []byte) {
	for i := 0; i+4 <= len(extra); i += 4 {
		s.state[6+(i/4)%2] ^= binary.LittleEndian.Uint32(extra[i:])
	}
	var nonce [8]byte
	binary.LittleEndian.PutUint32(nonce[0:], s.state[6])
	binary.LittleEndian.PutUint32(nonce[4:], s.state[7])
	if !antiSymmetric(nonce[:]) {
		var out [StateSize]uint32
		salsaCore(s.rounds, &s.state, &out)
		s.state[6] = out[6]
		s.state[7] = out[7]
	}
}

// Transform XORs keystream into src, writing len(src) bytes to dst.
func (s *Salsa) Transform(dst, src []byte) error {
	if !s.ready {
		return cryptoerr.New("chacha.Salsa.Transform", cryptoerr.ErrNotInitialized, "")
	}
	for len(src) > 0 {
		if s.avail == 0 {
			var out [StateSize]uint32
			salsaCore(s.rounds, &s.state, &out)
			for i, w := range out {
				binary.LittleEndian.PutUint32(s.block[4*i:], w)
			}
			s.incrCounter()
			s.avail = BlockSize
		}
		ks := s.block[BlockSize-s.avail:]
		n := len(src)
		if n > len(ks) {
			n = len(ks)
		}
		for i := 0; i < n; i++ {
			dst[i] = src[i] ^ ks[i]
		}
		dst, src = dst[n:], src[n:]
		s.avail -= n
	}
	return nil
}

// Skip advances or retreats the block counter without producing output.
func (s *Salsa) Skip(blocks int64) {
	v := uint64(s.state[8]) | uint64(s.state[9])<<32
	v += uint64(blocks)
	s.state[8] = uint32(v)
	s.state[9] = uint32(v >> 32)
	s.avail = 0
}

// Counter returns the current 64-bit block counter.
func (s *Salsa) Counter() uint64 {
	return uint64(s.state[8]) | uint64(s.state[9])<<32
}

// Destroy zeroizes the state.
func (s *Salsa) Destroy() {
	for i := range s.state {
		s.state[i] = 0
	}
	keys.Wipe(s.block[:])
	s.avail = 0
	s.ready = false
}

func (s *Salsa) incrCounter() {
	s.state[8]++
	if s.state[8] == 0 {
		s.state[9]++
	}
}

// salsaCore runs the column/row double rounds and adds the input state into
// the permuted words.
func salsaCore(rounds int, in, out *[StateSize]uint32) {
	var x [StateSize]uint32
	x = *in

	for i := 0; i < rounds; i += 2 {
		// column round
		x[4] ^= bits.RotateLeft32(x[0]+x[12], 7)
		x[8] ^= bits.RotateLeft32(x[4]+x[0], 9)
		x[12] ^= bits.RotateLeft32(x[8]+x[4], 13)
		x[0] ^= bits.RotateLeft32(x[12]+x[8], 18)

		x[9] ^= bits.RotateLeft32(x[5]+x[1], 7)
		x[13] ^= bits.RotateLeft32(x[9]+x[5], 9)
		x[1] ^= bits.RotateLeft32(x[13]+x[9], 13)
		x[5] ^= bits.RotateLeft32(x[1]+x[13], 18)

		x[14] ^= bits.RotateLeft32(x[10]+x[6], 7)
		x[2] ^= bits.RotateLeft32(x[14]+x[10], 9)
		x[6] ^= bits.RotateLeft32(x[2]+x[14], 13)
		x[10] ^= bits.RotateLeft32(x[6]+x[2], 18)

		x[3] ^= bits.RotateLeft32(x[15]+x[11], 7)
		x[7] ^= bits.RotateLeft32(x[3]+x[15], 9)
		x[11] ^= bits.RotateLeft32(x[7]+x[3], 13)
		x[15] ^= bits.RotateLeft32(x[11]+x[7], 18)

		// row round
		x[1] ^= bits.RotateLeft32(x[0]+x[3], 7)
		x[2] ^= bits.RotateLeft32(x[1]+x[0], 9)
		x[3] ^= bits.RotateLeft32(x[2]+x[1], 13)
		x[0] ^= bits.RotateLeft32(x[3]+x[2], 18)

		x[6] ^= bits.RotateLeft32(x[5]+x[4], 7)
		x[7] ^= bits.RotateLeft32(x[6]+x[5], 9)
		x[4] ^= bits.RotateLeft32(x[7]+x[6], 13)
		x[5] ^= bits.RotateLeft32(x[4]+x[7], 18)

		x[11] ^= bits.RotateLeft32(x[10]+x[9], 7)
		x[8] ^= bits.RotateLeft32(x[11]+x[10], 9)
		x[9] ^= bits.RotateLeft32(x[8]+x[11], 13)
		x[10] ^= bits.RotateLeft32(x[9]+x[8], 18)

		x[12] ^= bits.RotateLeft32(x[15]+x[14], 7)
		x[13] ^= bits.RotateLeft32(x[12]+x[15], 9)
		x[14] ^= bits.RotateLeft32(x[13]+x[12], 13)
		x[15] ^= bits.RotateLeft32(x[14]+x[13], 18)
	}

	for i := range x {
		out[i] = x[i] + in[i]
	}
}
