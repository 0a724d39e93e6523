// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

// Package keys holds the key-material containers of the library: cipher
// parameters, the authority record that governs a package, message headers,
// and the small single-use key envelopes.
package keys

import (
	"encoding/binary"

	"github.com/keyparcel/keyparcel/cryptoerr"
)

// Wipe overwrites b with zeros. Key buffers, IVs and scratch material must
// pass through here before they are released.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Params owns the key, IV and optional IKM buffers a cipher is initialized
// with. The struct owns its slices: constructors and Clone deep-copy, and
// Destroy zeroizes every buffer.
type Params struct {
	key []byte
	iv  []byte
	ikm []byte
}

// NewParams builds a Params from copies of the given buffers. Nil slices are
// permitted and serialize with zero length.
func NewParams(key, iv, ikm []byte) *Params {
	p := &Params{}
	if key != nil {
		p.key = append([]byte(nil), key...)
	}
	if iv != nil {
		p.iv = append([]byte(nil), iv...)
	}
	if ikm != nil {
		p.ikm = append([]byte(nil), ikm...)
	}
	return p
}

// Key returns the key buffer. The caller must not retain it past Destroy.
func (p *Params) Key() []byte { return p.key }

// IV returns the iv buffer, or nil.
func (p *Params) IV() []byte { return p.iv }

// IKM returns the input keying material buffer, or nil.
func (p *Params) IKM() []byte { return p.ikm }

// Clone returns a deep copy sharing no buffers with the original.
func (p *Params) Clone() *Params {
	return NewParams(p.key, p.iv, p.ikm)
}

// Destroy zeroizes and releases every buffer. The Params is empty afterward.
func (p *Params) Destroy() {
	Wipe(p.key)
	Wipe(p.iv)
	Wipe(p.ikm)
	p.key, p.iv, p.ikm = nil, nil, nil
}

// MarshalBinary encodes the three buffers as length-prefixed sequences in
// order key, iv, ikm. Absent buffers encode as a zero length.
func (p *Params) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, 12+len(p.key)+len(p.iv)+len(p.ikm))
	for _, s := range [][]byte{p.key, p.iv, p.ikm} {
		var l [4]byte
		binary.LittleEndian.PutUint32(l[:], uint32(len(s)))
		b = append(b, l[:]...)
		b = append(b, s...)
	}
	return b, nil
}

// UnmarshalBinary decodes the wire form produced by MarshalBinary. Lengths
// that run past the stream fail with StreamTooSmall.
func (p *Params) UnmarshalBinary(b []byte) error {
	const op = "keys.Params.UnmarshalBinary"
	fields := make([][]byte, 3)
	off := 0
	for i := range fields {
		if len(b)-off < 4 {
			return cryptoerr.New(op, cryptoerr.ErrStreamTooSmall, "missing length %d", i)
		}
		n := int(binary.LittleEndian.Uint32(b[off:]))
		off += 4
		if len(b)-off < n {
			return cryptoerr.New(op, cryptoerr.ErrStreamTooSmall,
				"field %d wants %d bytes, %d remain", i, n, len(b)-off)
		}
		if n > 0 {
			fields[i] = append([]byte(nil), b[off:off+n]...)
		}
		off += n
	}
	p.key, p.iv, p.ikm = fields[0], fields[1], fields[2]
	return nil
}

// MarshaledSize returns the size of the wire form.
func (p *Params) MarshaledSize() int {
	return 12 + len(p.key) + len(p.iv) + len(p.ikm)
}
