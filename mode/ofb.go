// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package mode

import (
	"github.com/keyparcel/keyparcel/cryptoerr"
	"github.com/keyparcel/keyparcel/internal/xpar"
	"github.com/keyparcel/keyparcel/keys"
)

// OFB iterates the forward permutation over its own output to produce a
// keystream independent of the data. The chain cannot decompose, so OFB is
// always sequential; encryption and decryption are the same transform.
type OFB struct {
	engine Engine
	state  []byte
	ready  bool
}

// NewOFB wraps engine in output feedback mode.
func NewOFB(e Engine) *OFB {
	return &OFB{engine: e}
}

// Name returns the mode name.
func (m *OFB) Name() string { return "OFB" }

// IsParallel always reports false.
func (m *OFB) IsParallel() bool { return false }

// SetPolicy is a no-op; the output chain cannot decompose.
func (m *OFB) SetPolicy(xpar.Policy) {}

// Initialize keys the engine and seeds the feedback state from the IV.
func (m *OFB) Initialize(encryption bool, p *keys.Params) error {
	const op = "mode.OFB.Initialize"
	if err := checkParams(op, p, m.engine.BlockSize()); err != nil {
		return err
	}
	if err := m.engine.Initialize(true, p); err != nil {
		return err
	}
	m.state = append(m.state[:0], p.IV()...)
	m.ready = true
	return nil
}

// Transform XORs len(src) bytes of keystream into dst. A trailing partial
// block uses the leading bytes of the final keystream block.
func (m *OFB) Transform(dst, src []byte) error {
	const op = "mode.OFB.Transform"
	if !m.ready {
		return cryptoerr.New(op, cryptoerr.ErrNotInitialized, "")
	}
	if len(dst) < len(src) {
		return cryptoerr.New(op, cryptoerr.ErrInvalidArgument, "output shorter than input")
	}
	bs := m.engine.BlockSize()
	for off := 0; off < len(src); off += bs {
		m.engine.Encrypt(m.state, m.state)
		n := len(src) - off
		if n > bs {
			n = bs
		}
		xorBytes(dst[off:], src[off:], m.state, n)
	}
	return nil
}

// Destroy zeroizes the feedback state and the engine schedule.
func (m *OFB) Destroy() {
	keys.Wipe(m.state)
	m.state = nil
	m.engine.Destroy()
	m.ready = false
}
