// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package mode

import (
	"github.com/keyparcel/keyparcel/cryptoerr"
	"github.com/keyparcel/keyparcel/internal/xpar"
	"github.com/keyparcel/keyparcel/keys"
)

// CFB feeds ciphertext back through the cipher's forward permutation. The
// feedback register shifts by the feedback size f each step: the next
// register is the previous one shifted left f bytes with the fresh
// ciphertext segment appended. Decryption with full-block feedback
// parallelizes the same way CBC decryption does, since every register is
// read straight out of the preceding ciphertext.
type CFB struct {
	engine   Engine
	register []byte
	feedback int
	policy   xpar.Policy
	encrypt  bool
	ready    bool
}

// NewCFB wraps engine in CFB mode with feedback size f in bytes. A zero or
// out-of-range f selects the full block.
func NewCFB(e Engine, f int) *CFB {
	if f <= 0 || f > e.BlockSize() {
		f = e.BlockSize()
	}
	return &CFB{engine: e, feedback: f, policy: xpar.Default()}
}

// Name returns the mode name.
func (m *CFB) Name() string { return "CFB" }

// FeedbackSize returns the feedback segment size in bytes.
func (m *CFB) FeedbackSize() int { return m.feedback }

// IsParallel reports whether decryption may decompose across workers.
func (m *CFB) IsParallel() bool { return m.policy.Parallel }

// SetPolicy replaces the execution policy.
func (m *CFB) SetPolicy(p xpar.Policy) { m.policy = p }

// Initialize sets the direction, keys the engine and loads the feedback
// register from the IV. Both directions use the forward permutation.
func (m *CFB) Initialize(encryption bool, p *keys.Params) error {
	const op = "mode.CFB.Initialize"
	if err := checkParams(op, p, m.engine.BlockSize()); err != nil {
		return err
	}
	if err := m.engine.Initialize(true, p); err != nil {
		return err
	}
	m.register = append(m.register[:0], p.IV()...)
	m.encrypt = encryption
	m.ready = true
	return nil
}

// Transform processes src, a multiple of the feedback size, into dst.
func (m *CFB) Transform(dst, src []byte) error {
	const op = "mode.CFB.Transform"
	if !m.ready {
		return cryptoerr.New(op, cryptoerr.ErrNotInitialized, "")
	}
	if len(src)%m.feedback != 0 || len(dst) < len(src) {
		return cryptoerr.New(op, cryptoerr.ErrInvalidArgument,
			"input %d not a multiple of feedback size %d", len(src), m.feedback)
	}
	if m.encrypt {
		m.encryptSegments(dst, src)
		return nil
	}
	if len(src) == 0 {
		return nil
	}
	// Snapshot the trailing ciphertext before any in-place write; the
	// register ends holding the last block of ciphertext, shifted in
	// segment by segment when less than a block was processed.
	n := m.engine.BlockSize()
	if len(src) < n {
		n = len(src)
	}
	last := make([]byte, n)
	copy(last, src[len(src)-n:])
	if m.feedback == m.engine.BlockSize() &&
		m.policy.Parallel && len(src) >= ParallelThreshold && m.policy.WorkerCount() > 1 {
		if err := m.decryptParallel(dst, src); err != nil {
			return err
		}
	} else {
		m.decryptSegments(dst, src, m.register)
	}
	m.shiftIn(m.register, last)
	keys.Wipe(last)
	return nil
}

func (m *CFB) encryptSegments(dst, src []byte) {
	bs := m.engine.BlockSize()
	f := m.feedback
	ks := make([]byte, bs)
	for off := 0; off < len(src); off += f {
		m.engine.Encrypt(ks, m.register)
		xorBytes(dst[off:], src[off:], ks, f)
		m.shiftIn(m.register, dst[off:off+f])
	}
	keys.Wipe(ks)
}

// decryptSegments runs from an explicit register copy, leaving the class
// register for the caller to advance. Ciphertext segments are copied aside
// before the output write, so dst and src may alias.
func (m *CFB) decryptSegments(dst, src, register []byte) {
	bs := m.engine.BlockSize()
	f := m.feedback
	reg := make([]byte, bs)
	copy(reg, register)
	seg := make([]byte, f)
	ks := make([]byte, bs)
	for off := 0; off < len(src); off += f {
		copy(seg, src[off:off+f])
		m.engine.Encrypt(ks, reg)
		xorBytes(dst[off:], src[off:], ks, f)
		m.shiftIn(reg, seg)
	}
	keys.Wipe(ks)
	keys.Wipe(reg)
	keys.Wipe(seg)
}

// decryptParallel splits the ciphertext into block-aligned chunks; chunk
// w's register is the ciphertext block before it, chunk 0 uses the class
// register. Only valid with full-block feedback.
func (m *CFB) decryptParallel(dst, src []byte) error {
	bs := m.engine.BlockSize()
	workers := m.policy.WorkerCount()
	blocks := len(src) / bs
	if workers > blocks {
		workers = blocks
	}
	chunk := (blocks / workers) * bs

	regs := make([][]byte, workers)
	regs[0] = append([]byte(nil), m.register...)
	for w := 1; w < workers; w++ {
		regs[w] = append([]byte(nil), src[w*chunk-bs:w*chunk]...)
	}

	return xpar.Run(workers, func(w int) error {
		start := w * chunk
		end := start + chunk
		if w == workers-1 {
			end = len(src)
		}
		m.decryptSegments(dst[start:end], src[start:end], regs[w])
		keys.Wipe(regs[w])
		return nil
	})
}

// shiftIn advances the feedback register: drop f leading bytes, append seg.
func (m *CFB) shiftIn(reg, seg []byte) {
	f := len(seg)
	copy(reg, reg[f:])
	copy(reg[len(reg)-f:], seg)
}

// Destroy zeroizes the register and the engine schedule.
func (m *CFB) Destroy() {
	keys.Wipe(m.register)
	m.register = nil
	m.engine.Destroy()
	m.ready = false
}
