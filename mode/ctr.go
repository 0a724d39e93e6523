// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package mode

import (
	"github.com/keyparcel/keyparcel/cryptoerr"
	"github.com/keyparcel/keyparcel/internal/xpar"
	"github.com/keyparcel/keyparcel/keys"
)

// CTR is the segmented integer counter mode. The counter is a big-endian
// byte vector the size of the engine block; every block of output advances
// it by one with carry across all bytes. Inputs of at least
// ParallelThreshold bytes decompose into per-worker chunks whose counters
// are offset by the chunk's block count, so parallel output is
// byte-identical to sequential output and the final counter matches.
type CTR struct {
	engine  Engine
	counter []byte
	policy  xpar.Policy
	ready   bool
}

// NewCTR wraps engine in counter mode with the default execution policy.
func NewCTR(e Engine) *CTR {
	return &CTR{engine: e, policy: xpar.Default()}
}

// Name returns the mode name.
func (m *CTR) Name() string { return "CTR" }

// IsParallel reports whether transforms may decompose across workers.
func (m *CTR) IsParallel() bool { return m.policy.Parallel }

// SetPolicy replaces the execution policy.
func (m *CTR) SetPolicy(p xpar.Policy) { m.policy = p }

// Counter returns the current counter vector.
func (m *CTR) Counter() []byte { return m.counter }

// Initialize keys the engine and loads the starting counter from the IV.
// Counter mode always drives the forward permutation; the encryption flag
// only mirrors the caller's intent. Accepted IV lengths are 16 and 32, and
// the IV must match the engine block size.
func (m *CTR) Initialize(encryption bool, p *keys.Params) error {
	const op = "mode.CTR.Initialize"
	if err := checkParams(op, p, 16, 32); err != nil {
		return err
	}
	if len(p.IV()) != m.engine.BlockSize() {
		return cryptoerr.New(op, cryptoerr.ErrInvalidIv,
			"%d bytes for a %d-byte block", len(p.IV()), m.engine.BlockSize())
	}
	if err := m.engine.Initialize(true, p); err != nil {
		return err
	}
	m.counter = append(m.counter[:0], p.IV()...)
	m.ready = true
	return nil
}

// Transform XORs len(src) bytes of keystream into dst. A trailing partial
// block still consumes one counter step, so the counter always ends at the
// start value plus ceil(len/blocksize).
func (m *CTR) Transform(dst, src []byte) error {
	const op = "mode.CTR.Transform"
	if !m.ready {
		return cryptoerr.New(op, cryptoerr.ErrNotInitialized, "")
	}
	if len(dst) < len(src) {
		return cryptoerr.New(op, cryptoerr.ErrInvalidArgument, "output shorter than input")
	}
	if len(src) == 0 {
		return nil
	}
	bs := m.engine.BlockSize()
	if m.policy.Parallel && len(src) >= ParallelThreshold && m.policy.WorkerCount() > 1 {
		return m.transformParallel(dst, src)
	}
	m.generate(dst, src, m.counter)
	addBE(m.counter, uint64((len(src)+bs-1)/bs))
	return nil
}

// generate produces keystream from a private counter copy and XORs it over
// src. The caller advances the class counter.
func (m *CTR) generate(dst, src, counter []byte) {
	bs := m.engine.BlockSize()
	ctr := make([]byte, bs)
	copy(ctr, counter)
	ks := make([]byte, bs)
	for off := 0; off < len(src); off += bs {
		m.engine.Encrypt(ks, ctr)
		n := len(src) - off
		if n > bs {
			n = bs
		}
		xorBytes(dst[off:], src[off:], ks, n)
		incrementBE(ctr)
	}
	keys.Wipe(ks)
	keys.Wipe(ctr)
}

// transformParallel partitions src into one block-aligned chunk per worker.
// Worker w's counter is the base plus its chunk offset in blocks; the last
// worker also takes the remainder and any trailing partial block.
func (m *CTR) transformParallel(dst, src []byte) error {
	bs := m.engine.BlockSize()
	workers := m.policy.WorkerCount()
	blocks := (len(src) + bs - 1) / bs
	if workers > blocks {
		workers = blocks
	}
	chunkBlocks := blocks / workers
	chunk := chunkBlocks * bs

	err := xpar.Run(workers, func(w int) error {
		start := w * chunk
		end := start + chunk
		if w == workers-1 {
			end = len(src)
		}
		ctr := make([]byte, bs)
		copy(ctr, m.counter)
		addBE(ctr, uint64(w)*uint64(chunkBlocks))
		m.generate(dst[start:end], src[start:end], ctr)
		keys.Wipe(ctr)
		return nil
	})
	if err != nil {
		return err
	}
	addBE(m.counter, uint64(blocks))
	return nil
}

// Destroy zeroizes the counter and the engine schedule.
func (m *CTR) Destroy() {
	keys.Wipe(m.counter)
	m.counter = nil
	m.engine.Destroy()
	m.ready = false
}

// incrementBE adds one to a big-endian byte-vector counter with carry
// across every byte.
func incrementBE(ctr []byte) {
	for i := len(ctr) - 1; i >= 0; i-- {
		ctr[i]++
		if ctr[i] != 0 {
			return
		}
	}
}

// addBE adds n to a big-endian byte-vector counter, carrying into the low
// bytes first.
func addBE(ctr []byte, n uint64) {
	for i := len(ctr) - 1; i >= 0 && n > 0; i-- {
		s := uint64(ctr[i]) + (n & 0xff)
		ctr[i] = byte(s)
		n = (n >> 8) + (s >> 8)
	}
}
