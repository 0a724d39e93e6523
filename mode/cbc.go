// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package mode

import (
	"github.com/keyparcel/keyparcel/cryptoerr"
	"github.com/keyparcel/keyparcel/internal/xpar"
	"github.com/keyparcel/keyparcel/keys"
)

// CBC chains each plaintext block into the next encryption. Encryption is
// inherently sequential; decryption splits the ciphertext into chunks whose
// IVs are read directly from the preceding ciphertext block, so the parallel
// path reproduces the sequential output exactly.
type CBC struct {
	engine  Engine
	iv      []byte
	policy  xpar.Policy
	encrypt bool
	ready   bool
}

// NewCBC wraps engine in CBC mode with the default execution policy.
func NewCBC(e Engine) *CBC {
	return &CBC{engine: e, policy: xpar.Default()}
}

// Name returns the mode name.
func (m *CBC) Name() string { return "CBC" }

// IsParallel reports whether decryption may decompose across workers.
func (m *CBC) IsParallel() bool { return m.policy.Parallel }

// SetPolicy replaces the execution policy.
func (m *CBC) SetPolicy(p xpar.Policy) { m.policy = p }

// IV returns the current chaining vector.
func (m *CBC) IV() []byte { return m.iv }

// Initialize sets the direction, keys the engine and loads the IV. The IV
// length must equal the engine block size.
func (m *CBC) Initialize(encryption bool, p *keys.Params) error {
	const op = "mode.CBC.Initialize"
	if err := checkParams(op, p, m.engine.BlockSize()); err != nil {
		return err
	}
	if err := m.engine.Initialize(encryption, p); err != nil {
		return err
	}
	m.iv = append(m.iv[:0], p.IV()...)
	m.encrypt = encryption
	m.ready = true
	return nil
}

// Transform processes src, a multiple of the block size, into dst.
func (m *CBC) Transform(dst, src []byte) error {
	const op = "mode.CBC.Transform"
	if !m.ready {
		return cryptoerr.New(op, cryptoerr.ErrNotInitialized, "")
	}
	bs := m.engine.BlockSize()
	if len(src)%bs != 0 || len(dst) < len(src) {
		return cryptoerr.New(op, cryptoerr.ErrInvalidArgument,
			"input %d not a multiple of block size %d", len(src), bs)
	}
	if m.encrypt {
		m.encryptBlocks(dst, src)
		return nil
	}
	if len(src) == 0 {
		return nil
	}
	// The final ciphertext block becomes the next chaining vector; snapshot
	// it first so in-place decryption cannot clobber it.
	last := make([]byte, bs)
	copy(last, src[len(src)-bs:])
	if m.policy.Parallel && len(src) >= ParallelThreshold && m.policy.WorkerCount() > 1 {
		if err := m.decryptParallel(dst, src); err != nil {
			return err
		}
	} else {
		m.decryptBlocks(dst, src, m.iv)
	}
	copy(m.iv, last)
	keys.Wipe(last)
	return nil
}

func (m *CBC) encryptBlocks(dst, src []byte) {
	bs := m.engine.BlockSize()
	scratch := make([]byte, bs)
	for off := 0; off < len(src); off += bs {
		xorBytes(scratch, src[off:], m.iv, bs)
		m.engine.Encrypt(dst[off:], scratch)
		copy(m.iv, dst[off:off+bs])
	}
	keys.Wipe(scratch)
}

// decryptBlocks decrypts sequentially with an explicit starting vector,
// leaving m.iv untouched so the parallel path can reuse it per chunk. Each
// ciphertext block is copied aside before the output write, so dst and src
// may alias.
func (m *CBC) decryptBlocks(dst, src, iv []byte) {
	bs := m.engine.BlockSize()
	prev := make([]byte, bs)
	copy(prev, iv)
	next := make([]byte, bs)
	scratch := make([]byte, bs)
	for off := 0; off < len(src); off += bs {
		copy(next, src[off:off+bs])
		m.engine.Decrypt(scratch, next)
		xorBytes(dst[off:], scratch, prev, bs)
		prev, next = next, prev
	}
	keys.Wipe(scratch)
	keys.Wipe(prev)
	keys.Wipe(next)
}

// decryptParallel splits src into one block-aligned chunk per worker. Chunk
// w's IV is the ciphertext block preceding it; chunk 0 uses the class IV.
// Boundary blocks are copied before the fan-out, so workers may decrypt in
// place without racing each other's reads. The caller advances the class IV
// to the final ciphertext block, matching the sequential result.
func (m *CBC) decryptParallel(dst, src []byte) error {
	bs := m.engine.BlockSize()
	workers := m.policy.WorkerCount()
	blocks := len(src) / bs
	if workers > blocks {
		workers = blocks
	}
	chunk := (blocks / workers) * bs

	ivs := make([][]byte, workers)
	ivs[0] = append([]byte(nil), m.iv...)
	for w := 1; w < workers; w++ {
		ivs[w] = append([]byte(nil), src[w*chunk-bs:w*chunk]...)
	}

	err := xpar.Run(workers, func(w int) error {
		start := w * chunk
		end := start + chunk
		if w == workers-1 {
			end = len(src)
		}
		m.decryptBlocks(dst[start:end], src[start:end], ivs[w])
		keys.Wipe(ivs[w])
		return nil
	})
	return err
}

// Destroy zeroizes the chaining vector and the engine schedule.
func (m *CBC) Destroy() {
	keys.Wipe(m.iv)
	m.iv = nil
	m.engine.Destroy()
	m.ready = false
}
