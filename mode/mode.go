// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

// Package mode wraps a block cipher engine in one of the four supported
// modes of operation: CBC, CFB, CTR (segmented integer counter) and OFB.
// CTR transforms and CBC/CFB decryption decompose across workers when the
// input is large enough; the parallel paths are byte-identical to their
// sequential counterparts, including the post-transform IV and counter
// state.
package mode

import (
	"github.com/keyparcel/keyparcel/cryptoerr"
	"github.com/keyparcel/keyparcel/internal/xpar"
	"github.com/keyparcel/keyparcel/keys"
	"github.com/keyparcel/keyparcel/suite"
)

// ParallelThreshold is the smallest input, in bytes, a transform will
// decompose across workers.
const ParallelThreshold = 1024

// Engine is the block cipher capability set a mode is polymorphic over.
// Encrypt and Decrypt must be safe for concurrent use once the schedule is
// loaded; the parallel paths rely on it.
type Engine interface {
	BlockSize() int
	Encrypt(dst, src []byte)
	Decrypt(dst, src []byte)
	Initialize(encryption bool, p *keys.Params) error
	IsInitialized() bool
	Destroy()
	Name() string
}

// Mode is the common contract of the four wrappers.
type Mode interface {
	Initialize(encryption bool, p *keys.Params) error
	Transform(dst, src []byte) error
	IsParallel() bool
	SetPolicy(p xpar.Policy)
	Name() string
	Destroy()
}

// New constructs the mode selected by tag around engine.
func New(tag suite.ModeType, e Engine) (Mode, error) {
	switch tag {
	case suite.ModeCBC:
		return NewCBC(e), nil
	case suite.ModeCFB:
		return NewCFB(e, e.BlockSize()), nil
	case suite.ModeCTR:
		return NewCTR(e), nil
	case suite.ModeOFB:
		return NewOFB(e), nil
	}
	return nil, cryptoerr.New("mode.New", cryptoerr.ErrUnsupportedPrimitive, "mode tag %d", tag)
}

// checkParams enforces the shared initialization contract: both key and iv
// present, iv sized for the mode.
func checkParams(op string, p *keys.Params, ivSizes ...int) error {
	if p == nil || p.Key() == nil || p.IV() == nil {
		return cryptoerr.New(op, cryptoerr.ErrInvalidArgument, "key and iv are required")
	}
	for _, n := range ivSizes {
		if len(p.IV()) == n {
			return nil
		}
	}
	return cryptoerr.New(op, cryptoerr.ErrInvalidIv, "%d bytes", len(p.IV()))
}

func xorBytes(dst, a, b []byte, n int) {
	for i := 0; i < n; i++ {
		dst[i] = a[i] ^ b[i]
	}
}
