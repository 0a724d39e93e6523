// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

// Package engines assembles a ready-to-use transformer from a cipher
// description: an SHX engine wrapped in the described mode, or a ChaCha or
// Salsa stream cipher keyed directly.
package engines

import (
	"github.com/keyparcel/keyparcel/chacha"
	"github.com/keyparcel/keyparcel/cryptoerr"
	"github.com/keyparcel/keyparcel/kdf"
	"github.com/keyparcel/keyparcel/keys"
	"github.com/keyparcel/keyparcel/mode"
	"github.com/keyparcel/keyparcel/shx"
	"github.com/keyparcel/keyparcel/suite"
)

// Transformer is the common surface of an initialized cipher: block modes
// and stream ciphers both process byte runs in place or across buffers.
type Transformer interface {
	Transform(dst, src []byte) error
	Destroy()
}

// shxStretchInfo binds short-key stretching to this construction.
var shxStretchInfo = []byte("KPL shx sub-key stretch routine!")

// New builds and initializes the transformer the description names. Sub-key
// sized SHX keys, shorter than the engine's extended-key minimum, are
// stretched through the KDF under the description's schedule digest before
// initialization; the expansion is deterministic, so both directions derive
// the same schedule.
func New(d *suite.Description, encryption bool, p *keys.Params) (Transformer, error) {
	switch d.EngineType {
	case suite.EngineSHX:
		engine, err := shx.New(int(d.RoundCount), d.KdfEngine)
		if err != nil {
			return nil, err
		}
		m, err := mode.New(d.CipherMode, engine)
		if err != nil {
			return nil, err
		}
		ep := p
		if len(p.Key()) < shx.MinKeySize {
			h, err := kdf.Digest(d.KdfEngine)
			if err != nil {
				return nil, err
			}
			long := kdf.Key(h, p.Key(), p.IV(), shxStretchInfo, shx.MinKeySize)
			ep = keys.NewParams(long, p.IV(), p.IKM())
			keys.Wipe(long)
			defer ep.Destroy()
		}
		if err := m.Initialize(encryption, ep); err != nil {
			return nil, err
		}
		return m, nil

	case suite.EngineChaCha:
		c, err := chacha.New(int(d.RoundCount))
		if err != nil {
			return nil, err
		}
		if err := c.Initialize(p); err != nil {
			return nil, err
		}
		return c, nil

	case suite.EngineSalsa:
		s, err := chacha.NewSalsa(int(d.RoundCount))
		if err != nil {
			return nil, err
		}
		if err := s.Initialize(p); err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, cryptoerr.New("engines.New", cryptoerr.ErrUnsupportedPrimitive,
		"engine tag %d", d.EngineType)
}

// IsBlockMode reports whether the description selects a padded block mode,
// one whose ciphertext length is rounded up to the block size.
func IsBlockMode(d *suite.Description) bool {
	if d.EngineType != suite.EngineSHX {
		return false
	}
	return d.CipherMode == suite.ModeCBC || d.CipherMode == suite.ModeCFB
}
