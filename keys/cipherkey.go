// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package keys

import (
	"github.com/keyparcel/keyparcel/cryptoerr"
	"github.com/keyparcel/keyparcel/suite"
)

// CipherKeyHeaderSize is the fixed prefix of a cipher-key file: the 40-byte
// description, a 16-byte key id and the 16-byte extension key.
const CipherKeyHeaderSize = suite.DescriptionSize + 32

// CipherKey is the simple single-key file: one cipher description, one key
// id, one extension key and the key material itself.
type CipherKey struct {
	Description  suite.Description
	KeyID        [16]byte
	ExtensionKey [16]byte
	Params       *Params
}

// Destroy zeroizes the key material and the extension key.
func (c *CipherKey) Destroy() {
	if c.Params != nil {
		c.Params.Destroy()
	}
	Wipe(c.ExtensionKey[:])
}

// MarshalBinary encodes description, key id, extension key and the
// length-prefixed key parameters.
func (c *CipherKey) MarshalBinary() ([]byte, error) {
	desc, err := c.Description.MarshalBinary()
	if err != nil {
		return nil, err
	}
	params, err := c.Params.MarshalBinary()
	if err != nil {
		return nil, err
	}
	b := make([]byte, 0, CipherKeyHeaderSize+len(params))
	b = append(b, desc...)
	b = append(b, c.KeyID[:]...)
	b = append(b, c.ExtensionKey[:]...)
	b = append(b, params...)
	return b, nil
}

// UnmarshalBinary decodes the wire form produced by MarshalBinary.
func (c *CipherKey) UnmarshalBinary(b []byte) error {
	const op = "keys.CipherKey.UnmarshalBinary"
	if len(b) < CipherKeyHeaderSize {
		return cryptoerr.New(op, cryptoerr.ErrStreamTooSmall, "%d of %d bytes", len(b), CipherKeyHeaderSize)
	}
	if err := c.Description.UnmarshalBinary(b); err != nil {
		return err
	}
	copy(c.KeyID[:], b[suite.DescriptionSize:])
	copy(c.ExtensionKey[:], b[suite.DescriptionSize+16:])
	c.Params = &Params{}
	return c.Params.UnmarshalBinary(b[CipherKeyHeaderSize:])
}
