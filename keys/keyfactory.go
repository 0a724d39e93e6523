// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package keys

import (
	"github.com/google/uuid"

	"github.com/keyparcel/keyparcel/kdf"
	"github.com/keyparcel/keyparcel/suite"
)

// Factory generates the simple key envelopes: CipherKey and SessionKey
// files whose material comes from the selected PRNG.
type Factory struct {
	gen *kdf.Generator
}

// NewFactory builds a factory drawing material from the given PRNG and
// digest tags.
func NewFactory(prng suite.PrngType, digest suite.DigestType) (*Factory, error) {
	gen, err := kdf.NewGenerator(prng, digest)
	if err != nil {
		return nil, err
	}
	return &Factory{gen: gen}, nil
}

// CreateCipherKey generates a CipherKey for the description: fresh key id,
// extension key, and key material sized by the description.
func (f *Factory) CreateCipherKey(d *suite.Description) (*CipherKey, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	material := make([]byte, d.KeySize+d.IvSize)
	if err := f.gen.Fill(material); err != nil {
		return nil, err
	}
	defer Wipe(material)

	ck := &CipherKey{Description: *d.Clone()}
	ck.KeyID = [16]byte(uuid.New())
	extKey := make([]byte, 16)
	if err := f.gen.Fill(extKey); err != nil {
		return nil, err
	}
	copy(ck.ExtensionKey[:], extKey)
	Wipe(extKey)
	ck.Params = NewParams(material[:d.KeySize], material[d.KeySize:], nil)
	return ck, nil
}

// CreateSessionKey generates a SessionKey for the description.
func (f *Factory) CreateSessionKey(d *suite.Description) (*SessionKey, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	material := make([]byte, d.KeySize+d.IvSize)
	if err := f.gen.Fill(material); err != nil {
		return nil, err
	}
	defer Wipe(material)
	p := NewParams(material[:d.KeySize], material[d.KeySize:], nil)
	defer p.Destroy()
	return NewSessionKey(d, p), nil
}
