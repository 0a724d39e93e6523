// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package volume

import (
	"io"

	"github.com/keyparcel/keyparcel/cryptoerr"
	"github.com/keyparcel/keyparcel/kdf"
	"github.com/keyparcel/keyparcel/keys"
	"github.com/keyparcel/keyparcel/suite"
)

// Factory creates and persists volume keys.
type Factory struct {
	stream io.ReadWriteSeeker
}

// NewFactory binds a factory to the volume-key backing stream.
func NewFactory(stream io.ReadWriteSeeker) *Factory {
	return &Factory{stream: stream}
}

// Create materializes a volume key with one sub-key slot per expected file
// and writes it to the stream.
func (f *Factory) Create(d *suite.Description, subkeys int, prng suite.PrngType, digest suite.DigestType) (*VolumeKey, error) {
	const op = "volume.Create"
	if subkeys < 1 {
		return nil, cryptoerr.New(op, cryptoerr.ErrInvalidArgument, "subkey count %d", subkeys)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	gen, err := kdf.NewGenerator(prng, digest)
	if err != nil {
		return nil, err
	}
	vk := &VolumeKey{
		Description: *d.Clone(),
		FileID:      make([]uint32, subkeys),
		State:       make([]byte, subkeys),
	}
	vk.Material = make([]byte, subkeys*vk.SubkeySize())
	if err := gen.Fill(vk.Material); err != nil {
		return nil, err
	}
	if err := f.Save(vk); err != nil {
		return nil, err
	}
	return vk, nil
}

// Load reads a volume key from the stream.
func (f *Factory) Load() (*VolumeKey, error) {
	const op = "volume.Load"
	if _, err := f.stream.Seek(0, io.SeekStart); err != nil {
		return nil, cryptoerr.New(op, cryptoerr.ErrIo, "%v", err)
	}
	raw, err := io.ReadAll(f.stream)
	if err != nil {
		return nil, cryptoerr.New(op, cryptoerr.ErrIo, "%v", err)
	}
	vk := &VolumeKey{}
	if err := vk.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	keys.Wipe(raw)
	return vk, nil
}

// Save writes the full volume key to the start of the stream.
func (f *Factory) Save(vk *VolumeKey) error {
	const op = "volume.Save"
	raw, err := vk.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := f.stream.Seek(0, io.SeekStart); err != nil {
		return cryptoerr.New(op, cryptoerr.ErrIo, "%v", err)
	}
	if _, err := f.stream.Write(raw); err != nil {
		return cryptoerr.New(op, cryptoerr.ErrIo, "%v", err)
	}
	keys.Wipe(raw)
	return nil
}

// SaveHeader rewrites only the header at the stream origin, leaving the
// keying material region untouched.
func (f *Factory) SaveHeader(vk *VolumeKey) error {
	const op = "volume.SaveHeader"
	hdr, err := vk.MarshalHeader()
	if err != nil {
		return err
	}
	if _, err := f.stream.Seek(0, io.SeekStart); err != nil {
		return cryptoerr.New(op, cryptoerr.ErrIo, "%v", err)
	}
	if _, err := f.stream.Write(hdr); err != nil {
		return cryptoerr.New(op, cryptoerr.ErrIo, "%v", err)
	}
	return nil
}
