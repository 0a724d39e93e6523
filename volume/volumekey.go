// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

// Package volume implements per-file keying for bulk directory encryption:
// a VolumeKey binds one sub-key to each file through a 32-bit path hash, and
// the volume cipher transforms a given list of files, each under its own
// sub-key.
package volume

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/keyparcel/keyparcel/cryptoerr"
	"github.com/keyparcel/keyparcel/keys"
	"github.com/keyparcel/keyparcel/suite"
)

// Per-file states.
const (
	StateUnused    byte = 0
	StateEncrypted byte = 1
	StateDecrypted byte = 2
)

// VolumeKey holds one sub-key per file. Serialized layout:
// description(40) || subkey_count(i32) || file_id[i32]xN || state[u8]xN ||
// keying material.
type VolumeKey struct {
	Description suite.Description
	FileID      []uint32
	State       []byte
	Material    []byte
}

// FileHash maps a file path to its 32-bit volume id.
func FileHash(path string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(path))
	return h.Sum32()
}

// SubkeyCount returns the number of per-file slots.
func (v *VolumeKey) SubkeyCount() int { return len(v.State) }

// SubkeySize returns the byte size of one sub-key set.
func (v *VolumeKey) SubkeySize() int { return v.Description.SubkeySize() }

// HeaderSize returns the serialized size up to the keying material.
func (v *VolumeKey) HeaderSize() int {
	return suite.DescriptionSize + 4 + v.SubkeyCount()*5
}

// IndexOf returns the slot bound to the file id, or -1.
func (v *VolumeKey) IndexOf(fileID uint32) int {
	for i, id := range v.FileID {
		if id == fileID && v.State[i] != StateUnused {
			return i
		}
	}
	return -1
}

// NextUnused returns the first unbound slot, or -1.
func (v *VolumeKey) NextUnused() int {
	for i, s := range v.State {
		if s == StateUnused {
			return i
		}
	}
	return -1
}

// UnusedCount returns the number of unbound slots.
func (v *VolumeKey) UnusedCount() int {
	n := 0
	for _, s := range v.State {
		if s == StateUnused {
			n++
		}
	}
	return n
}

// SubkeyParams copies slot i out of the keying material.
func (v *VolumeKey) SubkeyParams(i int) *keys.Params {
	d := &v.Description
	sz := v.SubkeySize()
	set := v.Material[i*sz : (i+1)*sz]
	var mac []byte
	if d.MacSize > 0 {
		mac = set[d.KeySize+d.IvSize:]
	}
	return keys.NewParams(set[:d.KeySize], set[d.KeySize:d.KeySize+d.IvSize], mac)
}

// Destroy zeroizes the keying material.
func (v *VolumeKey) Destroy() {
	keys.Wipe(v.Material)
	v.Material = nil
}

// MarshalHeader encodes the header portion only: description, count, file
// ids and states.
func (v *VolumeKey) MarshalHeader() ([]byte, error) {
	desc, err := v.Description.MarshalBinary()
	if err != nil {
		return nil, err
	}
	b := make([]byte, 0, v.HeaderSize())
	b = append(b, desc...)
	var n4 [4]byte
	binary.LittleEndian.PutUint32(n4[:], uint32(v.SubkeyCount()))
	b = append(b, n4[:]...)
	for _, id := range v.FileID {
		binary.LittleEndian.PutUint32(n4[:], id)
		b = append(b, n4[:]...)
	}
	b = append(b, v.State...)
	return b, nil
}

// MarshalBinary encodes the full volume key, material included.
func (v *VolumeKey) MarshalBinary() ([]byte, error) {
	hdr, err := v.MarshalHeader()
	if err != nil {
		return nil, err
	}
	return append(hdr, v.Material...), nil
}

// UnmarshalBinary decodes the wire form produced by MarshalBinary.
func (v *VolumeKey) UnmarshalBinary(b []byte) error {
	const op = "volume.UnmarshalBinary"
	if len(b) < suite.DescriptionSize+4 {
		return cryptoerr.New(op, cryptoerr.ErrStreamTooSmall, "%d header bytes", len(b))
	}
	if err := v.Description.UnmarshalBinary(b); err != nil {
		return err
	}
	off := suite.DescriptionSize
	n := int(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	if n < 1 {
		return cryptoerr.New(op, cryptoerr.ErrCorruptPackage, "subkey count %d", n)
	}
	need := off + n*5 + n*v.Description.SubkeySize()
	if len(b) < need {
		return cryptoerr.New(op, cryptoerr.ErrStreamTooSmall, "%d of %d bytes", len(b), need)
	}
	v.FileID = make([]uint32, n)
	for i := range v.FileID {
		v.FileID[i] = binary.LittleEndian.Uint32(b[off:])
		off += 4
	}
	v.State = append([]byte(nil), b[off:off+n]...)
	off += n
	v.Material = append([]byte(nil), b[off:off+n*v.Description.SubkeySize()]...)
	return nil
}
