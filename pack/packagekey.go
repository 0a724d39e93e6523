// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

// Package pack implements the multi-subkey key package and its factory: a
// serialized pool of single-use sub-keys governed by an authority record,
// with authenticated extraction, cryptographic erasure and optional
// encryption at rest.
package pack

import (
	"encoding/binary"
	"time"

	"github.com/keyparcel/keyparcel/cryptoerr"
	"github.com/keyparcel/keyparcel/keys"
	"github.com/keyparcel/keyparcel/suite"
)

// MaxSubkeys bounds the sub-key pool of one package.
const MaxSubkeys = 100000

// fixedHeaderSize is the layout before the per-subkey arrays: policy(8),
// created_on(8), authority(144), description(40), extension key(16),
// subkey count(4).
const fixedHeaderSize = 8 + 8 + keys.AuthoritySize + suite.DescriptionSize + 16 + 4

// PackageKey is the in-memory form of a key package. The keying material is
// SubkeyCount contiguous sub-key sets of Description.SubkeySize() bytes.
type PackageKey struct {
	Policy       int64
	CreatedOn    int64 // 100-ns ticks
	Authority    keys.Authority
	Description  suite.Description
	ExtensionKey [16]byte
	SubkeyPolicy []int64
	SubkeyID     [][16]byte
	Material     []byte
}

// NewPackageKey assembles an unmaterialized package: ids and material are
// filled by Factory.Create.
func NewPackageKey(policy int64, auth *keys.Authority, desc *suite.Description, subkeys int) *PackageKey {
	return &PackageKey{
		Policy:       policy,
		CreatedOn:    nowTicks(),
		Authority:    *auth.Clone(),
		Description:  *desc.Clone(),
		SubkeyPolicy: make([]int64, subkeys),
		SubkeyID:     make([][16]byte, subkeys),
	}
}

func nowTicks() int64 { return time.Now().UnixNano() / 100 }

// SubkeyCount returns the number of sub-key slots.
func (p *PackageKey) SubkeyCount() int { return len(p.SubkeyPolicy) }

// SubkeySize returns the byte size of one sub-key set.
func (p *PackageKey) SubkeySize() int { return p.Description.SubkeySize() }

// HeaderSize returns the serialized size up to the keying material.
func (p *PackageKey) HeaderSize() int {
	return fixedHeaderSize + p.SubkeyCount()*(8+16)
}

// Size returns the full serialized size.
func (p *PackageKey) Size() int {
	return p.HeaderSize() + p.SubkeyCount()*p.SubkeySize()
}

// SubkeyOffset returns the byte offset of sub-key i within the serialized
// package.
func (p *PackageKey) SubkeyOffset(i int) int {
	return p.HeaderSize() + i*p.SubkeySize()
}

// HasPolicy reports whether flag is set in the package policy.
func (p *PackageKey) HasPolicy(flag int64) bool { return p.Policy&flag != 0 }

// IndexOf returns the slot index of the sub-key id, or -1.
func (p *PackageKey) IndexOf(id [16]byte) int {
	for i, v := range p.SubkeyID {
		if v == id {
			return i
		}
	}
	return -1
}

// Validate checks the package against its structural invariants.
func (p *PackageKey) Validate() error {
	const op = "pack.Validate"
	n := p.SubkeyCount()
	if n < 1 || n > MaxSubkeys {
		return cryptoerr.New(op, cryptoerr.ErrInvalidPackage, "subkey count %d", n)
	}
	if len(p.SubkeyID) != n {
		return cryptoerr.New(op, cryptoerr.ErrInvalidPackage,
			"%d ids for %d policies", len(p.SubkeyID), n)
	}
	if err := p.Description.Validate(); err != nil {
		return err
	}
	if p.SubkeySize() < 1 {
		return cryptoerr.New(op, cryptoerr.ErrInvalidPackage, "empty sub-key set")
	}
	if err := p.Authority.Validate(); err != nil {
		return err
	}
	seen := make(map[[16]byte]int, n)
	for i, id := range p.SubkeyID {
		if j, dup := seen[id]; dup {
			return cryptoerr.New(op, cryptoerr.ErrInvalidPackage,
				"sub-keys %d and %d share an id", j, i)
		}
		seen[id] = i
	}
	return nil
}

// Equal reports whether two packages are byte-equivalent.
func (p *PackageKey) Equal(o *PackageKey) bool {
	a, err := p.MarshalBinary()
	if err != nil {
		return false
	}
	b, err := o.MarshalBinary()
	if err != nil {
		return false
	}
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy sharing no buffers with the original.
func (p *PackageKey) Clone() *PackageKey {
	c := &PackageKey{
		Policy:       p.Policy,
		CreatedOn:    p.CreatedOn,
		Authority:    *p.Authority.Clone(),
		Description:  *p.Description.Clone(),
		ExtensionKey: p.ExtensionKey,
		SubkeyPolicy: append([]int64(nil), p.SubkeyPolicy...),
		SubkeyID:     append([][16]byte(nil), p.SubkeyID...),
		Material:     append([]byte(nil), p.Material...),
	}
	return c
}

// Destroy zeroizes the keying material and the extension key.
func (p *PackageKey) Destroy() {
	keys.Wipe(p.Material)
	p.Material = nil
	keys.Wipe(p.ExtensionKey[:])
}

// MarshalBinary encodes the package into its on-disk layout, material
// included, without the at-rest encryption.
func (p *PackageKey) MarshalBinary() ([]byte, error) {
	auth, err := p.Authority.MarshalBinary()
	if err != nil {
		return nil, err
	}
	desc, err := p.Description.MarshalBinary()
	if err != nil {
		return nil, err
	}
	b := make([]byte, 0, p.Size())
	var n8 [8]byte
	binary.LittleEndian.PutUint64(n8[:], uint64(p.Policy))
	b = append(b, n8[:]...)
	binary.LittleEndian.PutUint64(n8[:], uint64(p.CreatedOn))
	b = append(b, n8[:]...)
	b = append(b, auth...)
	b = append(b, desc...)
	b = append(b, p.ExtensionKey[:]...)
	var n4 [4]byte
	binary.LittleEndian.PutUint32(n4[:], uint32(p.SubkeyCount()))
	b = append(b, n4[:]...)
	for _, sp := range p.SubkeyPolicy {
		binary.LittleEndian.PutUint64(n8[:], uint64(sp))
		b = append(b, n8[:]...)
	}
	for i := range p.SubkeyID {
		b = append(b, p.SubkeyID[i][:]...)
	}
	b = append(b, p.Material...)
	return b, nil
}

// UnmarshalBinary decodes an on-disk package already stripped of the
// at-rest encryption.
func (p *PackageKey) UnmarshalBinary(b []byte) error {
	const op = "pack.UnmarshalBinary"
	if len(b) < fixedHeaderSize {
		return cryptoerr.New(op, cryptoerr.ErrStreamTooSmall, "%d of %d header bytes", len(b), fixedHeaderSize)
	}
	p.Policy = int64(binary.LittleEndian.Uint64(b[0:]))
	p.CreatedOn = int64(binary.LittleEndian.Uint64(b[8:]))
	off := 16
	if err := p.Authority.UnmarshalBinary(b[off:]); err != nil {
		return err
	}
	off += keys.AuthoritySize
	if err := p.Description.UnmarshalBinary(b[off:]); err != nil {
		return err
	}
	off += suite.DescriptionSize
	copy(p.ExtensionKey[:], b[off:])
	off += 16
	n := int(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	if n < 1 || n > MaxSubkeys {
		return cryptoerr.New(op, cryptoerr.ErrCorruptPackage, "subkey count %d", n)
	}
	need := off + n*(8+16) + n*p.Description.SubkeySize()
	if len(b) < need {
		return cryptoerr.New(op, cryptoerr.ErrStreamTooSmall, "%d of %d bytes", len(b), need)
	}
	p.SubkeyPolicy = make([]int64, n)
	for i := range p.SubkeyPolicy {
		p.SubkeyPolicy[i] = int64(binary.LittleEndian.Uint64(b[off:]))
		off += 8
	}
	p.SubkeyID = make([][16]byte, n)
	for i := range p.SubkeyID {
		copy(p.SubkeyID[i][:], b[off:])
		off += 16
	}
	p.Material = append([]byte(nil), b[off:off+n*p.Description.SubkeySize()]...)
	return nil
}
