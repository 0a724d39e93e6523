// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package keys

import (
	"bytes"
	"encoding/binary"

	"github.com/keyparcel/keyparcel/cryptoerr"
)

// AuthoritySize is the serialized size of an Authority in bytes.
const AuthoritySize = 144

// Package policy flags. Flags are additive bits in a 64-bit set.
const (
	PolicyMasterAuth       int64 = 1 << 0 // identity match on any field grants access
	PolicyPackageAuth      int64 = 1 << 1 // package body is encrypted at rest
	PolicyDomainRestrict   int64 = 1 << 2 // domain ids must match
	PolicyIdentityRestrict int64 = 1 << 3 // non-creators must match the target id
	PolicyVolatile         int64 = 1 << 4 // option flag carries an expiration time
	PolicySingleUse        int64 = 1 << 5 // sub-keys lock after one decryption
	PolicyPostOverwrite    int64 = 1 << 6 // sub-keys are erased in place on extract
	PolicyNoExport         int64 = 1 << 7 // origin ids must match
	PolicyNoNarrative      int64 = 1 << 8 // suppress descriptive output
)

// Sub-key policy flags.
const (
	SubkeyLocked  int64 = 1 << 0
	SubkeyErased  int64 = 1 << 1
	SubkeyExpired int64 = 1 << 2
)

// Authority is the identity and policy record that governs a package: who
// created it, who may open it, and which policy bits apply.
type Authority struct {
	DomainID   [32]byte // security domain of the issuer
	OriginID   [16]byte // identity of the creating node
	TargetID   [16]byte // identity of the intended operator
	PackageID  [32]byte // unique id of the governed package
	PackageTag [32]byte // free-form label
	KeyPolicy  int64    // policy flag set
	OptionFlag int64    // policy-dependent option, e.g. Volatile expiry ticks
}

// HasPolicy reports whether flag is set in the key policy.
func (a *Authority) HasPolicy(flag int64) bool { return a.KeyPolicy&flag != 0 }

// Validate checks the authority record. An origin id with fewer than 8
// non-zero bytes is considered unset.
func (a *Authority) Validate() error {
	nz := 0
	for _, b := range a.OriginID {
		if b != 0 {
			nz++
		}
	}
	if nz < 8 {
		return cryptoerr.New("keys.Authority.Validate", cryptoerr.ErrInvalidArgument,
			"origin id has %d non-zero bytes, need 8", nz)
	}
	return nil
}

// Equal reports field-wise equality.
func (a *Authority) Equal(o *Authority) bool {
	return a.DomainID == o.DomainID &&
		a.OriginID == o.OriginID &&
		a.TargetID == o.TargetID &&
		a.PackageID == o.PackageID &&
		a.PackageTag == o.PackageTag &&
		a.KeyPolicy == o.KeyPolicy &&
		a.OptionFlag == o.OptionFlag
}

// Clone returns a deep copy.
func (a *Authority) Clone() *Authority {
	c := *a
	return &c
}

// MarshalBinary encodes the authority into its 144-byte wire form.
func (a *Authority) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, AuthoritySize)
	b = append(b, a.DomainID[:]...)
	b = append(b, a.OriginID[:]...)
	b = append(b, a.TargetID[:]...)
	b = append(b, a.PackageID[:]...)
	b = append(b, a.PackageTag[:]...)
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(a.KeyPolicy))
	b = append(b, n[:]...)
	binary.LittleEndian.PutUint64(n[:], uint64(a.OptionFlag))
	b = append(b, n[:]...)
	return b, nil
}

// UnmarshalBinary decodes a 144-byte wire form.
func (a *Authority) UnmarshalBinary(b []byte) error {
	if len(b) < AuthoritySize {
		return cryptoerr.New("keys.Authority.UnmarshalBinary", cryptoerr.ErrStreamTooSmall,
			"%d of %d bytes", len(b), AuthoritySize)
	}
	r := bytes.NewReader(b[:AuthoritySize])
	for _, dst := range [][]byte{a.DomainID[:], a.OriginID[:], a.TargetID[:], a.PackageID[:], a.PackageTag[:]} {
		if _, err := r.Read(dst); err != nil {
			return cryptoerr.New("keys.Authority.UnmarshalBinary", cryptoerr.ErrIo, "%v", err)
		}
	}
	var n [8]byte
	r.Read(n[:])
	a.KeyPolicy = int64(binary.LittleEndian.Uint64(n[:]))
	r.Read(n[:])
	a.OptionFlag = int64(binary.LittleEndian.Uint64(n[:]))
	return nil
}
