// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package pack

import (
	"crypto/rand"
	"encoding/binary"
	"io"

	"github.com/google/uuid"

	"github.com/keyparcel/keyparcel/cryptoerr"
	"github.com/keyparcel/keyparcel/kdf"
	"github.com/keyparcel/keyparcel/keys"
	"github.com/keyparcel/keyparcel/suite"
)

// AccessScope is the outcome of package authentication.
type AccessScope int

// Access scopes, least to most privileged.
const (
	NoAccess AccessScope = iota
	Operator
	Creator
)

func (s AccessScope) String() string {
	switch s {
	case Operator:
		return "Operator"
	case Creator:
		return "Creator"
	default:
		return "NoAccess"
	}
}

// truncater is implemented by backing streams that can pre-grow, e.g.
// os.File. Create uses it to reserve the final size up front.
type truncater interface {
	Truncate(size int64) error
}

// Factory owns a package stream for its lifetime and serializes every
// read-modify-write against it. It is not safe for concurrent use.
type Factory struct {
	stream    io.ReadWriteSeeker
	local     keys.Authority
	pkg       *PackageKey
	scope     AccessScope
	isCreator bool
	lastError string
}

// NewFactory binds a factory to an empty stream for package creation. The
// local authority is the creating identity.
func NewFactory(stream io.ReadWriteSeeker, local *keys.Authority) *Factory {
	return &Factory{stream: stream, local: *local.Clone()}
}

// Open binds a factory to an existing package stream, reads it and runs
// authentication. The access scope is NoAccess when any satisfied policy
// check fails; the cause is available from LastError.
func Open(stream io.ReadWriteSeeker, local *keys.Authority) (*Factory, error) {
	f := NewFactory(stream, local)
	if err := f.load(); err != nil {
		return nil, err
	}
	f.authenticate()
	return f, nil
}

// AccessScope returns the authentication outcome.
func (f *Factory) AccessScope() AccessScope { return f.scope }

// LastError returns the human-readable cause of the last denied
// authentication, or the empty string.
func (f *Factory) LastError() string { return f.lastError }

// Package returns the loaded package, or nil.
func (f *Factory) Package() *PackageKey { return f.pkg }

// Destroy zeroizes the loaded package material.
func (f *Factory) Destroy() {
	if f.pkg != nil {
		f.pkg.Destroy()
	}
	f.scope = NoAccess
}

// Create materializes pkg: fresh extension key, one unique id per sub-key,
// and keying material drawn from the selected PRNG, then writes the package
// to the stream. When the package policy carries PackageAuth, everything
// after the 8-byte policy is encrypted at rest.
func (f *Factory) Create(pkg *PackageKey, prng suite.PrngType, digest suite.DigestType) error {
	const op = "pack.Create"
	n := pkg.SubkeyCount()
	if n < 1 || n > MaxSubkeys {
		return cryptoerr.New(op, cryptoerr.ErrInvalidPackage, "subkey count %d", n)
	}
	if err := pkg.Description.Validate(); err != nil {
		return err
	}
	if pkg.SubkeySize() < 1 {
		return cryptoerr.New(op, cryptoerr.ErrInvalidPackage, "empty sub-key set")
	}
	if err := pkg.Authority.Validate(); err != nil {
		return err
	}

	gen, err := kdf.NewGenerator(prng, digest)
	if err != nil {
		return err
	}
	ext := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, ext); err != nil {
		return cryptoerr.New(op, cryptoerr.ErrIo, "%v", err)
	}
	copy(pkg.ExtensionKey[:], ext)
	keys.Wipe(ext)
	for i := range pkg.SubkeyID {
		pkg.SubkeyID[i] = [16]byte(uuid.New())
	}
	pkg.Material = make([]byte, n*pkg.SubkeySize())
	if err := gen.Fill(pkg.Material); err != nil {
		return err
	}
	if err := pkg.Validate(); err != nil {
		return err
	}

	f.pkg = pkg
	f.scope = Creator
	f.isCreator = true
	return f.save()
}

// load reads the package from the stream, transparently decrypting the body
// when the policy's PackageAuth bit is set.
func (f *Factory) load() error {
	const op = "pack.load"
	if _, err := f.stream.Seek(0, io.SeekStart); err != nil {
		return cryptoerr.New(op, cryptoerr.ErrIo, "%v", err)
	}
	raw, err := io.ReadAll(f.stream)
	if err != nil {
		return cryptoerr.New(op, cryptoerr.ErrIo, "%v", err)
	}
	if len(raw) < fixedHeaderSize {
		return cryptoerr.New(op, cryptoerr.ErrStreamTooSmall, "%d bytes", len(raw))
	}
	policy := int64(binary.LittleEndian.Uint64(raw[:8]))
	if policy&keys.PolicyPackageAuth != 0 {
		if err := sealBody(policy, &f.local, raw[8:]); err != nil {
			return err
		}
	}
	pkg := &PackageKey{}
	if err := pkg.UnmarshalBinary(raw); err != nil {
		return err
	}
	f.pkg = pkg
	return nil
}

// save writes the package back to the start of the stream, pre-growing the
// stream to the final size when the backend supports it.
func (f *Factory) save() error {
	const op = "pack.save"
	raw, err := f.pkg.MarshalBinary()
	if err != nil {
		return err
	}
	if f.pkg.HasPolicy(keys.PolicyPackageAuth) {
		if err := sealBody(f.pkg.Policy, &f.pkg.Authority, raw[8:]); err != nil {
			return err
		}
	}
	if t, ok := f.stream.(truncater); ok {
		if err := t.Truncate(int64(len(raw))); err != nil {
			return cryptoerr.New(op, cryptoerr.ErrIo, "%v", err)
		}
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

// authenticate evaluates the package policy against the local identity and
// sets the access scope. MasterAuth shortcuts the checks when any identity
// field matches; otherwise every policy bit that is set must pass.
func (f *Factory) authenticate() {
	pkg := &f.pkg.Authority
	local := &f.local
	f.isCreator = local.OriginID == pkg.OriginID

	if f.pkg.HasPolicy(keys.PolicyMasterAuth) {
		if local.OriginID == pkg.OriginID ||
			local.DomainID == pkg.DomainID ||
			local.PackageID == pkg.PackageID ||
			local.TargetID == pkg.TargetID {
			f.grant()
			return
		}
	}
	if f.pkg.HasPolicy(keys.PolicyIdentityRestrict) && !f.isCreator &&
		local.TargetID != pkg.TargetID {
		f.deny("target id does not match the package authority")
		return
	}
	if f.pkg.HasPolicy(keys.PolicyDomainRestrict) && local.DomainID != pkg.DomainID {
		f.deny("domain id does not match the package authority")
		return
	}
	if f.pkg.HasPolicy(keys.PolicyPackageAuth) && local.PackageID != pkg.PackageID {
		f.deny("package id does not match the package authority")
		return
	}
	if f.pkg.HasPolicy(keys.PolicyVolatile) &&
		pkg.OptionFlag != 0 && pkg.OptionFlag < nowTicks() {
		f.deny("the package has expired")
		return
	}
	if f.pkg.HasPolicy(keys.PolicyNoExport) && local.OriginID != pkg.OriginID {
		f.deny("origin id does not match the package authority")
		return
	}
	f.grant()
}

func (f *Factory) grant() {
	if f.isCreator {
		f.scope = Creator
	} else {
		f.scope = Operator
	}
	f.lastError = ""
}

func (f *Factory) deny(reason string) {
	f.scope = NoAccess
	f.lastError = reason
}

// NextKey returns the cipher description, key parameters, extension key and
// id of the first unexpired sub-key, marks it expired and persists the
// package. Creator scope is required.
func (f *Factory) NextKey() (*suite.Description, *keys.Params, [16]byte, [16]byte, error) {
	const op = "pack.NextKey"
	var none [16]byte
	if f.pkg == nil {
		return nil, nil, none, none, cryptoerr.New(op, cryptoerr.ErrNotInitialized, "no package loaded")
	}
	if f.scope != Creator {
		return nil, nil, none, none, cryptoerr.New(op, cryptoerr.ErrInsufficientPermissions,
			"scope %s", f.scope)
	}
	idx := -1
	for i, sp := range f.pkg.SubkeyPolicy {
		if sp&keys.SubkeyExpired == 0 {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil, none, none, cryptoerr.New(op, cryptoerr.ErrAlreadyExpired,
			"all %d sub-keys consumed", f.pkg.SubkeyCount())
	}
	params := f.subkeyParams(idx)
	f.pkg.SubkeyPolicy[idx] |= keys.SubkeyExpired
	if err := f.save(); err != nil {
		params.Destroy()
		return nil, nil, none, none, err
	}
	return f.pkg.Description.Clone(), params, f.pkg.ExtensionKey, f.pkg.SubkeyID[idx], nil
}

// Extract returns the material of the sub-key with the given id. Operator
// scope suffices. Post-extract handling follows the package policy:
// PostOverwrite erases the slot in place with four passes, SingleUse locks
// it; either way the package is persisted before the material is returned.
func (f *Factory) Extract(keyID [16]byte) (*suite.Description, *keys.Params, [16]byte, error) {
	const op = "pack.Extract"
	var none [16]byte
	if f.pkg == nil {
		return nil, nil, none, cryptoerr.New(op, cryptoerr.ErrNotInitialized, "no package loaded")
	}
	if f.scope == NoAccess {
		return nil, nil, none, cryptoerr.New(op, cryptoerr.ErrAccessDenied, "%s", f.lastError)
	}
	idx := f.pkg.IndexOf(keyID)
	if idx < 0 {
		return nil, nil, none, cryptoerr.New(op, cryptoerr.ErrInvalidPackage,
			"sub-key id not present")
	}
	sp := f.pkg.SubkeyPolicy[idx]
	if sp&keys.SubkeyErased != 0 {
		return nil, nil, none, cryptoerr.New(op, cryptoerr.ErrSubkeyErased, "sub-key %d", idx)
	}
	if sp&keys.SubkeyLocked != 0 {
		return nil, nil, none, cryptoerr.New(op, cryptoerr.ErrSubkeyLocked, "sub-key %d", idx)
	}
	params := f.subkeyParams(idx)

	changed := false
	switch {
	case f.pkg.HasPolicy(keys.PolicyPostOverwrite):
		if err := f.eraseSubkey(idx); err != nil {
			params.Destroy()
			return nil, nil, none, err
		}
		f.pkg.SubkeyPolicy[idx] |= keys.SubkeyErased
		changed = true
	case f.pkg.HasPolicy(keys.PolicySingleUse):
		f.pkg.SubkeyPolicy[idx] |= keys.SubkeyLocked
		changed = true
	}
	if changed {
		if err := f.save(); err != nil {
			params.Destroy()
			return nil, nil, none, err
		}
	}
	return f.pkg.Description.Clone(), params, f.pkg.ExtensionKey, nil
}

// Erase destroys the sub-key with the given id without extracting it: the
// slot is overwritten in place with the four-pass pattern and its policy set
// to Erased, regardless of the package's PostOverwrite bit. Creator scope is
// required; erasure is irreversible. Locked sub-keys may still be erased.
func (f *Factory) Erase(keyID [16]byte) error {
	const op = "pack.Erase"
	if f.pkg == nil {
		return cryptoerr.New(op, cryptoerr.ErrNotInitialized, "no package loaded")
	}
	if f.scope != Creator {
		return cryptoerr.New(op, cryptoerr.ErrInsufficientPermissions, "scope %s", f.scope)
	}
	idx := f.pkg.IndexOf(keyID)
	if idx < 0 {
		return cryptoerr.New(op, cryptoerr.ErrInvalidPackage, "sub-key id not present")
	}
	if f.pkg.SubkeyPolicy[idx]&keys.SubkeyErased != 0 {
		return cryptoerr.New(op, cryptoerr.ErrSubkeyErased, "sub-key %d", idx)
	}
	if err := f.eraseSubkey(idx); err != nil {
		return err
	}
	f.pkg.SubkeyPolicy[idx] |= keys.SubkeyErased
	return f.save()
}

// subkeyParams copies slot idx out of the keying material as key, iv and
// MAC-key parameters.
func (f *Factory) subkeyParams(idx int) *keys.Params {
	d := &f.pkg.Description
	sz := f.pkg.SubkeySize()
	set := f.pkg.Material[idx*sz : (idx+1)*sz]
	key := set[:d.KeySize]
	iv := set[d.KeySize : d.KeySize+d.IvSize]
	var mac []byte
	if d.MacSize > 0 {
		mac = set[d.KeySize+d.IvSize:]
	}
	return keys.NewParams(key, iv, mac)
}

// eraseSubkey overwrites slot idx with four passes: random, the same random
// bytes reversed, all ones, then all zeros. Each pass is flushed to the
// stream at the slot's file offset so the erasure lands on disk even when a
// later save fails.
func (f *Factory) eraseSubkey(idx int) error {
	const op = "pack.eraseSubkey"
	sz := f.pkg.SubkeySize()
	slot := f.pkg.Material[idx*sz : (idx+1)*sz]
	offset := int64(f.pkg.SubkeyOffset(idx))

	random := make([]byte, sz)
	if _, err := io.ReadFull(rand.Reader, random); err != nil {
		return cryptoerr.New(op, cryptoerr.ErrIo, "%v", err)
	}
	reversed := make([]byte, sz)
	for i := range random {
		reversed[i] = random[sz-1-i]
	}
	ones := make([]byte, sz)
	for i := range ones {
		ones[i] = 0xff
	}
	zeros := make([]byte, sz)

	for _, pass := range [][]byte{random, reversed, ones, zeros} {
		copy(slot, pass)
		if _, err := f.stream.Seek(offset, io.SeekStart); err != nil {
			return cryptoerr.New(op, cryptoerr.ErrIo, "%v", err)
		}
		if _, err := f.stream.Write(pass); err != nil {
			return cryptoerr.New(op, cryptoerr.ErrIo, "%v", err)
		}
	}
	keys.Wipe(random)
	keys.Wipe(reversed)
	return nil
}
