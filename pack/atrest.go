// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package pack

import (
	"golang.org/x/crypto/sha3"

	"github.com/keyparcel/keyparcel/kdf"
	"github.com/keyparcel/keyparcel/keys"
	"github.com/keyparcel/keyparcel/mode"
	"github.com/keyparcel/keyparcel/shx"
	"github.com/keyparcel/keyparcel/suite"
)

// atRestRounds is the SHX round count of the package encryption cipher.
const atRestRounds = 32

// atRestInfo binds the key-stretching expansion to the at-rest cipher.
var atRestInfo = []byte("KPL package encryption at rest v")

// atRestSalt assembles the derivation salt from the authority fields the
// policy selects, concatenated in the order package id, domain id, target
// id. Each field joins only when its policy flag is set.
func atRestSalt(policy int64, a *keys.Authority) []byte {
	salt := make([]byte, 0, 80)
	if policy&keys.PolicyPackageAuth != 0 {
		salt = append(salt, a.PackageID[:]...)
	}
	if policy&keys.PolicyDomainRestrict != 0 {
		salt = append(salt, a.DomainID[:]...)
	}
	if policy&keys.PolicyIdentityRestrict != 0 {
		salt = append(salt, a.TargetID[:]...)
	}
	return salt
}

// atRestCipher derives the package encryption cipher for the given policy
// and identity. A Keccak-512 hash of the salt yields 48 bytes split into a
// 32-byte key and 16-byte counter IV; the key is then stretched through the
// KDF to the SHX minimum before the 32-round schedule expands it.
func atRestCipher(policy int64, a *keys.Authority) (*mode.CTR, error) {
	salt := atRestSalt(policy, a)
	h := sha3.NewLegacyKeccak512()
	h.Write(salt)
	sum := h.Sum(nil)
	key32, iv := sum[:32], sum[32:48]

	longKey := kdf.Key(sha3.NewLegacyKeccak512, key32, salt, atRestInfo, shx.MinKeySize)
	defer keys.Wipe(longKey)
	params := keys.NewParams(longKey, iv, nil)
	defer params.Destroy()
	keys.Wipe(sum)

	engine, err := shx.New(atRestRounds, suite.DigestKeccak512)
	if err != nil {
		return nil, err
	}
	ctr := mode.NewCTR(engine)
	if err := ctr.Initialize(true, params); err != nil {
		return nil, err
	}
	return ctr, nil
}

// sealBody encrypts or decrypts the package body, everything after the
// 8-byte policy, in place. Counter mode makes the two directions the same
// transform.
func sealBody(policy int64, a *keys.Authority, body []byte) error {
	ctr, err := atRestCipher(policy, a)
	if err != nil {
		return err
	}
	defer ctr.Destroy()
	return ctr.Transform(body, body)
}
