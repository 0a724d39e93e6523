// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

// Package kdf implements the HMAC extract-and-expand key derivation used by
// the extended cipher engines, together with the registry of digests the
// suite tags select.
//
// The expansion follows the HKDF construction: a pseudorandom key is
// extracted from (Salt, IKM), then output blocks T(1), T(2), ... are
// produced as HMAC(PRK, T(i-1) || info || i) and concatenated until the
// requested length is reached.
package kdf

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/keyparcel/keyparcel/cryptoerr"
	"github.com/keyparcel/keyparcel/suite"
)

// Digest returns the hash constructor registered for the given tag.
func Digest(t suite.DigestType) (func() hash.Hash, error) {
	switch t {
	case suite.DigestSHA256:
		return sha256.New, nil
	case suite.DigestSHA512:
		return sha512.New, nil
	case suite.DigestSHA3_256:
		return sha3.New256, nil
	case suite.DigestSHA3_512:
		return sha3.New512, nil
	case suite.DigestKeccak512:
		return sha3.NewLegacyKeccak512, nil
	case suite.DigestBlake2b:
		return func() hash.Hash {
			h, err := blake2b.New512(nil)
			if err != nil {
				// blake2b.New512 only fails on oversized keys
				panic(err)
			}
			return h
		}, nil
	}
	return nil, cryptoerr.New("kdf.Digest", cryptoerr.ErrUnsupportedPrimitive, "digest tag %d", t)
}

// Extract computes PRK = HMAC(salt, ikm).
func Extract(h func() hash.Hash, salt, ikm []byte) []byte {
	mac := hmac.New(h, salt)
	mac.Write(ikm)
	return mac.Sum(nil)
}

// Expand derives n bytes of output keyed by prk. The info string binds the
// output to its consumer; an engine passes its fixed 32-byte constant here.
func Expand(h func() hash.Hash, prk, info []byte, n int) []byte {
	out := make([]byte, 0, n)
	mac := hmac.New(h, prk)
	var prev []byte
	for i := byte(1); len(out) < n; i++ {
		mac.Reset()
		mac.Write(prev)
		mac.Write(info)
		mac.Write([]byte{i})
		prev = mac.Sum(nil)
		out = append(out, prev...)
	}
	return out[:n]
}

// Key runs Extract then Expand in one step.
func Key(h func() hash.Hash, ikm, salt, info []byte, n int) []byte {
	return Expand(h, Extract(h, salt, ikm), info, n)
}
