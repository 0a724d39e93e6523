// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package suite

import "strings"

// PrngType names the pseudo-random source used when generating keying
// material. The generators themselves live in package kdf; this package
// records only the tag.
type PrngType uint32

// PRNG tags
const (
	PrngNone   PrngType = 0
	PrngSystem PrngType = 1 // operating system CSPRNG
	PrngHkdf   PrngType = 2 // HMAC-KDF expansion of a system seed
)

// PrngByName parses a name and returns its tag.
func PrngByName(name string) (PrngType, bool) {
	switch strings.ToUpper(name) {
	case "SYSTEM", "CSPRNG":
		return PrngSystem, true
	case "HKDF":
		return PrngHkdf, true
	}
	return PrngNone, false
}

func (p PrngType) String() string {
	switch p {
	case PrngSystem:
		return "System"
	case PrngHkdf:
		return "HKDF"
	default:
		return "Unknown PRNG"
	}
}
