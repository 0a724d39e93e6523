// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

// Package suite describes a cipher configuration: the engine, its sizing,
// the wrapping mode, and the digests used for key expansion and
// authentication. A Description is a fixed 40-byte record and is embedded
// verbatim in the package, volume and cipher-key formats; the session-key
// format packs its fields into single bytes (two for the key size).
package suite

import (
	"strings"
)

// EngineType selects a block or stream cipher engine.
type EngineType uint32

// Engine tags
const (
	EngineNone   EngineType = 0
	EngineSHX    EngineType = 1
	EngineChaCha EngineType = 2
	EngineSalsa  EngineType = 3
)

// EngineByName parses a name and returns its tag.
func EngineByName(name string) (EngineType, bool) {
	switch strings.ToUpper(name) {
	case "SHX":
		return EngineSHX, true
	case "CHACHA":
		return EngineChaCha, true
	case "SALSA":
		return EngineSalsa, true
	}
	return EngineNone, false
}

func (e EngineType) String() string {
	switch e {
	case EngineSHX:
		return "SHX"
	case EngineChaCha:
		return "ChaCha"
	case EngineSalsa:
		return "Salsa"
	default:
		return "Unknown Engine"
	}
}

// ModeType selects the block-cipher mode wrapping an engine.
type ModeType uint32

// Mode tags
const (
	ModeCTR  ModeType = 0
	ModeCBC  ModeType = 1
	ModeCFB  ModeType = 2
	ModeOFB  ModeType = 3
	ModeNone ModeType = 4
)

// ModeByName parses a name and returns its tag.
func ModeByName(name string) (ModeType, bool) {
	switch strings.ToUpper(name) {
	case "CTR", "SIC":
		return ModeCTR, true
	case "CBC":
		return ModeCBC, true
	case "CFB":
		return ModeCFB, true
	case "OFB":
		return ModeOFB, true
	case "NONE":
		return ModeNone, true
	}
	return ModeNone, false
}

func (m ModeType) String() string {
	switch m {
	case ModeCTR:
		return "CTR"
	case ModeCBC:
		return "CBC"
	case ModeCFB:
		return "CFB"
	case ModeOFB:
		return "OFB"
	case ModeNone:
		return "None"
	default:
		return "Unknown Mode"
	}
}

// PaddingType selects the scheme applied to a final short block.
type PaddingType uint32

// Padding tags
const (
	PaddingNone    PaddingType = 0
	PaddingX923    PaddingType = 1
	PaddingPKCS7   PaddingType = 2
	PaddingZero    PaddingType = 3
	PaddingISO7816 PaddingType = 4
)

// PaddingByName parses a name and returns its tag.
func PaddingByName(name string) (PaddingType, bool) {
	switch strings.ToUpper(name) {
	case "X923":
		return PaddingX923, true
	case "PKCS7":
		return PaddingPKCS7, true
	case "ZERO", "ZEROS":
		return PaddingZero, true
	case "ISO7816":
		return PaddingISO7816, true
	case "NONE":
		return PaddingNone, true
	}
	return PaddingNone, false
}

func (p PaddingType) String() string {
	switch p {
	case PaddingX923:
		return "X923"
	case PaddingPKCS7:
		return "PKCS7"
	case PaddingZero:
		return "Zero"
	case PaddingISO7816:
		return "ISO7816"
	case PaddingNone:
		return "None"
	default:
		return "Unknown Padding"
	}
}

// DigestType names a hash used for key expansion or HMAC authentication.
type DigestType uint32

// Digest tags
const (
	DigestNone      DigestType = 0
	DigestSHA256    DigestType = 1
	DigestSHA512    DigestType = 2
	DigestSHA3_256  DigestType = 3
	DigestSHA3_512  DigestType = 4
	DigestKeccak512 DigestType = 5
	DigestBlake2b   DigestType = 6
)

// DigestByName parses a name and returns its tag.
func DigestByName(name string) (DigestType, bool) {
	switch strings.ToUpper(name) {
	case "SHA256", "SHA2-256":
		return DigestSHA256, true
	case "SHA512", "SHA2-512":
		return DigestSHA512, true
	case "SHA3-256":
		return DigestSHA3_256, true
	case "SHA3-512":
		return DigestSHA3_512, true
	case "KECCAK512", "KECCAK-512":
		return DigestKeccak512, true
	case "BLAKE2B", "BLAKE2B-512":
		return DigestBlake2b, true
	}
	return DigestNone, false
}

func (d DigestType) String() string {
	switch d {
	case DigestSHA256:
		return "SHA2-256"
	case DigestSHA512:
		return "SHA2-512"
	case DigestSHA3_256:
		return "SHA3-256"
	case DigestSHA3_512:
		return "SHA3-512"
	case DigestKeccak512:
		return "Keccak-512"
	case DigestBlake2b:
		return "BLAKE2b-512"
	default:
		return "Unknown Digest"
	}
}
