// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package kdf

import (
	"crypto/rand"
	"hash"
	"io"

	"github.com/keyparcel/keyparcel/cryptoerr"
	"github.com/keyparcel/keyparcel/suite"
)

// generatorInfo binds Generator expansion output to this consumer.
var generatorInfo = []byte("KPL keying material generator v1")

// Generator fills buffers with keying material. With the System tag, bytes
// come straight from the operating system CSPRNG. With the Hkdf tag, a fresh
// 64-byte seed is drawn per Fill and expanded through the KDF under the
// selected digest.
type Generator struct {
	prng   suite.PrngType
	digest func() hash.Hash
	source io.Reader
}

// NewGenerator builds a generator for the given PRNG and digest tags.
func NewGenerator(prng suite.PrngType, digest suite.DigestType) (*Generator, error) {
	const op = "kdf.NewGenerator"
	switch prng {
	case suite.PrngSystem:
		return &Generator{prng: prng, source: rand.Reader}, nil
	case suite.PrngHkdf:
		h, err := Digest(digest)
		if err != nil {
			return nil, err
		}
		return &Generator{prng: prng, digest: h, source: rand.Reader}, nil
	}
	return nil, cryptoerr.New(op, cryptoerr.ErrUnsupportedPrimitive, "prng tag %d", prng)
}

// Fill overwrites b with fresh keying material.
func (g *Generator) Fill(b []byte) error {
	const op = "kdf.Fill"
	switch g.prng {
	case suite.PrngSystem:
		if _, err := io.ReadFull(g.source, b); err != nil {
			return cryptoerr.New(op, cryptoerr.ErrIo, "%v", err)
		}
		return nil
	case suite.PrngHkdf:
		seed := make([]byte, 64)
		if _, err := io.ReadFull(g.source, seed); err != nil {
			return cryptoerr.New(op, cryptoerr.ErrIo, "%v", err)
		}
		copy(b, Expand(g.digest, seed, generatorInfo, len(b)))
		for i := range seed {
			seed[i] = 0
		}
		return nil
	}
	return cryptoerr.New(op, cryptoerr.ErrUnsupportedPrimitive, "prng tag %d", g.prng)
}
