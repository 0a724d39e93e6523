// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

// Package padding implements the block padding schemes a cipher description
// can select: ANSI X9.23, PKCS#7, ISO/IEC 7816-4 and zero padding.
package padding

import (
	"github.com/keyparcel/keyparcel/cryptoerr"
	"github.com/keyparcel/keyparcel/suite"
)

// Scheme pads the tail of a final short block and measures the padding on
// decryption. AddPadding writes into block starting at offset and returns the
// number of bytes added; PadLength returns the padding byte count found in a
// full decrypted block, or 0 when the block carries none.
type Scheme interface {
	AddPadding(block []byte, offset int) (int, error)
	PadLength(block []byte) int
	Name() string
}

// New returns the scheme registered for the given tag.
func New(t suite.PaddingType) (Scheme, error) {
	switch t {
	case suite.PaddingX923:
		return x923{}, nil
	case suite.PaddingPKCS7:
		return pkcs7{}, nil
	case suite.PaddingISO7816:
		return iso7816{}, nil
	case suite.PaddingZero:
		return zeros{}, nil
	}
	return nil, cryptoerr.New("padding.New", cryptoerr.ErrUnsupportedPrimitive, "padding tag %d", t)
}

// X9.23: zero fill, final byte holds the pad count.
type x923 struct{}

func (x923) Name() string { return "X923" }

func (x923) AddPadding(block []byte, offset int) (int, error) {
	if offset > len(block) {
		return 0, cryptoerr.New("padding.AddPadding", cryptoerr.ErrInvalidPadding,
			"offset %d beyond block %d", offset, len(block))
	}
	n := len(block) - offset
	for i := offset; i < len(block)-1; i++ {
		block[i] = 0
	}
	if n > 0 {
		block[len(block)-1] = byte(n)
	}
	return n, nil
}

func (x923) PadLength(block []byte) int {
	n := int(block[len(block)-1])
	if n == 0 || n > len(block) {
		return 0
	}
	for i := len(block) - n; i < len(block)-1; i++ {
		if block[i] != 0 {
			return 0
		}
	}
	return n
}

// PKCS#7: every padding byte holds the pad count.
type pkcs7 struct{}

func (pkcs7) Name() string { return "PKCS7" }

func (pkcs7) AddPadding(block []byte, offset int) (int, error) {
	if offset > len(block) {
		return 0, cryptoerr.New("padding.AddPadding", cryptoerr.ErrInvalidPadding,
			"offset %d beyond block %d", offset, len(block))
	}
	n := len(block) - offset
	for i := offset; i < len(block); i++ {
		block[i] = byte(n)
	}
	return n, nil
}

func (pkcs7) PadLength(block []byte) int {
	n := int(block[len(block)-1])
	if n == 0 || n > len(block) {
		return 0
	}
	for i := len(block) - n; i < len(block); i++ {
		if block[i] != byte(n) {
			return 0
		}
	}
	return n
}

// ISO/IEC 7816-4: a 0x80 marker then zero fill.
type iso7816 struct{}

func (iso7816) Name() string { return "ISO7816" }

func (iso7816) AddPadding(block []byte, offset int) (int, error) {
	if offset > len(block) {
		return 0, cryptoerr.New("padding.AddPadding", cryptoerr.ErrInvalidPadding,
			"offset %d beyond block %d", offset, len(block))
	}
	n := len(block) - offset
	if n > 0 {
		block[offset] = 0x80
		for i := offset + 1; i < len(block); i++ {
			block[i] = 0
		}
	}
	return n, nil
}

func (iso7816) PadLength(block []byte) int {
	i := len(block) - 1
	for i >= 0 && block[i] == 0 {
		i--
	}
	if i < 0 || block[i] != 0x80 {
		return 0
	}
	return len(block) - i
}

// Zero padding. Ambiguous for plaintexts ending in zero bytes; retained for
// interoperability with fixed-length records.
type zeros struct{}

func (zeros) Name() string { return "Zero" }

func (zeros) AddPadding(block []byte, offset int) (int, error) {
	if offset > len(block) {
		return 0, cryptoerr.New("padding.AddPadding", cryptoerr.ErrInvalidPadding,
			"offset %d beyond block %d", offset, len(block))
	}
	n := len(block) - offset
	for i := offset; i < len(block); i++ {
		block[i] = 0
	}
	return n, nil
}

func (zeros) PadLength(block []byte) int {
	n := 0
	for i := len(block) - 1; i >= 0 && block[i] == 0; i-- {
		n++
	}
	return n
}
