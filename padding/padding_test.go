// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package padding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyparcel/keyparcel/cryptoerr"
	"github.com/keyparcel/keyparcel/suite"
)

func TestX923(t *testing.T) {
	s, err := New(suite.PaddingX923)
	require.NoError(t, err)

	block := []byte{1, 2, 3, 4, 5, 0xaa, 0xbb, 0xcc}
	n, err := s.AddPadding(block, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 0, 0, 3}, block)
	assert.Equal(t, 3, s.PadLength(block))
}

func TestPKCS7(t *testing.T) {
	s, err := New(suite.PaddingPKCS7)
	require.NoError(t, err)

	block := []byte{1, 2, 3, 4, 5, 6, 0xaa, 0xbb}
	n, err := s.AddPadding(block, 6)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 2, 2}, block)
	assert.Equal(t, 2, s.PadLength(block))

	// Corrupt one pad byte: the measurement must reject it.
	block[6] = 9
	assert.Equal(t, 0, s.PadLength(block))
}

func TestISO7816(t *testing.T) {
	s, err := New(suite.PaddingISO7816)
	require.NoError(t, err)

	block := []byte{1, 2, 3, 0xaa, 0xbb, 0xcc, 0xdd, 0xee}
	n, err := s.AddPadding(block, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte{1, 2, 3, 0x80, 0, 0, 0, 0}, block)
	assert.Equal(t, 5, s.PadLength(block))
}

func TestZero(t *testing.T) {
	s, err := New(suite.PaddingZero)
	require.NoError(t, err)

	block := []byte{1, 2, 3, 4, 0xaa, 0xbb, 0xcc, 0xdd}
	n, err := s.AddPadding(block, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{1, 2, 3, 4, 0, 0, 0, 0}, block)
	assert.Equal(t, 4, s.PadLength(block))
}

func TestFullBlockOffset(t *testing.T) {
	for _, tag := range []suite.PaddingType{suite.PaddingX923, suite.PaddingPKCS7, suite.PaddingISO7816, suite.PaddingZero} {
		s, err := New(tag)
		require.NoError(t, err)
		block := []byte{1, 2, 3, 4}
		n, err := s.AddPadding(block, 4)
		require.NoError(t, err, s.Name())
		assert.Equal(t, 0, n, s.Name())
		assert.Equal(t, []byte{1, 2, 3, 4}, block, s.Name())

		_, err = s.AddPadding(block, 5)
		assert.ErrorIs(t, err, cryptoerr.ErrInvalidPadding, s.Name())
	}
}

func TestUnknownTag(t *testing.T) {
	_, err := New(suite.PaddingNone)
	assert.ErrorIs(t, err, cryptoerr.ErrUnsupportedPrimitive)
}
