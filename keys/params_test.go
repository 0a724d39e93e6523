// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyparcel/keyparcel/cryptoerr"
)

func TestParamsWireRoundtrip(t *testing.T) {
	p := NewParams([]byte{1, 2, 3, 4}, []byte{5, 6}, []byte{7, 8, 9})
	raw, err := p.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, raw, p.MarshaledSize())

	var got Params
	require.NoError(t, got.UnmarshalBinary(raw))
	assert.Equal(t, p.Key(), got.Key())
	assert.Equal(t, p.IV(), got.IV())
	assert.Equal(t, p.IKM(), got.IKM())
}

func TestParamsAbsentFields(t *testing.T) {
	p := NewParams([]byte{9, 9}, nil, nil)
	raw, err := p.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, raw, 12+2)

	var got Params
	require.NoError(t, got.UnmarshalBinary(raw))
	assert.Equal(t, []byte{9, 9}, got.Key())
	assert.Nil(t, got.IV())
	assert.Nil(t, got.IKM())
}

func TestParamsUnmarshalTruncated(t *testing.T) {
	p := NewParams([]byte{1, 2, 3, 4}, []byte{5, 6}, nil)
	raw, err := p.MarshalBinary()
	require.NoError(t, err)

	var got Params
	assert.ErrorIs(t, got.UnmarshalBinary(raw[:len(raw)-1]), cryptoerr.ErrStreamTooSmall)
	assert.ErrorIs(t, got.UnmarshalBinary(raw[:3]), cryptoerr.ErrStreamTooSmall)
}

func TestParamsCloneIsDeep(t *testing.T) {
	p := NewParams([]byte{1, 2}, []byte{3, 4}, nil)
	c := p.Clone()
	c.Key()[0] = 0xff
	assert.Equal(t, byte(1), p.Key()[0])
}

func TestParamsDestroyZeroizes(t *testing.T) {
	key := []byte{0xde, 0xad}
	p := NewParams(key, []byte{0xbe, 0xef}, nil)
	held := p.Key()
	p.Destroy()
	assert.Equal(t, []byte{0, 0}, held)
	assert.Nil(t, p.Key())
	// The caller's original buffer is untouched; Params owns copies.
	assert.Equal(t, []byte{0xde, 0xad}, key)
}
