// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyparcel/keyparcel/suite"
)

func chachaDescription() *suite.Description {
	return &suite.Description{
		EngineType: suite.EngineChaCha,
		KeySize:    32,
		IvSize:     8,
		CipherMode: suite.ModeNone,
		RoundCount: 20,
		KdfEngine:  suite.DigestSHA512,
	}
}

func TestCipherKeyRoundtrip(t *testing.T) {
	f, err := NewFactory(suite.PrngSystem, suite.DigestSHA512)
	require.NoError(t, err)
	ck, err := f.CreateCipherKey(chachaDescription())
	require.NoError(t, err)
	defer ck.Destroy()

	raw, err := ck.MarshalBinary()
	require.NoError(t, err)

	var got CipherKey
	require.NoError(t, got.UnmarshalBinary(raw))
	assert.Equal(t, ck.KeyID, got.KeyID)
	assert.Equal(t, ck.ExtensionKey, got.ExtensionKey)
	assert.True(t, ck.Description.Equal(&got.Description))
	assert.Equal(t, ck.Params.Key(), got.Params.Key())
	assert.Equal(t, ck.Params.IV(), got.Params.IV())
}

func TestSessionKeyRoundtrip(t *testing.T) {
	f, err := NewFactory(suite.PrngHkdf, suite.DigestSHA512)
	require.NoError(t, err)
	sk, err := f.CreateSessionKey(chachaDescription())
	require.NoError(t, err)
	defer sk.Destroy()

	raw, err := sk.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, raw, SessionHeaderSize+32+8)

	var got SessionKey
	require.NoError(t, got.UnmarshalBinary(raw))
	assert.True(t, sk.Description.Equal(&got.Description))
	assert.Equal(t, sk.Params.Key(), got.Params.Key())
	assert.Equal(t, sk.Params.IV(), got.Params.IV())
}

func TestSessionKeyTruncated(t *testing.T) {
	var got SessionKey
	assert.Error(t, got.UnmarshalBinary(make([]byte, 5)))
}

func TestFactoryDistinctIDs(t *testing.T) {
	f, err := NewFactory(suite.PrngSystem, suite.DigestSHA512)
	require.NoError(t, err)
	a, err := f.CreateCipherKey(chachaDescription())
	require.NoError(t, err)
	b, err := f.CreateCipherKey(chachaDescription())
	require.NoError(t, err)
	assert.NotEqual(t, a.KeyID, b.KeyID)
	assert.NotEqual(t, a.Params.Key(), b.Params.Key())
}

func TestAuthorityValidate(t *testing.T) {
	var a Authority
	assert.Error(t, a.Validate(), "all-zero origin")

	copy(a.OriginID[:], "operator-07")
	assert.NoError(t, a.Validate())

	raw, err := a.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, raw, AuthoritySize)

	var got Authority
	require.NoError(t, got.UnmarshalBinary(raw))
	assert.True(t, a.Equal(&got))
}
