// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package shx

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyparcel/keyparcel/cryptoerr"
	"github.com/keyparcel/keyparcel/keys"
	"github.com/keyparcel/keyparcel/suite"
)

func testKey(n int, fill byte) []byte {
	k := make([]byte, n)
	for i := range k {
		k[i] = fill
	}
	return k
}

func TestSboxInverse(t *testing.T) {
	for s := 0; s < 8; s++ {
		for v := uint32(0); v < 16; v++ {
			// Drive one bitsliced lane through the box and back.
			r0 := (v & 1) * 0xffffffff
			r1 := (v >> 1 & 1) * 0xffffffff
			r2 := (v >> 2 & 1) * 0xffffffff
			r3 := (v >> 3 & 1) * 0xffffffff
			y0, y1, y2, y3 := sbox(s, r0, r1, r2, r3)
			x0, x1, x2, x3 := sboxInv(s, y0, y1, y2, y3)
			assert.Equal(t, r0, x0, "s%d value %d", s, v)
			assert.Equal(t, r1, x1, "s%d value %d", s, v)
			assert.Equal(t, r2, x2, "s%d value %d", s, v)
			assert.Equal(t, r3, x3, "s%d value %d", s, v)
		}
	}
}

func TestSboxMatchesTable(t *testing.T) {
	for s := 0; s < 8; s++ {
		for v := uint32(0); v < 16; v++ {
			r0 := (v & 1) * 0xffffffff
			r1 := (v >> 1 & 1) * 0xffffffff
			r2 := (v >> 2 & 1) * 0xffffffff
			r3 := (v >> 3 & 1) * 0xffffffff
			y0, y1, y2, y3 := sbox(s, r0, r1, r2, r3)
			got := (y0 & 1) | (y1&1)<<1 | (y2&1)<<2 | (y3&1)<<3
			assert.Equal(t, uint32(sboxTable[s][v]), got, "s%d value %d", s, v)
		}
	}
}

func TestLinearInverse(t *testing.T) {
	x0, x1, x2, x3 := uint32(0x01234567), uint32(0x89abcdef), uint32(0xdeadbeef), uint32(0xfeedf00d)
	y0, y1, y2, y3 := linear(x0, x1, x2, x3)
	z0, z1, z2, z3 := linearInv(y0, y1, y2, y3)
	assert.Equal(t, [4]uint32{x0, x1, x2, x3}, [4]uint32{z0, z1, z2, z3})
}

func TestRoundtripAllRoundCounts(t *testing.T) {
	plaintext := []byte("ABCDEFGHIJKLMNO\x01")
	for _, rounds := range []int{32, 40, 48, 56, 64, 80, 96, 128} {
		c, err := New(rounds, suite.DigestSHA512)
		require.NoError(t, err)
		p := keys.NewParams(testKey(192, 0x2b), nil, nil)
		require.NoError(t, c.Initialize(true, p))

		ct := make([]byte, BlockSize)
		c.Encrypt(ct, plaintext)
		assert.False(t, bytes.Equal(ct, plaintext), "rounds %d", rounds)

		pt := make([]byte, BlockSize)
		c.Decrypt(pt, ct)
		assert.Equal(t, plaintext, pt, "rounds %d", rounds)
	}
}

func TestRoundtripLongKeys(t *testing.T) {
	for _, n := range []int{192, 320, 448} {
		c, err := New(0, suite.DigestSHA256)
		require.NoError(t, err)
		require.Equal(t, DefaultRounds, c.Rounds())
		require.NoError(t, c.Initialize(true, keys.NewParams(testKey(n, 0x5c), nil, nil)))

		src := testKey(BlockSize, 0x77)
		ct := make([]byte, BlockSize)
		pt := make([]byte, BlockSize)
		c.Encrypt(ct, src)
		c.Decrypt(pt, ct)
		assert.Equal(t, src, pt, "key %d", n)
	}
}

func TestScheduleDeterminism(t *testing.T) {
	mk := func() []byte {
		c, err := New(64, suite.DigestSHA512)
		require.NoError(t, err)
		require.NoError(t, c.Initialize(true, keys.NewParams(testKey(192, 0x01), nil, nil)))
		ct := make([]byte, BlockSize)
		c.Encrypt(ct, make([]byte, BlockSize))
		return ct
	}
	assert.Equal(t, mk(), mk())
}

func TestInvalidKeySizes(t *testing.T) {
	c, err := New(64, suite.DigestSHA512)
	require.NoError(t, err)
	for _, n := range []int{0, 16, 32, 64, 128, 191, 200, 256} {
		err := c.Initialize(true, keys.NewParams(testKey(n, 0), nil, nil))
		assert.ErrorIs(t, err, cryptoerr.ErrInvalidKeySize, "key %d", n)
	}
}

func TestTransformBeforeInit(t *testing.T) {
	c, err := New(64, suite.DigestSHA512)
	require.NoError(t, err)
	err = c.Transform(make([]byte, BlockSize), make([]byte, BlockSize))
	assert.ErrorIs(t, err, cryptoerr.ErrNotInitialized)
}

func TestInvalidRounds(t *testing.T) {
	for _, r := range []int{1, 31, 33, 72, 129, 256} {
		_, err := New(r, suite.DigestSHA512)
		assert.ErrorIs(t, err, cryptoerr.ErrInvalidArgument, "rounds %d", r)
	}
}

func TestDestroyClearsSchedule(t *testing.T) {
	c, err := New(32, suite.DigestSHA512)
	require.NoError(t, err)
	require.NoError(t, c.Initialize(true, keys.NewParams(testKey(192, 0x33), nil, nil)))
	rk := c.rk
	c.Destroy()
	assert.False(t, c.IsInitialized())
	for _, w := range rk {
		assert.Zero(t, w)
	}
}
