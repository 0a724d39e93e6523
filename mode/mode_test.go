// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package mode

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyparcel/keyparcel/cryptoerr"
	"github.com/keyparcel/keyparcel/internal/xpar"
	"github.com/keyparcel/keyparcel/keys"
	"github.com/keyparcel/keyparcel/shx"
	"github.com/keyparcel/keyparcel/suite"
)

func fill(n int, b byte) []byte {
	s := make([]byte, n)
	for i := range s {
		s[i] = b
	}
	return s
}

func sequence(n int) []byte {
	s := make([]byte, n)
	for i := range s {
		s[i] = byte(i)
	}
	return s
}

func newEngine(t *testing.T, rounds int) *shx.Cipher {
	t.Helper()
	e, err := shx.New(rounds, suite.DigestSHA512)
	require.NoError(t, err)
	return e
}

// One block through SHX-64/CBC with an all-zero key and IV, recovered
// exactly.
func TestCBCSingleBlockRoundtrip(t *testing.T) {
	plaintext := []byte("ABCDEFGHIJKLMNO\x01")
	params := keys.NewParams(fill(192, 0), fill(16, 0), nil)

	enc := NewCBC(newEngine(t, 64))
	require.NoError(t, enc.Initialize(true, params))
	ct := make([]byte, 16)
	require.NoError(t, enc.Transform(ct, plaintext))
	require.False(t, bytes.Equal(ct, plaintext))

	dec := NewCBC(newEngine(t, 64))
	require.NoError(t, dec.Initialize(false, params))
	pt := make([]byte, 16)
	require.NoError(t, dec.Transform(pt, ct))
	assert.Equal(t, plaintext, pt)
}

func TestCBCMultiBlockChaining(t *testing.T) {
	params := keys.NewParams(fill(192, 0x3c), sequence(16), nil)
	src := sequence(30 * 16)

	enc := NewCBC(newEngine(t, 64))
	require.NoError(t, enc.Initialize(true, params))
	ct := make([]byte, len(src))
	require.NoError(t, enc.Transform(ct, src))
	// Chaining makes identical plaintext blocks encrypt differently.
	assert.NotEqual(t, ct[:16], ct[16:32])

	dec := NewCBC(newEngine(t, 64))
	require.NoError(t, dec.Initialize(false, params))
	pt := make([]byte, len(src))
	require.NoError(t, dec.Transform(pt, ct))
	assert.Equal(t, src, pt)
}

// The parallel CBC decrypt path must match the sequential one bit for bit,
// including the final chaining vector.
func TestCBCParallelDecryptEquivalence(t *testing.T) {
	params := keys.NewParams(fill(192, 0x99), fill(16, 0x44), nil)
	src := sequence(4096)

	enc := NewCBC(newEngine(t, 64))
	require.NoError(t, enc.Initialize(true, params))
	ct := make([]byte, len(src))
	require.NoError(t, enc.Transform(ct, src))

	linear := NewCBC(newEngine(t, 64))
	linear.SetPolicy(xpar.Linear())
	require.NoError(t, linear.Initialize(false, params))
	seq := make([]byte, len(ct))
	require.NoError(t, linear.Transform(seq, ct))

	parallel := NewCBC(newEngine(t, 64))
	parallel.SetPolicy(xpar.Policy{Parallel: true, Workers: 4})
	require.NoError(t, parallel.Initialize(false, params))
	par := make([]byte, len(ct))
	require.NoError(t, parallel.Transform(par, ct))

	assert.Equal(t, seq, par)
	assert.Equal(t, src, par)
	assert.Equal(t, linear.IV(), parallel.IV())
}

// 4096 zero bytes under SHX-64/CTR: the parallel and sequential paths must
// produce identical output and identical final counters.
func TestCTRParallelEquivalence(t *testing.T) {
	params := keys.NewParams(fill(192, 0x01), sequence(16), nil)
	src := fill(4096, 0)

	linear := NewCTR(newEngine(t, 64))
	linear.SetPolicy(xpar.Linear())
	require.NoError(t, linear.Initialize(true, params))
	seq := make([]byte, len(src))
	require.NoError(t, linear.Transform(seq, src))

	parallel := NewCTR(newEngine(t, 64))
	parallel.SetPolicy(xpar.Policy{Parallel: true, Workers: 4})
	require.NoError(t, parallel.Initialize(true, params))
	par := make([]byte, len(src))
	require.NoError(t, parallel.Transform(par, src))

	assert.Equal(t, seq, par)
	assert.Equal(t, linear.Counter(), parallel.Counter())
}

func TestCTRCounterAdvance(t *testing.T) {
	params := keys.NewParams(fill(192, 0x01), fill(16, 0xff), nil)
	m := NewCTR(newEngine(t, 32))
	m.SetPolicy(xpar.Linear())
	require.NoError(t, m.Initialize(true, params))

	// 33 bytes is three counter steps; the all-ones start exercises the
	// carry across every byte.
	require.NoError(t, m.Transform(make([]byte, 33), make([]byte, 33)))
	expect := fill(16, 0)
	expect[15] = 2
	assert.Equal(t, expect, m.Counter())
}

func TestCTRRoundtripOddLength(t *testing.T) {
	params := keys.NewParams(fill(192, 0x5a), sequence(16), nil)
	src := sequence(1000 + 7)

	enc := NewCTR(newEngine(t, 64))
	require.NoError(t, enc.Initialize(true, params))
	ct := make([]byte, len(src))
	require.NoError(t, enc.Transform(ct, src))

	dec := NewCTR(newEngine(t, 64))
	require.NoError(t, dec.Initialize(false, params))
	pt := make([]byte, len(ct))
	require.NoError(t, dec.Transform(pt, ct))
	assert.Equal(t, src, pt)
}

func TestCTRResumable(t *testing.T) {
	params := keys.NewParams(fill(192, 0x21), fill(16, 7), nil)
	src := sequence(2048)

	whole := NewCTR(newEngine(t, 64))
	whole.SetPolicy(xpar.Linear())
	require.NoError(t, whole.Initialize(true, params))
	expect := make([]byte, len(src))
	require.NoError(t, whole.Transform(expect, src))

	split := NewCTR(newEngine(t, 64))
	split.SetPolicy(xpar.Policy{Parallel: true, Workers: 2})
	require.NoError(t, split.Initialize(true, params))
	got := make([]byte, len(src))
	require.NoError(t, split.Transform(got[:1024], src[:1024]))
	require.NoError(t, split.Transform(got[1024:], src[1024:]))
	assert.Equal(t, expect, got)
}

func TestCFBRoundtrip(t *testing.T) {
	params := keys.NewParams(fill(192, 0x66), sequence(16), nil)
	src := sequence(512)

	enc := NewCFB(newEngine(t, 64), 16)
	require.NoError(t, enc.Initialize(true, params))
	ct := make([]byte, len(src))
	require.NoError(t, enc.Transform(ct, src))

	dec := NewCFB(newEngine(t, 64), 16)
	require.NoError(t, dec.Initialize(false, params))
	pt := make([]byte, len(ct))
	require.NoError(t, dec.Transform(pt, ct))
	assert.Equal(t, src, pt)
}

func TestCFBSmallFeedbackRoundtrip(t *testing.T) {
	params := keys.NewParams(fill(192, 0x12), sequence(16), nil)
	src := sequence(64)

	enc := NewCFB(newEngine(t, 64), 8)
	require.NoError(t, enc.Initialize(true, params))
	ct := make([]byte, len(src))
	require.NoError(t, enc.Transform(ct, src))

	dec := NewCFB(newEngine(t, 64), 8)
	require.NoError(t, dec.Initialize(false, params))
	pt := make([]byte, len(ct))
	require.NoError(t, dec.Transform(pt, ct))
	assert.Equal(t, src, pt)
}

// Decrypting in two calls must continue the register exactly where one
// call leaves off, for both full-block and sub-block feedback.
func TestCFBSplitCallsContinueRegister(t *testing.T) {
	for _, f := range []int{8, 16} {
		params := keys.NewParams(fill(192, 0x4e), sequence(16), nil)
		src := sequence(160)

		enc := NewCFB(newEngine(t, 64), f)
		require.NoError(t, enc.Initialize(true, params))
		ct := make([]byte, len(src))
		require.NoError(t, enc.Transform(ct, src))

		whole := NewCFB(newEngine(t, 64), f)
		require.NoError(t, whole.Initialize(false, params))
		expect := make([]byte, len(ct))
		require.NoError(t, whole.Transform(expect, ct))

		split := NewCFB(newEngine(t, 64), f)
		require.NoError(t, split.Initialize(false, params))
		got := make([]byte, len(ct))
		require.NoError(t, split.Transform(got[:48], ct[:48]))
		require.NoError(t, split.Transform(got[48:], ct[48:]))

		assert.Equal(t, expect, got, "feedback %d", f)
		assert.Equal(t, src, got, "feedback %d", f)
	}
}

func TestCFBParallelDecryptEquivalence(t *testing.T) {
	params := keys.NewParams(fill(192, 0x81), fill(16, 0x10), nil)
	src := sequence(2048)

	enc := NewCFB(newEngine(t, 64), 16)
	require.NoError(t, enc.Initialize(true, params))
	ct := make([]byte, len(src))
	require.NoError(t, enc.Transform(ct, src))

	linear := NewCFB(newEngine(t, 64), 16)
	linear.SetPolicy(xpar.Linear())
	require.NoError(t, linear.Initialize(false, params))
	seq := make([]byte, len(ct))
	require.NoError(t, linear.Transform(seq, ct))

	parallel := NewCFB(newEngine(t, 64), 16)
	parallel.SetPolicy(xpar.Policy{Parallel: true, Workers: 4})
	require.NoError(t, parallel.Initialize(false, params))
	par := make([]byte, len(ct))
	require.NoError(t, parallel.Transform(par, ct))

	assert.Equal(t, seq, par)
	assert.Equal(t, src, par)
}

func TestOFBRoundtrip(t *testing.T) {
	params := keys.NewParams(fill(192, 0x0f), sequence(16), nil)
	src := sequence(100) // partial final block

	enc := NewOFB(newEngine(t, 64))
	require.NoError(t, enc.Initialize(true, params))
	ct := make([]byte, len(src))
	require.NoError(t, enc.Transform(ct, src))

	dec := NewOFB(newEngine(t, 64))
	require.NoError(t, dec.Initialize(false, params))
	pt := make([]byte, len(ct))
	require.NoError(t, dec.Transform(pt, ct))
	assert.Equal(t, src, pt)
}

func TestModeInitializeErrors(t *testing.T) {
	for _, m := range []Mode{
		NewCBC(newEngine(t, 64)),
		NewCFB(newEngine(t, 64), 16),
		NewCTR(newEngine(t, 64)),
		NewOFB(newEngine(t, 64)),
	} {
		err := m.Transform(make([]byte, 16), make([]byte, 16))
		assert.ErrorIs(t, err, cryptoerr.ErrNotInitialized, m.Name())

		err = m.Initialize(true, keys.NewParams(fill(192, 0), nil, nil))
		assert.ErrorIs(t, err, cryptoerr.ErrInvalidArgument, m.Name())

		err = m.Initialize(true, keys.NewParams(fill(192, 0), fill(13, 0), nil))
		assert.ErrorIs(t, err, cryptoerr.ErrInvalidIv, m.Name())
	}
}

func TestModeRegistry(t *testing.T) {
	for _, tag := range []suite.ModeType{suite.ModeCBC, suite.ModeCFB, suite.ModeCTR, suite.ModeOFB} {
		m, err := New(tag, newEngine(t, 64))
		require.NoError(t, err)
		assert.NotNil(t, m)
	}
	_, err := New(suite.ModeNone, newEngine(t, 64))
	assert.ErrorIs(t, err, cryptoerr.ErrUnsupportedPrimitive)
}

func TestCounterArithmetic(t *testing.T) {
	ctr := fill(4, 0xff)
	incrementBE(ctr)
	assert.Equal(t, fill(4, 0), ctr)

	ctr = []byte{0, 0, 0x01, 0xff}
	addBE(ctr, 0x101)
	assert.Equal(t, []byte{0, 0, 0x03, 0x00}, ctr)

	ctr = fill(16, 0)
	addBE(ctr, 256)
	expect := fill(16, 0)
	expect[14] = 1
	assert.Equal(t, expect, ctr)
}
