// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package volume

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyparcel/keyparcel/cryptoerr"
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

func cbcDescription() *suite.Description {
	return &suite.Description{
		EngineType:  suite.EngineSHX,
		KeySize:     32,
		IvSize:      16,
		CipherMode:  suite.ModeCBC,
		PaddingMode: suite.PaddingPKCS7,
		BlockSize:   16,
		RoundCount:  32,
		KdfEngine:   suite.DigestSHA512,
	}
}

func volumeFile(t *testing.T, dir string) *os.File {
	t.Helper()
	fd, err := os.OpenFile(filepath.Join(dir, "volume.kvk"), os.O_RDWR|os.O_CREATE, 0o600)
	require.NoError(t, err)
	t.Cleanup(func() { fd.Close() })
	return fd
}

func writeFiles(t *testing.T, dir string, contents map[string][]byte) []string {
	t.Helper()
	paths := make([]string, 0, len(contents))
	for name, data := range contents {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, data, 0o600))
		paths = append(paths, p)
	}
	return paths
}

func TestVolumeKeyRoundtrip(t *testing.T) {
	dir := t.TempDir()
	factory := NewFactory(volumeFile(t, dir))
	vk, err := factory.Create(chachaDescription(), 4, suite.PrngSystem, suite.DigestSHA512)
	require.NoError(t, err)

	got, err := factory.Load()
	require.NoError(t, err)
	assert.True(t, vk.Description.Equal(&got.Description))
	assert.Equal(t, vk.FileID, got.FileID)
	assert.Equal(t, vk.State, got.State)
	assert.Equal(t, vk.Material, got.Material)
}

func TestVolumeEncryptDecryptStream(t *testing.T) {
	dir := t.TempDir()
	contents := map[string][]byte{
		"a.txt": []byte("first file contents"),
		"b.bin": make([]byte, 3000),
	}
	for i := range contents["b.bin"] {
		contents["b.bin"][i] = byte(i * 7)
	}
	paths := writeFiles(t, dir, contents)

	factory := NewFactory(volumeFile(t, dir))
	vk, err := factory.Create(chachaDescription(), 4, suite.PrngSystem, suite.DigestSHA512)
	require.NoError(t, err)

	require.NoError(t, NewCipher(vk, factory).Transform(true, paths))
	for _, p := range paths {
		enc, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.NotEqual(t, contents[filepath.Base(p)], enc, p)
		assert.Len(t, enc, len(contents[filepath.Base(p)]), "stream mode keeps size")
	}

	// A fresh load sees the persisted states and restores the plaintext.
	vk2, err := factory.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, 4-vk2.UnusedCount())
	require.NoError(t, NewCipher(vk2, factory).Transform(false, paths))
	for _, p := range paths {
		dec, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, contents[filepath.Base(p)], dec, p)
	}
}

func TestVolumeEncryptDecryptPaddedBlocks(t *testing.T) {
	dir := t.TempDir()
	contents := map[string][]byte{
		"short.dat": []byte("seventeen bytes!!"),     // forces a padded tail
		"exact.dat": make([]byte, 64),                // block multiple
		"long.dat":  []byte("just over one block!!"), // 21 bytes
	}
	paths := writeFiles(t, dir, contents)

	factory := NewFactory(volumeFile(t, dir))
	vk, err := factory.Create(cbcDescription(), 3, suite.PrngSystem, suite.DigestSHA512)
	require.NoError(t, err)
	require.NoError(t, NewCipher(vk, factory).Transform(true, paths))

	for _, p := range paths {
		enc, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Zero(t, len(enc)%16, "ciphertext is block aligned: %s", p)
	}

	vk2, err := factory.Load()
	require.NoError(t, err)
	require.NoError(t, NewCipher(vk2, factory).Transform(false, paths))
	for _, p := range paths {
		dec, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, contents[filepath.Base(p)], dec, p)
	}
}

func TestVolumeRejectsOverfill(t *testing.T) {
	dir := t.TempDir()
	paths := writeFiles(t, dir, map[string][]byte{
		"a": []byte("a"), "b": []byte("b"), "c": []byte("c"),
	})
	factory := NewFactory(volumeFile(t, dir))
	vk, err := factory.Create(chachaDescription(), 2, suite.PrngSystem, suite.DigestSHA512)
	require.NoError(t, err)

	err = NewCipher(vk, factory).Transform(true, paths)
	assert.ErrorIs(t, err, cryptoerr.ErrPackageFull)
}

func TestVolumeDecryptSkipsUnknownFiles(t *testing.T) {
	dir := t.TempDir()
	known := writeFiles(t, dir, map[string][]byte{"known.txt": []byte("known contents")})

	factory := NewFactory(volumeFile(t, dir))
	vk, err := factory.Create(chachaDescription(), 2, suite.PrngSystem, suite.DigestSHA512)
	require.NoError(t, err)
	require.NoError(t, NewCipher(vk, factory).Transform(true, known))

	stranger := filepath.Join(dir, "stranger.txt")
	require.NoError(t, os.WriteFile(stranger, []byte("never encrypted"), 0o600))

	vk2, err := factory.Load()
	require.NoError(t, err)
	require.NoError(t, NewCipher(vk2, factory).Transform(false, append(known, stranger)))

	dec, err := os.ReadFile(known[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("known contents"), dec)
	untouched, err := os.ReadFile(stranger)
	require.NoError(t, err)
	assert.Equal(t, []byte("never encrypted"), untouched)
}

func TestFileHashStable(t *testing.T) {
	a := FileHash("/some/path/file.txt")
	b := FileHash("/some/path/file.txt")
	c := FileHash("/some/path/other.txt")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
