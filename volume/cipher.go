// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package volume

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/time/rate"

	"github.com/keyparcel/keyparcel/cryptoerr"
	"github.com/keyparcel/keyparcel/engines"
	"github.com/keyparcel/keyparcel/keys"
	"github.com/keyparcel/keyparcel/padding"
)

// chunkSize is the per-file processing granule. It is a multiple of every
// supported block size, so chained modes carry state cleanly across chunks.
const chunkSize = 1 << 20

// Cipher transforms a set of files in place under a volume key, one sub-key
// per file. Files are rewritten through read-transform-seek-write cycles; a
// file that fails is logged and skipped, and the volume header is rewritten
// at the end with whatever states were updated.
type Cipher struct {
	vk       *VolumeKey
	factory  *Factory
	progress *rate.Limiter
}

// NewCipher binds a cipher to a loaded volume key and its backing stream.
func NewCipher(vk *VolumeKey, f *Factory) *Cipher {
	// A couple of progress lines per second is plenty for large trees.
	return &Cipher{vk: vk, factory: f, progress: rate.NewLimiter(rate.Limit(2), 1)}
}

// Transform encrypts or decrypts every path. Encryption binds each file to
// the next unused sub-key; decryption looks the sub-key up by the file's
// path hash and skips files the volume does not know. The updated state
// bitmap is persisted before returning.
func (c *Cipher) Transform(encryption bool, paths []string) error {
	const op = "volume.Transform"
	if encryption && c.vk.UnusedCount() < len(paths) {
		return cryptoerr.New(op, cryptoerr.ErrPackageFull,
			"%d files for %d unused sub-keys", len(paths), c.vk.UnusedCount())
	}

	done := 0
	for _, path := range paths {
		var idx int
		if encryption {
			idx = c.vk.NextUnused()
		} else {
			idx = c.vk.IndexOf(FileHash(path))
			if idx < 0 {
				slog.Warn("no sub-key bound to file, skipping", "path", path)
				continue
			}
		}

		if err := c.transformFile(encryption, path, idx); err != nil {
			slog.Warn("file transform failed, skipping", "path", path, "error", err)
			continue
		}

		if encryption {
			c.vk.FileID[idx] = FileHash(path)
			c.vk.State[idx] = StateEncrypted
		} else {
			c.vk.State[idx] = StateDecrypted
		}
		done++
		if c.progress.Allow() {
			slog.Info("volume progress", "done", done, "total", len(paths))
		}
	}

	if err := c.factory.SaveHeader(c.vk); err != nil {
		return err
	}
	slog.Info("volume complete", "done", done, "total", len(paths))
	return nil
}

// transformFile rewrites one file in place under sub-key idx.
func (c *Cipher) transformFile(encryption bool, path string, idx int) error {
	const op = "volume.transformFile"
	params := c.vk.SubkeyParams(idx)
	defer params.Destroy()

	t, err := engines.New(&c.vk.Description, encryption, params)
	if err != nil {
		return err
	}
	defer t.Destroy()

	fd, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return cryptoerr.New(op, cryptoerr.ErrIo, "%v", err)
	}
	defer fd.Close()

	info, err := fd.Stat()
	if err != nil {
		return cryptoerr.New(op, cryptoerr.ErrIo, "%v", err)
	}
	size := info.Size()

	if engines.IsBlockMode(&c.vk.Description) {
		return c.transformBlockFile(encryption, fd, size, t)
	}
	return c.transformStreamFile(fd, size, t)
}

// transformStreamFile handles counter and stream ciphers: the size never
// changes, chunks transform independently of the tail.
func (c *Cipher) transformStreamFile(fd *os.File, size int64, t engines.Transformer) error {
	const op = "volume.transformStreamFile"
	buf := make([]byte, chunkSize)
	defer keys.Wipe(buf)
	var off int64
	for off < size {
		n := chunkSize
		if size-off < int64(n) {
			n = int(size - off)
		}
		if _, err := fd.ReadAt(buf[:n], off); err != nil && err != io.EOF {
			return cryptoerr.New(op, cryptoerr.ErrIo, "%v", err)
		}
		if err := t.Transform(buf[:n], buf[:n]); err != nil {
			return err
		}
		if _, err := fd.WriteAt(buf[:n], off); err != nil {
			return cryptoerr.New(op, cryptoerr.ErrIo, "%v", err)
		}
		off += int64(n)
	}
	return nil
}

// transformBlockFile handles padded block modes. On encryption a trailing
// short block is padded per the description, growing the file to a block
// multiple; on decryption the final block's padding length is measured and
// the file truncated by that count.
func (c *Cipher) transformBlockFile(encryption bool, fd *os.File, size int64, t engines.Transformer) error {
	const op = "volume.transformBlockFile"
	bs := int64(c.vk.Description.BlockSize)
	pad, err := padding.New(c.vk.Description.PaddingMode)
	if err != nil {
		return err
	}

	if !encryption && size%bs != 0 {
		return cryptoerr.New(op, cryptoerr.ErrInvalidArgument,
			"ciphertext %d bytes is not a block multiple", size)
	}

	full := (size / bs) * bs

	buf := make([]byte, chunkSize)
	defer keys.Wipe(buf)
	var off int64
	for off < full {
		n := chunkSize
		if full-off < int64(n) {
			n = int(full - off)
		}
		if _, err := fd.ReadAt(buf[:n], off); err != nil && err != io.EOF {
			return cryptoerr.New(op, cryptoerr.ErrIo, "%v", err)
		}
		if err := t.Transform(buf[:n], buf[:n]); err != nil {
			return err
		}
		if _, err := fd.WriteAt(buf[:n], off); err != nil {
			return cryptoerr.New(op, cryptoerr.ErrIo, "%v", err)
		}
		off += int64(n)
	}

	if encryption {
		if tail := size - full; tail > 0 {
			block := make([]byte, bs)
			defer keys.Wipe(block)
			if _, err := fd.ReadAt(block[:tail], full); err != nil && err != io.EOF {
				return cryptoerr.New(op, cryptoerr.ErrIo, "%v", err)
			}
			if _, err := pad.AddPadding(block, int(tail)); err != nil {
				return err
			}
			if err := t.Transform(block, block); err != nil {
				return err
			}
			if _, err := fd.WriteAt(block, full); err != nil {
				return cryptoerr.New(op, cryptoerr.ErrIo, "%v", err)
			}
		}
		return nil
	}

	// Measure the padding in the final decrypted block and drop it.
	if size >= bs {
		block := make([]byte, bs)
		defer keys.Wipe(block)
		if _, err := fd.ReadAt(block, size-bs); err != nil && err != io.EOF {
			return cryptoerr.New(op, cryptoerr.ErrIo, "%v", err)
		}
		if n := pad.PadLength(block); n > 0 {
			if err := fd.Truncate(size - int64(n)); err != nil {
				return cryptoerr.New(op, cryptoerr.ErrIo, "%v", err)
			}
		}
	}
	return nil
}
