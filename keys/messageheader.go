// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package keys

import (
	"crypto/hmac"
	"io"
	"unicode/utf16"

	"github.com/keyparcel/keyparcel/cryptoerr"
	"github.com/keyparcel/keyparcel/kdf"
	"github.com/keyparcel/keyparcel/suite"
)

// HeaderSize is the fixed portion of a message header: a 16-byte sub-key id
// followed by the 16-byte masked extension. An optional MAC trails it.
const HeaderSize = 32

// ExtensionSize is the masked extension field size: eight UTF-16LE
// characters.
const ExtensionSize = 16

// macBlock is the canonical read granule for the streaming MAC: the stream
// and byte-array forms feed the digest identically for every length.
const macBlock = 64 * 1024

// EncryptExtension masks a file extension with a package's extension key.
// The extension encodes as UTF-16LE, NUL-padded to eight characters, then
// XORs with the 16-byte key.
func EncryptExtension(extension string, extensionKey []byte) ([]byte, error) {
	if len(extensionKey) != ExtensionSize {
		return nil, cryptoerr.New("keys.EncryptExtension", cryptoerr.ErrInvalidArgument,
			"extension key is %d bytes, want %d", len(extensionKey), ExtensionSize)
	}
	units := utf16.Encode([]rune(extension))
	if len(units) > ExtensionSize/2 {
		return nil, cryptoerr.New("keys.EncryptExtension", cryptoerr.ErrInvalidArgument,
			"extension %q longer than %d characters", extension, ExtensionSize/2)
	}
	out := make([]byte, ExtensionSize)
	for i, u := range units {
		out[2*i] = byte(u)
		out[2*i+1] = byte(u >> 8)
	}
	for i := range out {
		out[i] ^= extensionKey[i]
	}
	return out, nil
}

// DecryptExtension unmasks an extension field and trims the NUL padding.
func DecryptExtension(masked, extensionKey []byte) (string, error) {
	if len(masked) < ExtensionSize || len(extensionKey) != ExtensionSize {
		return "", cryptoerr.New("keys.DecryptExtension", cryptoerr.ErrInvalidArgument,
			"masked %d, key %d bytes", len(masked), len(extensionKey))
	}
	var units []uint16
	for i := 0; i < ExtensionSize; i += 2 {
		u := uint16(masked[i]^extensionKey[i]) | uint16(masked[i+1]^extensionKey[i+1])<<8
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units)), nil
}

// NewHeader builds a message header binding a ciphertext to its sub-key id.
// The mac may be nil when the cipher description disables authentication.
func NewHeader(keyID [16]byte, extension string, extensionKey, mac []byte) ([]byte, error) {
	masked, err := EncryptExtension(extension, extensionKey)
	if err != nil {
		return nil, err
	}
	b := make([]byte, 0, HeaderSize+len(mac))
	b = append(b, keyID[:]...)
	b = append(b, masked...)
	b = append(b, mac...)
	return b, nil
}

// HasHeader reports whether the stream still holds a full fixed header.
func HasHeader(b []byte) bool { return len(b) >= HeaderSize }

// HeaderKeyID reads the sub-key id from a header.
func HeaderKeyID(b []byte) ([16]byte, error) {
	var id [16]byte
	if !HasHeader(b) {
		return id, cryptoerr.New("keys.HeaderKeyID", cryptoerr.ErrStreamTooSmall,
			"%d of %d bytes", len(b), HeaderSize)
	}
	copy(id[:], b[:16])
	return id, nil
}

// HeaderExtension reads and unmasks the extension from a header.
func HeaderExtension(b, extensionKey []byte) (string, error) {
	if !HasHeader(b) {
		return "", cryptoerr.New("keys.HeaderExtension", cryptoerr.ErrStreamTooSmall,
			"%d of %d bytes", len(b), HeaderSize)
	}
	return DecryptExtension(b[16:32], extensionKey)
}

// HeaderMac reads the trailing MAC of the given size from a header.
func HeaderMac(b []byte, macSize int) ([]byte, error) {
	if len(b) < HeaderSize+macSize {
		return nil, cryptoerr.New("keys.HeaderMac", cryptoerr.ErrStreamTooSmall,
			"%d of %d bytes", len(b), HeaderSize+macSize)
	}
	return append([]byte(nil), b[HeaderSize:HeaderSize+macSize]...), nil
}

// ComputeMac authenticates a message stream with HMAC under the named
// digest. The stream is read in fixed 64 KiB blocks so the MAC input is
// byte-identical to hashing the whole message in memory.
func ComputeMac(r io.Reader, digest suite.DigestType, key []byte) ([]byte, error) {
	h, err := kdf.Digest(digest)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(h, key)
	buf := make([]byte, macBlock)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			mac.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, cryptoerr.New("keys.ComputeMac", cryptoerr.ErrIo, "%v", err)
		}
	}
	return mac.Sum(nil), nil
}
