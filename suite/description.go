// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package suite

import (
	"encoding/binary"

	"github.com/keyparcel/keyparcel/cryptoerr"
)

// DescriptionSize is the serialized size of a Description in bytes.
const DescriptionSize = 40

// Description is the fully serializable record of a cipher selection and its
// sizing. All integer fields are little-endian on disk.
type Description struct {
	EngineType  EngineType  // block or stream engine tag
	KeySize     uint32      // key length in bytes
	IvSize      uint32      // iv length in bytes
	CipherMode  ModeType    // CBC | CFB | CTR | OFB | None
	PaddingMode PaddingType // X923 | PKCS7 | ISO7816 | Zero | None
	BlockSize   uint32      // cipher block in bytes, 16 or 32
	RoundCount  uint32      // for configurable engines
	KdfEngine   DigestType  // digest driving the HMAC-KDF inside extended engines
	MacSize     uint32      // 0 disables authentication
	MacEngine   DigestType  // digest for HMAC authentication
}

// SubkeySize returns the byte count of one sub-key set built from this
// description: key, iv and MAC key material back to back.
func (d *Description) SubkeySize() int {
	return int(d.KeySize + d.IvSize + d.MacSize)
}

// Validate checks the description for internal consistency.
func (d *Description) Validate() error {
	const op = "suite.Validate"
	if d.EngineType == EngineNone {
		return cryptoerr.New(op, cryptoerr.ErrUnsupportedPrimitive, "engine tag is zero")
	}
	if d.KeySize == 0 {
		return cryptoerr.New(op, cryptoerr.ErrInvalidKeySize, "key size is zero")
	}
	if d.BlockSize != 16 && d.BlockSize != 32 && d.EngineType == EngineSHX {
		return cryptoerr.New(op, cryptoerr.ErrInvalidArgument, "block size %d", d.BlockSize)
	}
	if d.MacSize > 0 && d.MacEngine == DigestNone {
		return cryptoerr.New(op, cryptoerr.ErrUnsupportedPrimitive, "mac size %d with no mac digest", d.MacSize)
	}
	return nil
}

// Equal reports whether two descriptions are field-wise identical.
func (d *Description) Equal(o *Description) bool {
	return *d == *o
}

// Clone returns a deep copy.
func (d *Description) Clone() *Description {
	c := *d
	return &c
}

// MarshalBinary encodes the description into its 40-byte wire form.
func (d *Description) MarshalBinary() ([]byte, error) {
	b := make([]byte, DescriptionSize)
	binary.LittleEndian.PutUint32(b[0:], uint32(d.EngineType))
	binary.LittleEndian.PutUint32(b[4:], d.KeySize)
	binary.LittleEndian.PutUint32(b[8:], d.IvSize)
	binary.LittleEndian.PutUint32(b[12:], uint32(d.CipherMode))
	binary.LittleEndian.PutUint32(b[16:], uint32(d.PaddingMode))
	binary.LittleEndian.PutUint32(b[20:], d.BlockSize)
	binary.LittleEndian.PutUint32(b[24:], d.RoundCount)
	binary.LittleEndian.PutUint32(b[28:], uint32(d.KdfEngine))
	binary.LittleEndian.PutUint32(b[32:], d.MacSize)
	binary.LittleEndian.PutUint32(b[36:], uint32(d.MacEngine))
	return b, nil
}

// UnmarshalBinary decodes a 40-byte wire form.
func (d *Description) UnmarshalBinary(b []byte) error {
	if len(b) < DescriptionSize {
		return cryptoerr.New("suite.UnmarshalBinary", cryptoerr.ErrStreamTooSmall,
			"%d of %d bytes", len(b), DescriptionSize)
	}
	d.EngineType = EngineType(binary.LittleEndian.Uint32(b[0:]))
	d.KeySize = binary.LittleEndian.Uint32(b[4:])
	d.IvSize = binary.LittleEndian.Uint32(b[8:])
	d.CipherMode = ModeType(binary.LittleEndian.Uint32(b[12:]))
	d.PaddingMode = PaddingType(binary.LittleEndian.Uint32(b[16:]))
	d.BlockSize = binary.LittleEndian.Uint32(b[20:])
	d.RoundCount = binary.LittleEndian.Uint32(b[24:])
	d.KdfEngine = DigestType(binary.LittleEndian.Uint32(b[28:]))
	d.MacSize = binary.LittleEndian.Uint32(b[32:])
	d.MacEngine = DigestType(binary.LittleEndian.Uint32(b[36:]))
	return nil
}
