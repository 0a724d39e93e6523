// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package keys

import (
	"encoding/binary"

	"github.com/keyparcel/keyparcel/cryptoerr"
	"github.com/keyparcel/keyparcel/suite"
)

// SessionHeaderSize is the packed session-key header: single-byte fields
// except the two-byte key size, trimmed for small carriers.
const SessionHeaderSize = 9

// SessionKey is the minimal single-use key envelope: a packed description
// followed by the raw key and iv.
type SessionKey struct {
	Description suite.Description
	Params      *Params
}

// NewSessionKey binds a description to its key material.
func NewSessionKey(d *suite.Description, p *Params) *SessionKey {
	return &SessionKey{Description: *d.Clone(), Params: p.Clone()}
}

// Destroy zeroizes the key material.
func (s *SessionKey) Destroy() {
	if s.Params != nil {
		s.Params.Destroy()
	}
}

// MarshalBinary encodes the packed form:
// engine(1) key_size(2) iv_size(1) mode(1) padding(1) block(1) rounds(1)
// kdf(1) key iv.
func (s *SessionKey) MarshalBinary() ([]byte, error) {
	const op = "keys.SessionKey.MarshalBinary"
	d := &s.Description
	if d.KeySize > 0xffff || d.IvSize > 0xff || d.BlockSize > 0xff || d.RoundCount > 0xff {
		return nil, cryptoerr.New(op, cryptoerr.ErrInvalidArgument, "description does not fit the packed form")
	}
	if uint32(len(s.Params.Key())) != d.KeySize || uint32(len(s.Params.IV())) != d.IvSize {
		return nil, cryptoerr.New(op, cryptoerr.ErrInvalidArgument,
			"material %d/%d bytes does not match description %d/%d",
			len(s.Params.Key()), len(s.Params.IV()), d.KeySize, d.IvSize)
	}
	b := make([]byte, 0, SessionHeaderSize+int(d.KeySize+d.IvSize))
	b = append(b, byte(d.EngineType))
	var ks [2]byte
	binary.LittleEndian.PutUint16(ks[:], uint16(d.KeySize))
	b = append(b, ks[:]...)
	b = append(b, byte(d.IvSize), byte(d.CipherMode), byte(d.PaddingMode),
		byte(d.BlockSize), byte(d.RoundCount), byte(d.KdfEngine))
	b = append(b, s.Params.Key()...)
	b = append(b, s.Params.IV()...)
	return b, nil
}

// UnmarshalBinary decodes the packed form.
func (s *SessionKey) UnmarshalBinary(b []byte) error {
	const op = "keys.SessionKey.UnmarshalBinary"
	if len(b) < SessionHeaderSize {
		return cryptoerr.New(op, cryptoerr.ErrStreamTooSmall, "%d of %d header bytes", len(b), SessionHeaderSize)
	}
	d := suite.Description{
		EngineType:  suite.EngineType(b[0]),
		KeySize:     uint32(binary.LittleEndian.Uint16(b[1:])),
		IvSize:      uint32(b[3]),
		CipherMode:  suite.ModeType(b[4]),
		PaddingMode: suite.PaddingType(b[5]),
		BlockSize:   uint32(b[6]),
		RoundCount:  uint32(b[7]),
		KdfEngine:   suite.DigestType(b[8]),
	}
	need := SessionHeaderSize + int(d.KeySize+d.IvSize)
	if len(b) < need {
		return cryptoerr.New(op, cryptoerr.ErrStreamTooSmall, "%d of %d bytes", len(b), need)
	}
	key := b[SessionHeaderSize : SessionHeaderSize+d.KeySize]
	iv := b[SessionHeaderSize+d.KeySize : need]
	s.Description = d
	s.Params = NewParams(key, iv, nil)
	return nil
}
