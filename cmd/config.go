// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/keyparcel/keyparcel/internal/db"
	"github.com/keyparcel/keyparcel/keys"
	"github.com/keyparcel/keyparcel/suite"
)

// Log configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Keystore registry configuration
type KeystoreConfig struct {
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`
}

func (kc *KeystoreConfig) getState() (*db.State, error) {
	if kc.DSN == "" {
		return nil, errors.New("keystore configuration error: dsn is required")
	}
	kc.Type = strings.ToLower(kc.Type)
	if kc.Type != "sqlite" && kc.Type != "postgres" {
		return nil, fmt.Errorf("unsupported keystore type: %s (must be 'sqlite' or 'postgres')", kc.Type)
	}
	return db.InitDb(kc.Type, kc.DSN)
}

// IdentityConfig carries the local authority fields. Values are hex strings
// or plain text; plain text is padded with zeros to the field size.
type IdentityConfig struct {
	Origin     string `mapstructure:"origin"`
	Domain     string `mapstructure:"domain"`
	Target     string `mapstructure:"target"`
	PackageID  string `mapstructure:"package_id"`
	PackageTag string `mapstructure:"package_tag"`
}

// CipherConfig carries the default cipher description for create commands.
type CipherConfig struct {
	Engine  string `mapstructure:"engine"`
	Mode    string `mapstructure:"mode"`
	Padding string `mapstructure:"padding"`
	KeySize uint32 `mapstructure:"key_size"`
	IvSize  uint32 `mapstructure:"iv_size"`
	MacSize uint32 `mapstructure:"mac_size"`
	Rounds  uint32 `mapstructure:"rounds"`
	Kdf     string `mapstructure:"kdf"`
	MacAlg  string `mapstructure:"mac"`
}

// KeyparcelConfig is the full configuration file contents.
type KeyparcelConfig struct {
	Log      LogConfig      `mapstructure:"log"`
	Keystore KeystoreConfig `mapstructure:"keystore"`
	Identity IdentityConfig `mapstructure:"identity"`
	Cipher   CipherConfig   `mapstructure:"cipher"`
}

var config KeyparcelConfig

// loadConfig decodes the viper state into the typed configuration.
func loadConfig() error {
	config = KeyparcelConfig{}
	settings := viper.AllSettings()
	if err := mapstructure.Decode(settings, &config); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}
	return config.Identity.validate()
}

// parseID decodes a field value into exactly n bytes: hex when it parses,
// zero-padded text otherwise. Values longer than n are an error.
func parseID(value string, n int) ([]byte, error) {
	out := make([]byte, n)
	if value == "" {
		return out, nil
	}
	if raw, err := hex.DecodeString(value); err == nil {
		if len(raw) > n {
			return nil, fmt.Errorf("id %q is %d bytes, field holds %d", value, len(raw), n)
		}
		copy(out, raw)
		return out, nil
	}
	if len(value) > n {
		return nil, fmt.Errorf("id %q is %d characters, field holds %d", value, len(value), n)
	}
	copy(out, value)
	return out, nil
}

func (ic *IdentityConfig) validate() error {
	if ic.Origin == "" {
		return nil // identity is optional until a command needs it
	}
	_, err := ic.authority(0, 0)
	return err
}

// authority builds the local authority record from the configured identity.
func (ic *IdentityConfig) authority(policy, option int64) (*keys.Authority, error) {
	if ic.Origin == "" {
		return nil, errors.New("the identity.origin configuration value is required")
	}
	a := &keys.Authority{KeyPolicy: policy, OptionFlag: option}
	for _, f := range []struct {
		value string
		dst   []byte
	}{
		{ic.Origin, a.OriginID[:]},
		{ic.Domain, a.DomainID[:]},
		{ic.Target, a.TargetID[:]},
		{ic.PackageID, a.PackageID[:]},
		{ic.PackageTag, a.PackageTag[:]},
	} {
		b, err := parseID(f.value, len(f.dst))
		if err != nil {
			return nil, err
		}
		copy(f.dst, b)
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("identity.origin needs at least 8 non-zero bytes: %w", err)
	}
	return a, nil
}

// description builds a cipher description from the configured defaults,
// filling gaps with the library defaults.
func (cc *CipherConfig) description() (*suite.Description, error) {
	d := &suite.Description{
		EngineType:  suite.EngineSHX,
		KeySize:     32,
		IvSize:      16,
		CipherMode:  suite.ModeCTR,
		PaddingMode: suite.PaddingNone,
		BlockSize:   16,
		RoundCount:  0,
		KdfEngine:   suite.DigestSHA512,
	}
	if cc.Engine != "" {
		t, ok := suite.EngineByName(cc.Engine)
		if !ok {
			return nil, fmt.Errorf("unknown engine %q", cc.Engine)
		}
		d.EngineType = t
	}
	if cc.Mode != "" {
		t, ok := suite.ModeByName(cc.Mode)
		if !ok {
			return nil, fmt.Errorf("unknown mode %q", cc.Mode)
		}
		d.CipherMode = t
	}
	if cc.Padding != "" {
		t, ok := suite.PaddingByName(cc.Padding)
		if !ok {
			return nil, fmt.Errorf("unknown padding %q", cc.Padding)
		}
		d.PaddingMode = t
	}
	if cc.Kdf != "" {
		t, ok := suite.DigestByName(cc.Kdf)
		if !ok {
			return nil, fmt.Errorf("unknown kdf digest %q", cc.Kdf)
		}
		d.KdfEngine = t
	}
	if cc.MacAlg != "" {
		t, ok := suite.DigestByName(cc.MacAlg)
		if !ok {
			return nil, fmt.Errorf("unknown mac digest %q", cc.MacAlg)
		}
		d.MacEngine = t
	}
	if cc.KeySize != 0 {
		d.KeySize = cc.KeySize
	}
	if cc.IvSize != 0 {
		d.IvSize = cc.IvSize
	}
	d.MacSize = cc.MacSize
	if cc.Rounds != 0 {
		d.RoundCount = cc.Rounds
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}
