// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

// Package db keeps the keystore registry: a record of every package and
// volume key the CLI has created, stored in a gorm-managed database. The
// registry is bookkeeping only; authentication and key material live solely
// in the key files themselves.
package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// KeyRecord is one registry row.
type KeyRecord struct {
	ID          uint   `gorm:"primarykey"`
	Path        string `gorm:"uniqueIndex"`
	PackageID   string // hex of the authority package id; empty for volumes
	Kind        string // "package", "volume", "cipher", "session"
	Policy      int64
	SubkeyCount int
	Engine      string
	CreatedAt   time.Time
}

// State wraps the open registry database.
type State struct {
	DB *gorm.DB
}

// InitDb opens the registry using the configured backend and migrates the
// schema. Supported types are "sqlite" and "postgres".
func InitDb(dbType, dsn string) (*State, error) {
	var dialector gorm.Dialector
	switch dbType {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open keystore database: %w", err)
	}
	if err := gdb.AutoMigrate(&KeyRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate keystore schema: %w", err)
	}
	return &State{DB: gdb}, nil
}

// Record upserts a registry row keyed by path.
func (s *State) Record(rec *KeyRecord) error {
	var existing KeyRecord
	err := s.DB.Where("path = ?", rec.Path).First(&existing).Error
	if err == nil {
		rec.ID = existing.ID
		return s.DB.Save(rec).Error
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	return s.DB.Create(rec).Error
}

// List returns every registry row, newest first.
func (s *State) List() ([]KeyRecord, error) {
	var recs []KeyRecord
	if err := s.DB.Order("created_at desc").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// Forget removes the row for a path, if present.
func (s *State) Forget(path string) error {
	return s.DB.Where("path = ?", path).Delete(&KeyRecord{}).Error
}
