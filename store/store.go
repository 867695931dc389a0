// Package store persists pairing credentials across connections. It uses
// GORM over sqlite the way the rest of the pack wires up a local
// credential database: an AutoMigrate'd model plus a thin repository on
// top of *gorm.DB.
package store

import (
	"errors"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cvsouth/flic2-go/flic2err"
	"github.com/cvsouth/flic2-go/flic2model"
)

// credentialRow is the GORM model backing the credentials table. Address
// is stored uppercased and is the primary key, matching the one-button
// per-address invariant the pairing handshake assumes.
type credentialRow struct {
	Address         string `gorm:"primaryKey"`
	PairingID       []byte
	PairingKey      []byte
	ButtonUUID      string
	Name            string
	SerialNumber    string
	FirmwareVersion uint32
	LastBootID      *uint32
	LastEventCount  *uint32
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (credentialRow) TableName() string { return "credentials" }

// Store is the credential-persistence contract the client package depends
// on; GormStore is its only implementation, but callers may substitute a
// fake for tests.
type Store interface {
	Save(flic2model.PairingCredentials) error
	Load(address string) (flic2model.PairingCredentials, error)
	Delete(address string) error
	ListAll() ([]flic2model.PairingCredentials, error)
	UpdateEventTracking(address string, bootID, eventCount *uint32) error
	Exists(address string) (bool, error)
}

// GormStore is a sqlite-backed Store.
type GormStore struct {
	db *gorm.DB
}

// Open opens (creating if necessary) the sqlite database at path and runs
// its migration.
func Open(path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, flic2err.Storage(err, "open credential database %q", path)
	}

	if err := db.AutoMigrate(&credentialRow{}); err != nil {
		return nil, flic2err.Storage(err, "migrate credential database")
	}

	return &GormStore{db: db}, nil
}

func normalizeAddress(address string) string {
	return strings.ToUpper(address)
}

// Save inserts or replaces the row for creds.Address.
func (s *GormStore) Save(creds flic2model.PairingCredentials) error {
	row := credentialRow{
		Address:         normalizeAddress(creds.Address),
		PairingID:       append([]byte(nil), creds.PairingID[:]...),
		PairingKey:      append([]byte(nil), creds.PairingKey[:]...),
		ButtonUUID:      creds.ButtonUUID,
		Name:            creds.Name,
		SerialNumber:    creds.SerialNumber,
		FirmwareVersion: creds.FirmwareVersion,
		LastBootID:      creds.LastBootID,
		LastEventCount:  creds.LastEventCount,
	}

	result := s.db.Save(&row)
	if result.Error != nil {
		return flic2err.Storage(result.Error, "save credentials for %s", creds.Address)
	}
	return nil
}

// Load fetches the stored credentials for address.
func (s *GormStore) Load(address string) (flic2model.PairingCredentials, error) {
	var row credentialRow
	result := s.db.First(&row, "address = ?", normalizeAddress(address))
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return flic2model.PairingCredentials{}, flic2err.Storage(result.Error, "no credentials stored for %s", address)
	}
	if result.Error != nil {
		return flic2model.PairingCredentials{}, flic2err.Storage(result.Error, "load credentials for %s", address)
	}

	return rowToCredentials(row), nil
}

// Delete removes the stored credentials for address, if any.
func (s *GormStore) Delete(address string) error {
	result := s.db.Delete(&credentialRow{}, "address = ?", normalizeAddress(address))
	if result.Error != nil {
		return flic2err.Storage(result.Error, "delete credentials for %s", address)
	}
	return nil
}

// ListAll returns every stored credential, most recently updated first.
func (s *GormStore) ListAll() ([]flic2model.PairingCredentials, error) {
	var rows []credentialRow
	result := s.db.Order("updated_at DESC").Find(&rows)
	if result.Error != nil {
		return nil, flic2err.Storage(result.Error, "list credentials")
	}

	out := make([]flic2model.PairingCredentials, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowToCredentials(row))
	}
	return out, nil
}

// UpdateEventTracking patches LastBootID/LastEventCount without touching
// the pairing key material. Either argument may be nil to leave that
// column unchanged.
func (s *GormStore) UpdateEventTracking(address string, bootID, eventCount *uint32) error {
	updates := map[string]any{}
	if bootID != nil {
		updates["last_boot_id"] = *bootID
	}
	if eventCount != nil {
		updates["last_event_count"] = *eventCount
	}
	if len(updates) == 0 {
		return nil
	}

	result := s.db.Model(&credentialRow{}).Where("address = ?", normalizeAddress(address)).Updates(updates)
	if result.Error != nil {
		return flic2err.Storage(result.Error, "update event tracking for %s", address)
	}
	return nil
}

// Exists reports whether credentials are stored for address.
func (s *GormStore) Exists(address string) (bool, error) {
	var count int64
	result := s.db.Model(&credentialRow{}).Where("address = ?", normalizeAddress(address)).Count(&count)
	if result.Error != nil {
		return false, flic2err.Storage(result.Error, "check existence for %s", address)
	}
	return count > 0, nil
}

func rowToCredentials(row credentialRow) flic2model.PairingCredentials {
	creds := flic2model.PairingCredentials{
		Address:         row.Address,
		ButtonUUID:      row.ButtonUUID,
		Name:            row.Name,
		SerialNumber:    row.SerialNumber,
		FirmwareVersion: row.FirmwareVersion,
		LastBootID:      row.LastBootID,
		LastEventCount:  row.LastEventCount,
	}
	copy(creds.PairingID[:], row.PairingID)
	copy(creds.PairingKey[:], row.PairingKey)
	return creds
}
