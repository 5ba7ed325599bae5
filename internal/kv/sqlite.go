package kv

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Slot maps to the slots table.
type Slot struct {
	Key   string `gorm:"primaryKey"`
	Value []byte
}

// SQLiteStore keeps slots as rows in a gorm-managed table.
type SQLiteStore struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) the database at dsn and migrates the slots
// table. Use "file::memory:?cache=shared" for a throwaway database.
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("kv: open sqlite %s: %w", dsn, err)
	}
	if err := db.AutoMigrate(&Slot{}); err != nil {
		return nil, fmt.Errorf("kv: migrate slots table: %w", err)
	}
	return NewSQLiteStore(db), nil
}

func NewSQLiteStore(db *gorm.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Read(slot string) ([]byte, error) {
	if err := ValidateSlot(slot); err != nil {
		return nil, err
	}
	var row Slot
	// Find instead of First: a missing row is a normal outcome here.
	result := s.db.Where("key = ?", slot).Find(&row)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to read slot %s: %w", slot, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return row.Value, nil
}

func (s *SQLiteStore) Write(slot string, data []byte) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}
	row := Slot{Key: slot, Value: data}
	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&row)
	if result.Error != nil {
		return fmt.Errorf("failed to write slot %s: %w", slot, result.Error)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
