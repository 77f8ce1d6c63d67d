package metadata

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// --- Generic Accessors ---

// GetValue retrieves a value for a given key from the metadata table.
func GetValue(db *gorm.DB, key string) (string, error) {
	var meta Metadata
	err := db.Where("key = ?", key).First(&meta).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// If the key doesn't exist, return an empty string, which is a valid default.
			return "", nil
		}
		return "", err
	}
	return meta.Value, nil
}

// SetValue creates or updates a value for a given key within a transaction.
func SetValue(db *gorm.DB, key, value string) error {
	// Use GORM's OnConflict clause for an efficient and atomic "upsert" operation.
	// It will update the 'value' column if a record with the same 'key' already exists.
	meta := Metadata{
		Key:   key,
		Value: value,
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&meta).Error
}

// --- Specific Helpers for Type Conversion ---

// GetLastExposureSnapshotAt retrieves and parses the last snapshot timestamp.
// The zero time is returned when no snapshot has been taken yet.
func GetLastExposureSnapshotAt(db *gorm.DB) (time.Time, error) {
	valueStr, err := GetValue(db, LastExposureSnapshotAtKey)
	if err != nil {
		return time.Time{}, err
	}
	if valueStr == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, valueStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("无法解析元数据 '%s' 的值: %w", LastExposureSnapshotAtKey, err)
	}
	return t, nil
}

// SetLastExposureSnapshotAt formats and sets the last snapshot timestamp.
func SetLastExposureSnapshotAt(db *gorm.DB, t time.Time) error {
	return SetValue(db, LastExposureSnapshotAtKey, t.UTC().Format(time.RFC3339))
}

// GetSnapshotServedRounds retrieves and parses the served-rounds counter as of
// the last snapshot.
func GetSnapshotServedRounds(db *gorm.DB) (uint64, error) {
	valueStr, err := GetValue(db, SnapshotServedRoundsKey)
	if err != nil {
		return 0, err
	}
	if valueStr == "" {
		return 0, nil
	}
	count, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("无法解析元数据 '%s' 的值: %w", SnapshotServedRoundsKey, err)
	}
	return count, nil
}

// SetSnapshotServedRounds formats and sets the served-rounds counter.
func SetSnapshotServedRounds(db *gorm.DB, count uint64) error {
	return SetValue(db, SnapshotServedRoundsKey, strconv.FormatUint(count, 10))
}
