package repo

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/talesofaneria/storefront/internal/catalog"
	"github.com/talesofaneria/storefront/internal/domain"
)

// GetCacheRecord returns the cached item set for (source, key), or
// ErrNotFound.
func GetCacheRecord(ctx context.Context, db *gorm.DB, source, key string) (*domain.CacheRecord, error) {
	var rec domain.CacheRecord
	err := db.WithContext(ctx).
		Where("source = ? AND key = ?", source, key).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// PutCacheRecord replaces the cached item set for (rec.Source, rec.Key).
func PutCacheRecord(ctx context.Context, db *gorm.DB, rec domain.CacheRecord) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"items", "timestamp"}),
		}).
		Create(&rec).Error
}

// DeleteCacheRecords removes cached sets for source; an empty key removes
// every key of the source.
func DeleteCacheRecords(ctx context.Context, db *gorm.DB, source, key string) error {
	q := db.WithContext(ctx).Where("source = ?", source)
	if key != "" {
		q = q.Where("key = ?", key)
	}
	return q.Delete(&domain.CacheRecord{}).Error
}

// CacheStore adapts the cache record functions to catalog.Store.
type CacheStore struct {
	DB *gorm.DB
}

// Load implements catalog.Store.
func (s CacheStore) Load(ctx context.Context, source, key string) (domain.CacheEntry, error) {
	rec, err := GetCacheRecord(ctx, s.DB, source, key)
	if errors.Is(err, ErrNotFound) {
		return domain.CacheEntry{}, catalog.ErrCacheMiss
	}
	if err != nil {
		return domain.CacheEntry{}, err
	}
	return domain.CacheEntry{Key: rec.Key, Items: json.RawMessage(rec.Items), Timestamp: rec.Timestamp}, nil
}

// Save implements catalog.Store.
func (s CacheStore) Save(ctx context.Context, source string, entry domain.CacheEntry) error {
	items := string(entry.Items)
	if items == "" {
		items = "[]"
	}
	return PutCacheRecord(ctx, s.DB, domain.CacheRecord{
		Source:    source,
		Key:       entry.Key,
		Items:     items,
		Timestamp: entry.Timestamp,
	})
}

// Delete implements catalog.Store.
func (s CacheStore) Delete(ctx context.Context, source, key string) error {
	if key == "" {
		return nil
	}
	return DeleteCacheRecords(ctx, s.DB, source, key)
}

// Clear implements catalog.Store.
func (s CacheStore) Clear(ctx context.Context, source string) error {
	return DeleteCacheRecords(ctx, s.DB, source, "")
}
