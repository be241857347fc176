package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/talesofaneria/storefront/internal/cart"
	"github.com/talesofaneria/storefront/internal/domain"
)

// GetCartDocument returns the serialized cart stored under key, or
// ErrNotFound.
func GetCartDocument(ctx context.Context, db *gorm.DB, key string) (string, error) {
	var row domain.CartDocument
	if err := db.WithContext(ctx).Where("key = ?", key).First(&row).Error; err != nil {
		return "", err
	}
	return row.Document, nil
}

// PutCartDocument inserts or replaces the document stored under key.
func PutCartDocument(ctx context.Context, db *gorm.DB, key, doc string) error {
	row := domain.CartDocument{Key: key, Document: doc, UpdatedAt: time.Now().UTC()}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"document", "updated_at"}),
		}).
		Create(&row).Error
}

// DeleteCartDocument removes the document stored under key. Deleting a
// missing key is not an error.
func DeleteCartDocument(ctx context.Context, db *gorm.DB, key string) error {
	return db.WithContext(ctx).Where("key = ?", key).Delete(&domain.CartDocument{}).Error
}

// PurgeCartDocuments deletes documents not written since before. It returns
// the number of rows removed.
func PurgeCartDocuments(ctx context.Context, db *gorm.DB, before time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("updated_at < ?", before).Delete(&domain.CartDocument{})
	return res.RowsAffected, res.Error
}

// CartStore adapts the cart document functions to cart.Storage.
type CartStore struct {
	DB *gorm.DB
}

// Get implements cart.Storage.
func (s CartStore) Get(ctx context.Context, key string) ([]byte, error) {
	doc, err := GetCartDocument(ctx, s.DB, key)
	if errors.Is(err, ErrNotFound) {
		return nil, cart.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(doc), nil
}

// Set implements cart.Storage.
func (s CartStore) Set(ctx context.Context, key string, doc []byte) error {
	return PutCartDocument(ctx, s.DB, key, string(doc))
}

// Delete implements cart.Storage.
func (s CartStore) Delete(ctx context.Context, key string) error {
	return DeleteCartDocument(ctx, s.DB, key)
}
