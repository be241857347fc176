package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/talesofaneria/storefront/internal/domain"
)

// IdempotencyKeys records which Idempotency-Key values a session has spent
// on cart writes. Keys are scoped per session and expire after TTL.
type IdempotencyKeys struct {
	DB  *gorm.DB
	TTL time.Duration

	now func() time.Time
}

// NewIdempotencyKeys returns a store whose keys live for ttl.
func NewIdempotencyKeys(db *gorm.DB, ttl time.Duration) *IdempotencyKeys {
	return &IdempotencyKeys{DB: db, TTL: ttl, now: time.Now}
}

func (k *IdempotencyKeys) clock() time.Time {
	if k.now == nil {
		return time.Now().UTC()
	}
	return k.now().UTC()
}

// Seen reports whether session spent key and the record is live at now.
// Blank arguments are never seen.
func (k *IdempotencyKeys) Seen(ctx context.Context, session, key string, now time.Time) (bool, error) {
	if strings.TrimSpace(session) == "" || strings.TrimSpace(key) == "" {
		return false, nil
	}
	var rec domain.Idempotency
	err := k.DB.WithContext(ctx).
		Where("session_id = ? AND key = ? AND expires_at > ?", session, key, now).
		Take(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// Claim spends key for session. It reports false when a live record already
// holds the key; an expired one is replaced.
func (k *IdempotencyKeys) Claim(ctx context.Context, session, key string, status int) (bool, error) {
	now := k.clock()
	claimed := false
	err := k.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ? AND key = ? AND expires_at <= ?", session, key, now).
			Delete(&domain.Idempotency{}).Error; err != nil {
			return err
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&domain.Idempotency{
			ID:        uuid.NewString(),
			SessionID: session,
			Key:       key,
			Status:    status,
			CreatedAt: now,
			ExpiresAt: now.Add(k.TTL),
		})
		claimed = res.RowsAffected == 1
		return res.Error
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

// PurgeExpiredIdempotency deletes records that expired at or before now.
func PurgeExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}
