package domain

import "time"

// CartDocument is the SQL row backing one persisted cart. The whole cart is
// stored as a single JSON document and always written as a unit.
type CartDocument struct {
	Key       string    `gorm:"type:varchar(191);primaryKey"`
	Document  string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"index"`
}

// TableName returns the database table name for CartDocument.
func (CartDocument) TableName() string { return "cart_documents" }

// CacheRecord is the SQL row backing one cached product set, keyed by
// upstream source and upstream key (shop, store or playlist id).
type CacheRecord struct {
	Source    string `gorm:"type:varchar(32);primaryKey"`
	Key       string `gorm:"type:varchar(191);primaryKey"`
	Items     string `gorm:"type:text;not null"`
	Timestamp int64  `gorm:"not null"`
}

// TableName returns the database table name for CacheRecord.
func (CacheRecord) TableName() string { return "cache_entries" }
