package model

import "time"

// CacheRecord backs the postgres durable cache tier.
type CacheRecord struct {
	Key       string    `gorm:"type:varchar(512);primaryKey"`
	Payload   []byte    `gorm:"type:bytea;not null"`
	ExpiresAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (CacheRecord) TableName() string { return "cache_entries" }
