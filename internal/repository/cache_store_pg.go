package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"budgetapp/chatsync/internal/model"
)

type pgCacheStore struct {
	db *gorm.DB
}

func NewPGCacheStore(db *gorm.DB) CacheStore {
	return &pgCacheStore{db: db}
}

func (s *pgCacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	rec := model.CacheRecord{Key: key, Payload: value}
	if ttl > 0 {
		rec.ExpiresAt = time.Now().Add(ttl)
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "expires_at", "updated_at"}),
	}).Create(&rec).Error
}

func (s *pgCacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	var rec model.CacheRecord
	err := s.db.WithContext(ctx).First(&rec, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !rec.ExpiresAt.IsZero() && time.Now().After(rec.ExpiresAt) {
		return nil, s.Delete(ctx, key)
	}
	return rec.Payload, nil
}

func (s *pgCacheStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Delete(&model.CacheRecord{}, "key = ?", key).Error
}

func (s *pgCacheStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).Model(&model.CacheRecord{}).Pluck("key", &keys).Error
	return keys, err
}

func (s *pgCacheStore) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&model.CacheRecord{}).Error
}
