package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"budgetapp/chatsync/internal/model"
)

type pgMessageRepository struct {
	db *gorm.DB
}

func NewPGMessageRepository(db *gorm.DB) MessageRepository {
	return &pgMessageRepository{db: db}
}

func (r *pgMessageRepository) ListByRoom(ctx context.Context, roomID uuid.UUID, limit int) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	reverseMessages(msgs)
	return msgs, nil
}

func (r *pgMessageRepository) Create(ctx context.Context, msg *model.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}
