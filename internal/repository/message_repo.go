package repository

import (
	"context"

	"github.com/google/uuid"

	"budgetapp/chatsync/internal/model"
)

type MessageRepository interface {
	// ListByRoom returns the newest limit messages of a room, oldest first.
	ListByRoom(ctx context.Context, roomID uuid.UUID, limit int) ([]model.Message, error)
	Create(ctx context.Context, msg *model.Message) error
}

func reverseMessages(msgs []model.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
