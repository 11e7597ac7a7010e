package repository

import (
	"context"

	"github.com/google/uuid"

	"budgetapp/chatsync/internal/model"
)

type PostRepository interface {
	List(ctx context.Context, limit, offset int) ([]model.Post, error)
	GetByID(ctx context.Context, id int64) (*model.Post, error)
	ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]model.Post, error)
	Create(ctx context.Context, post *model.Post) error
	Delete(ctx context.Context, id int64) error
}
