package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"budgetapp/chatsync/internal/model"
)

// The supabase repositories read and write the same tables as the pg ones,
// but through PostgREST so the service can run without a direct database
// connection. The postgrest client does not take a context; ctx is only
// checked before each request.

type supabasePostRepository struct {
	client *supabase.Client
}

func NewSupabasePostRepository(client *supabase.Client) PostRepository {
	return &supabasePostRepository{client: client}
}

func (r *supabasePostRepository) List(ctx context.Context, limit, offset int) ([]model.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var posts []model.Post
	_, err := r.client.From(model.Post{}.TableName()).
		Select("*", "", false).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Range(offset, offset+limit-1, "").
		ExecuteTo(&posts)
	if err != nil {
		return nil, fmt.Errorf("supabase list posts: %w", err)
	}
	return posts, nil
}

func (r *supabasePostRepository) GetByID(ctx context.Context, id int64) (*model.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var posts []model.Post
	_, err := r.client.From(model.Post{}.TableName()).
		Select("*", "", false).
		Eq("id", strconv.FormatInt(id, 10)).
		ExecuteTo(&posts)
	if err != nil {
		return nil, fmt.Errorf("supabase get post: %w", err)
	}
	if len(posts) == 0 {
		return nil, ErrNotFound
	}
	return &posts[0], nil
}

func (r *supabasePostRepository) ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]model.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var posts []model.Post
	_, err := r.client.From(model.Post{}.TableName()).
		Select("*", "", false).
		Eq("author_id", authorID.String()).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		ExecuteTo(&posts)
	if err != nil {
		return nil, fmt.Errorf("supabase list user posts: %w", err)
	}
	return posts, nil
}

func (r *supabasePostRepository) Create(ctx context.Context, post *model.Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	row := map[string]any{
		"author_id": post.AuthorID,
		"title":     post.Title,
		"content":   post.Content,
	}
	var created []model.Post
	_, err := r.client.From(model.Post{}.TableName()).
		Insert(row, false, "", "representation", "").
		ExecuteTo(&created)
	if err != nil {
		return fmt.Errorf("supabase create post: %w", err)
	}
	if len(created) > 0 {
		*post = created[0]
	}
	return nil
}

func (r *supabasePostRepository) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var deleted []model.Post
	_, err := r.client.From(model.Post{}.TableName()).
		Delete("representation", "").
		Eq("id", strconv.FormatInt(id, 10)).
		ExecuteTo(&deleted)
	if err != nil {
		return fmt.Errorf("supabase delete post: %w", err)
	}
	if len(deleted) == 0 {
		return ErrNotFound
	}
	return nil
}

type supabaseMessageRepository struct {
	client *supabase.Client
}

func NewSupabaseMessageRepository(client *supabase.Client) MessageRepository {
	return &supabaseMessageRepository{client: client}
}

func (r *supabaseMessageRepository) ListByRoom(ctx context.Context, roomID uuid.UUID, limit int) ([]model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var msgs []model.Message
	_, err := r.client.From(model.Message{}.TableName()).
		Select("*", "", false).
		Eq("room_id", roomID.String()).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		ExecuteTo(&msgs)
	if err != nil {
		return nil, fmt.Errorf("supabase list messages: %w", err)
	}
	reverseMessages(msgs)
	return msgs, nil
}

func (r *supabaseMessageRepository) Create(ctx context.Context, msg *model.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	row := map[string]any{
		"room_id":   msg.RoomID,
		"sender_id": msg.SenderID,
		"content":   msg.Content,
	}
	var created []model.Message
	_, err := r.client.From(model.Message{}.TableName()).
		Insert(row, false, "", "representation", "").
		ExecuteTo(&created)
	if err != nil {
		return fmt.Errorf("supabase create message: %w", err)
	}
	if len(created) > 0 {
		*msg = created[0]
	}
	return nil
}

type supabaseExpenseRepository struct {
	client *supabase.Client
}

func NewSupabaseExpenseRepository(client *supabase.Client) ExpenseRepository {
	return &supabaseExpenseRepository{client: client}
}

func (r *supabaseExpenseRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Expense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var expenses []model.Expense
	_, err := r.client.From(model.Expense{}.TableName()).
		Select("*", "", false).
		Eq("user_id", userID.String()).
		Order("spent_at", &postgrest.OrderOpts{Ascending: false}).
		ExecuteTo(&expenses)
	if err != nil {
		return nil, fmt.Errorf("supabase list expenses: %w", err)
	}
	return expenses, nil
}

func (r *supabaseExpenseRepository) ListByUserBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]model.Expense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var expenses []model.Expense
	_, err := r.client.From(model.Expense{}.TableName()).
		Select("*", "", false).
		Eq("user_id", userID.String()).
		Gte("spent_at", from.UTC().Format(time.RFC3339)).
		Lt("spent_at", to.UTC().Format(time.RFC3339)).
		Order("spent_at", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&expenses)
	if err != nil {
		return nil, fmt.Errorf("supabase list expenses in range: %w", err)
	}
	return expenses, nil
}

func (r *supabaseExpenseRepository) Create(ctx context.Context, expense *model.Expense) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	row := map[string]any{
		"user_id":  expense.UserID,
		"category": expense.Category,
		"amount":   expense.Amount,
		"currency": expense.Currency,
		"note":     expense.Note,
		"spent_at": expense.SpentAt.UTC(),
	}
	var created []model.Expense
	_, err := r.client.From(model.Expense{}.TableName()).
		Insert(row, false, "", "representation", "").
		ExecuteTo(&created)
	if err != nil {
		return fmt.Errorf("supabase create expense: %w", err)
	}
	if len(created) > 0 {
		*expense = created[0]
	}
	return nil
}
