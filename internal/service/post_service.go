package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"budgetapp/chatsync/internal/cache"
	"budgetapp/chatsync/internal/model"
	"budgetapp/chatsync/internal/repository"
)

type PostService interface {
	ListPosts(ctx context.Context, limit, offset int) ([]model.Post, error)
	GetPost(ctx context.Context, id int64) (*model.Post, error)
	ListUserPosts(ctx context.Context, userID uuid.UUID) ([]model.Post, error)
	CreatePost(ctx context.Context, authorID uuid.UUID, title, content string) (*model.Post, error)
	DeletePost(ctx context.Context, id int64) error
}

type postService struct {
	posts   repository.PostRepository
	cache   *cache.Manager
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewPostService(posts repository.PostRepository, c *cache.Manager, cb *gobreaker.CircuitBreaker, logger *zap.Logger) PostService {
	return &postService{posts: posts, cache: c, breaker: cb, logger: logger.Named("posts")}
}

var (
	postCodec     cache.JSONCodec[model.Post]
	postListCodec cache.JSONCodec[[]model.Post]
)

func (s *postService) ListPosts(ctx context.Context, limit, offset int) ([]model.Post, error) {
	if limit <= 0 || offset < 0 {
		return nil, fmt.Errorf("%w: limit must be positive and offset non-negative", ErrInvalidInput)
	}
	return cache.GetOrPut(ctx, s.cache, cache.PostsListKey(limit, offset), s.cache.DefaultTTL(), postListCodec,
		func(ctx context.Context) ([]model.Post, error) {
			return remote(s.breaker, func() ([]model.Post, error) {
				return s.posts.List(ctx, limit, offset)
			})
		})
}

func (s *postService) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	post, err := cache.GetOrPut(ctx, s.cache, cache.PostKey(id), s.cache.DefaultTTL(), postCodec,
		func(ctx context.Context) (model.Post, error) {
			p, err := remote(s.breaker, func() (*model.Post, error) {
				return s.posts.GetByID(ctx, id)
			})
			if err != nil {
				return model.Post{}, err
			}
			return *p, nil
		})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *postService) ListUserPosts(ctx context.Context, userID uuid.UUID) ([]model.Post, error) {
	return cache.GetOrPut(ctx, s.cache, cache.UserPostsKey(userID), s.cache.DefaultTTL(), postListCodec,
		func(ctx context.Context) ([]model.Post, error) {
			return remote(s.breaker, func() ([]model.Post, error) {
				return s.posts.ListByAuthor(ctx, userID)
			})
		})
}

func (s *postService) CreatePost(ctx context.Context, authorID uuid.UUID, title, content string) (*model.Post, error) {
	title = strings.TrimSpace(title)
	if title == "" || authorID == uuid.Nil {
		return nil, fmt.Errorf("%w: title and author are required", ErrInvalidInput)
	}

	post := &model.Post{AuthorID: authorID, Title: title, Content: content}
	if err := remoteExec(s.breaker, func() error { return s.posts.Create(ctx, post) }); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	s.invalidateLists(ctx, authorID)
	return post, nil
}

func (s *postService) DeletePost(ctx context.Context, id int64) error {
	post, err := s.GetPost(ctx, id)
	if err != nil {
		return err
	}
	if err := remoteExec(s.breaker, func() error { return s.posts.Delete(ctx, id) }); err != nil {
		return err
	}
	s.cache.Remove(ctx, cache.PostKey(id))
	s.invalidateLists(ctx, post.AuthorID)
	return nil
}

func (s *postService) invalidateLists(ctx context.Context, authorID uuid.UUID) {
	n := s.cache.RemovePrefix(ctx, cache.PrefixPostsList)
	s.cache.Remove(ctx, cache.UserPostsKey(authorID))
	s.logger.Debug("post lists invalidated", zap.Int("pages", n), zap.Stringer("author", authorID))
}
