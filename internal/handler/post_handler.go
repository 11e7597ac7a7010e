package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"budgetapp/chatsync/internal/service"
	"budgetapp/chatsync/pkg/response"
)

type PostHandler struct {
	postService service.PostService
	logger      *zap.Logger
}

func NewPostHandler(postService service.PostService, logger *zap.Logger) *PostHandler {
	return &PostHandler{postService: postService, logger: logger}
}

type CreatePostRequest struct {
	AuthorID uuid.UUID `json:"author_id" binding:"required"`
	Title    string    `json:"title" binding:"required"`
	Content  string    `json:"content"`
}

// List returns one page of posts, newest first.
func (h *PostHandler) List(c *gin.Context) {
	limit, err := intQuery(c, "limit", 20)
	if err != nil {
		return
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil {
		return
	}

	posts, err := h.postService.ListPosts(c.Request.Context(), limit, offset)
	if err != nil {
		writeServiceError(c, h.logger, err, "list posts")
		return
	}
	response.Success(c, posts)
}

func (h *PostHandler) Get(c *gin.Context) {
	id, err := int64Param(c, "id")
	if err != nil {
		return
	}

	post, err := h.postService.GetPost(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, h.logger, err, "get post")
		return
	}
	response.Success(c, post)
}

// ListByUser returns every post of one author.
func (h *PostHandler) ListByUser(c *gin.Context) {
	userID, err := uuidParam(c, "id")
	if err != nil {
		return
	}

	posts, err := h.postService.ListUserPosts(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, h.logger, err, "list user posts")
		return
	}
	response.Success(c, posts)
}

func (h *PostHandler) Create(c *gin.Context) {
	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	post, err := h.postService.CreatePost(c.Request.Context(), req.AuthorID, req.Title, req.Content)
	if err != nil {
		writeServiceError(c, h.logger, err, "create post")
		return
	}
	response.Created(c, post)
}

func (h *PostHandler) Delete(c *gin.Context) {
	id, err := int64Param(c, "id")
	if err != nil {
		return
	}

	if err := h.postService.DeletePost(c.Request.Context(), id); err != nil {
		writeServiceError(c, h.logger, err, "delete post")
		return
	}
	response.Success(c, nil)
}
