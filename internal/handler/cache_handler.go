package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"budgetapp/chatsync/internal/cache"
	"budgetapp/chatsync/pkg/response"
)

// CacheHandler exposes cache maintenance.
type CacheHandler struct {
	cache  *cache.Manager
	logger *zap.Logger
}

func NewCacheHandler(c *cache.Manager, logger *zap.Logger) *CacheHandler {
	return &CacheHandler{cache: c, logger: logger}
}

func (h *CacheHandler) ClearAll(c *gin.Context) {
	h.cache.ClearAll(c.Request.Context())
	h.logger.Info("cache cleared")
	response.Success(c, nil)
}

func (h *CacheHandler) ClearExpired(c *gin.Context) {
	removed := h.cache.ClearExpired(c.Request.Context())
	response.Success(c, gin.H{"removed": removed})
}

func (h *CacheHandler) Remove(c *gin.Context) {
	key := c.Param("key")
	if key == "" {
		response.BadRequest(c, "key is required")
		return
	}
	h.cache.Remove(c.Request.Context(), key)
	response.Success(c, nil)
}
