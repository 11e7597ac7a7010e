package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"budgetapp/chatsync/internal/service"
	"budgetapp/chatsync/pkg/response"
)

var errBadParam = errors.New("bad path parameter")

func uuidParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return uuid.Nil, errBadParam
	}
	return id, nil
}

func int64Param(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return 0, errBadParam
	}
	return id, nil
}

// intQuery returns def when the query parameter is absent.
func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return 0, errBadParam
	}
	return n, nil
}

// writeServiceError maps service errors to responses.
func writeServiceError(c *gin.Context, logger *zap.Logger, err error, action string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(c, "not found")
	case errors.Is(err, service.ErrRemoteUnavailable), errors.Is(err, service.ErrLiveUnavailable):
		response.ServiceUnavailable(c, err.Error())
	default:
		logger.Error(action+" failed", zap.Error(err))
		response.InternalError(c, "failed to "+action)
	}
}
