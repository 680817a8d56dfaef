package router

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"shop/internal/model"

	"github.com/gin-gonic/gin"
)

// writeError 把业务错误映射成 HTTP 状态码，5xx 不向客户端暴露底层错误。
func writeError(c *gin.Context, log *slog.Logger, err error) {
	status := statusOf(err)
	body := gin.H{"code": status, "msg": err.Error()}

	var se *model.InsufficientStockError
	if errors.As(err, &se) {
		body["product_id"] = se.ProductID
		body["available"] = se.Available
	}
	if status >= http.StatusInternalServerError {
		log.ErrorContext(c.Request.Context(), "request failed",
			slog.String("route", c.FullPath()), slog.String("error", err.Error()))
		body = gin.H{"code": status, "msg": "internal server error"}
	}
	c.JSON(status, body)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidQuantity),
		errors.Is(err, model.ErrInsufficientStock),
		errors.Is(err, model.ErrEmptyCart),
		errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrProductNotFound),
		errors.Is(err, model.ErrItemNotInCart),
		errors.Is(err, model.ErrUserNotFound),
		errors.Is(err, model.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrUserExists),
		errors.Is(err, model.ErrInvalidStatusTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "msg": msg})
}

// uintParam 解析路径中的数字 ID，失败时直接写 400。
func uintParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}
