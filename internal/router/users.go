package router

import (
	"log/slog"
	"net/http"

	"shop/internal/user"

	"github.com/gin-gonic/gin"
)

func register(svc *user.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
			FullName string `json:"full_name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		u, err := svc.Register(c.Request.Context(), user.RegisterInput{
			Username: req.Username,
			Email:    req.Email,
			Password: req.Password,
			FullName: req.FullName,
		})
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"code": 0, "data": u})
	}
}

// login 成功时返回用户信息和 token。
func login(svc *user.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		u, token, err := svc.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"user": u, "token": token}})
	}
}

func getUser(svc *user.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "user_id")
		if !ok {
			return
		}
		u, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": u})
	}
}
