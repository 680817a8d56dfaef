package router

import (
	"log/slog"
	"net/http"

	"shop/internal/catalog"

	"github.com/gin-gonic/gin"
)

// listProducts 前台商品列表（只含上架商品）。
func listProducts(svc *catalog.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.ListActive(c.Request.Context())
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

func getProduct(svc *catalog.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		p, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": p})
	}
}
