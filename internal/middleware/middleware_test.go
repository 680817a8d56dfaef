package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"shop/internal/observability"
	"shop/internal/user"
	"shop/pkg/redis/redistest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func TestRequireAdmin(t *testing.T) {
	tokens := user.NewTokens("secret", time.Hour)
	r := gin.New()
	r.GET("/admin", RequireAdmin(tokens), func(c *gin.Context) {
		claims, ok := Claims(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": claims.UserID})
	})

	adminToken, err := tokens.Issue(1, true)
	require.NoError(t, err)
	userToken, err := tokens.Issue(2, false)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer abc", http.StatusUnauthorized},
		{"not admin", "Bearer " + userToken, http.StatusForbidden},
		{"admin", "Bearer " + adminToken, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	r := gin.New()
	r.Use(RequestLogger(log))
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/9", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "/items/:id", entry["route"])
	assert.Equal(t, float64(404), entry["status"])
}

func TestRequestUserID(t *testing.T) {
	r := gin.New()
	var got uint64
	var body string
	handler := func(c *gin.Context) {
		got = requestUserID(c)
		b, _ := io.ReadAll(c.Request.Body)
		body = string(b)
	}
	r.POST("/cart/:user_id", handler)
	r.POST("/orders", handler)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/cart/12", nil))
	assert.Equal(t, uint64(12), got)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"user_id":5}`)))
	assert.Equal(t, uint64(5), got)
	assert.Equal(t, `{"user_id":5}`, body, "body stays readable")

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`oops`)))
	assert.Zero(t, got)
}

func TestRedisRateLimit_NilClientPassesThrough(t *testing.T) {
	r := gin.New()
	r.GET("/x", RedisRateLimit(nil, "test", 1, time.Second, observability.Discard()), func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRedisRateLimit(t *testing.T) {
	rdb := redistest.New(t)
	r := gin.New()
	r.POST("/cart/:user_id/add", RedisRateLimit(rdb, "cart", 2, time.Minute, observability.Discard()), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 4)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cart/1/add", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// 另一个用户有独立的窗口。
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cart/2/add", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
