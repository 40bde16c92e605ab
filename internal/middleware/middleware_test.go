package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/moody-app/moody/internal/pkg/jwt"
	appredis "github.com/moody-app/moody/internal/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", Auth(), func(c *gin.Context) { c.String(http.StatusOK, CurrentUserID(c)) })

	token, err := jwt.Sign("u1", time.Hour)
	require.NoError(t, err)

	for _, tc := range []struct {
		name   string
		header string
		query  string
		code   int
	}{
		{"bearer", "Bearer " + token, "", http.StatusOK},
		{"bare", token, "", http.StatusOK},
		{"query", "", token, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", "", http.StatusUnauthorized},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me?token="+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.code, w.Code)
			if tc.code == http.StatusOK {
				assert.Equal(t, "u1", w.Body.String())
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	rdb := appredis.New(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(ContextKeyUserID, c.GetHeader("X-User")); c.Next() })
	r.POST("/insights", RateLimit(rdb, "insights", 2, time.Hour, nil), func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/insights", nil)
		req.Header.Set("X-User", user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, hit("a"))
	assert.Equal(t, http.StatusOK, hit("a"))
	assert.Equal(t, http.StatusTooManyRequests, hit("a"))
	assert.Equal(t, http.StatusOK, hit("b"))
}
