package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func do(r http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestCacheFlushesAfterWrite(t *testing.T) {
	hits := 0
	r := gin.New()
	r.Use(Cache(NewResponseCache(time.Minute)))
	r.GET("/count", func(c *gin.Context) {
		hits++
		c.JSON(http.StatusOK, gin.H{"hits": hits})
	})
	r.POST("/write", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/fail", func(c *gin.Context) { c.Status(http.StatusConflict) })

	w := do(r, http.MethodGet, "/count", nil)
	assert.JSONEq(t, `{"hits":1}`, w.Body.String())

	w = do(r, http.MethodGet, "/count", nil)
	assert.JSONEq(t, `{"hits":1}`, w.Body.String())
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	do(r, http.MethodPost, "/fail", nil)
	w = do(r, http.MethodGet, "/count", nil)
	assert.JSONEq(t, `{"hits":1}`, w.Body.String())

	do(r, http.MethodPost, "/write", nil)
	w = do(r, http.MethodGet, "/count", nil)
	assert.JSONEq(t, `{"hits":2}`, w.Body.String())
}

func TestCacheDropsResponseComputedBeforeFlush(t *testing.T) {
	responses := NewResponseCache(time.Minute)
	hits := 0
	r := gin.New()
	r.Use(Cache(responses))
	r.GET("/count", func(c *gin.Context) {
		hits++
		if hits == 1 {
			// A write lands while the first read is still rendering.
			responses.Flush()
		}
		c.JSON(http.StatusOK, gin.H{"hits": hits})
	})

	w := do(r, http.MethodGet, "/count", nil)
	assert.JSONEq(t, `{"hits":1}`, w.Body.String())

	w = do(r, http.MethodGet, "/count", nil)
	assert.JSONEq(t, `{"hits":2}`, w.Body.String())
	assert.Empty(t, w.Header().Get("X-Cache"))

	w = do(r, http.MethodGet, "/count", nil)
	assert.JSONEq(t, `{"hits":2}`, w.Body.String())
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
}

func TestCacheSkipsBinaryResponses(t *testing.T) {
	hits := 0
	r := gin.New()
	r.Use(Cache(NewResponseCache(time.Minute)))
	r.GET("/photo", func(c *gin.Context) {
		hits++
		c.Data(http.StatusOK, "image/png", []byte{1, 2, 3})
	})

	do(r, http.MethodGet, "/photo", nil)
	w := do(r, http.MethodGet, "/photo", nil)
	assert.Equal(t, 2, hits)
	assert.Empty(t, w.Header().Get("X-Cache"))
}

func TestActingUser(t *testing.T) {
	r := gin.New()
	r.Use(ActingUser("X-Acting-User"))
	r.GET("/me", func(c *gin.Context) { c.String(http.StatusOK, Actor(c)) })

	w := do(r, http.MethodGet, "/me", map[string]string{"X-Acting-User": " alice "})
	assert.Equal(t, "alice", w.Body.String())

	w = do(r, http.MethodGet, "/me", nil)
	assert.Equal(t, Anonymous, w.Body.String())
}

func TestRateLimiterIsPerActor(t *testing.T) {
	r := gin.New()
	r.Use(ActingUser("X-Acting-User"), RateLimiter(rate.Every(time.Hour), 1))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	alice := map[string]string{"X-Acting-User": "alice"}
	bob := map[string]string{"X-Acting-User": "bob"}

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ping", alice).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodGet, "/ping", alice).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ping", bob).Code)
}
