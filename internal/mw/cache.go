package mw

import (
	"bytes"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

type bodyCacheWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyCacheWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyCacheWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// ResponseCache holds cached GET responses. Every Flush starts a new
// generation; a response computed during an older generation is not stored.
type ResponseCache struct {
	store *cache.Cache
	ttl   time.Duration

	mu  sync.Mutex
	gen uint64
}

// NewResponseCache returns an empty cache whose entries live for ttl.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{store: cache.New(ttl, 2*ttl), ttl: ttl}
}

// Flush drops every entry.
func (r *ResponseCache) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.store.Flush()
}

func (r *ResponseCache) generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen
}

func (r *ResponseCache) get(key string) (cachedResponse, bool) {
	v, ok := r.store.Get(key)
	if !ok {
		return cachedResponse{}, false
	}
	return v.(cachedResponse), true
}

// setIfCurrent stores resp unless a flush happened since gen was read.
func (r *ResponseCache) setIfCurrent(key string, resp cachedResponse, gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != gen {
		return false
	}
	r.store.Set(key, resp, r.ttl)
	return true
}

// Cache serves repeated GET requests from memory. Every successful request
// with another method flushes the whole cache, since any write may change
// any derived view.
func Cache(responses *ResponseCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			if c.Writer.Status() < http.StatusBadRequest {
				responses.Flush()
			}
			return
		}

		key := c.Request.RequestURI
		if cached, found := responses.get(key); found {
			for k, v := range cached.headers {
				c.Writer.Header()[k] = v
			}
			c.Writer.Header().Set("X-Cache", "HIT")
			c.Writer.WriteHeader(cached.status)
			_, _ = c.Writer.Write(cached.body)
			c.Abort()
			return
		}

		gen := responses.generation()
		blw := &bodyCacheWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		// Only cache successful JSON responses; photos and reports stream once.
		if blw.Status() >= 200 && blw.Status() < 300 &&
			strings.HasPrefix(blw.Header().Get("Content-Type"), "application/json") {
			responses.setIfCurrent(key, cachedResponse{
				status:  blw.Status(),
				headers: blw.Header().Clone(),
				body:    blw.body.Bytes(),
			}, gen)
		}
	}
}
