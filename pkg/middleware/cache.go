package middleware

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edgeoinnovations-resources/Flight/pkg/cache"
	"github.com/edgeoinnovations-resources/Flight/pkg/logger"
)

// CacheConfig holds cache middleware configuration.
type CacheConfig struct {
	TTL         time.Duration
	KeyPrefix   string
	SkipPaths   []string
	OnlyMethods []string
}

// responseWriter wraps gin.ResponseWriter to capture the response body.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

// ResponseCache creates a middleware that caches JSON HTTP responses.
func ResponseCache(manager *cache.Manager, config CacheConfig) gin.HandlerFunc {
	if config.OnlyMethods == nil {
		config.OnlyMethods = []string{http.MethodGet}
	}

	return func(c *gin.Context) {
		if !contains(config.OnlyMethods, c.Request.Method) {
			c.Next()
			return
		}

		for _, skipPath := range config.SkipPaths {
			if strings.HasPrefix(c.Request.URL.Path, skipPath) {
				c.Next()
				return
			}
		}

		// The map page and other HTML responses are never cached.
		if strings.Contains(c.GetHeader("Accept"), "text/html") {
			c.Next()
			return
		}

		cacheKey := generateCacheKey(config.KeyPrefix, c.Request)

		var cachedResponse CachedResponse
		err := manager.GetJSON(c.Request.Context(), cacheKey, &cachedResponse)
		if err == nil {
			logger.WithField("cache_key", cacheKey).Debug("Cache hit")
			for key, value := range cachedResponse.Headers {
				c.Header(key, value)
			}
			c.Header("X-Cache", "HIT")
			c.Data(cachedResponse.StatusCode, cachedResponse.ContentType, cachedResponse.Body)
			c.Abort()
			return
		}

		if err != cache.ErrCacheMiss {
			logger.WithField("cache_key", cacheKey).Error(err, "Cache get error")
		}

		body := &bytes.Buffer{}
		writer := &responseWriter{ResponseWriter: c.Writer, body: body}
		c.Writer = writer

		c.Next()

		// Only cache successful JSON responses.
		if !strings.Contains(c.Writer.Header().Get("Content-Type"), "application/json") {
			return
		}

		if c.Writer.Status() >= 200 && c.Writer.Status() < 300 {
			cachedResp := CachedResponse{
				StatusCode:  c.Writer.Status(),
				Headers:     make(map[string]string),
				Body:        body.Bytes(),
				ContentType: c.Writer.Header().Get("Content-Type"),
				CachedAt:    time.Now(),
			}

			for key, values := range c.Writer.Header() {
				if len(values) > 0 && shouldCacheHeader(key) {
					cachedResp.Headers[key] = values[0]
				}
			}

			if err := manager.SetJSON(c.Request.Context(), cacheKey, cachedResp, config.TTL); err != nil {
				logger.WithField("cache_key", cacheKey).Error(err, "Cache set error")
			}
		}

		c.Header("X-Cache", "MISS")
	}
}

// CachedResponse represents a cached HTTP response.
type CachedResponse struct {
	StatusCode  int               `json:"status_code"`
	Headers     map[string]string `json:"headers"`
	Body        []byte            `json:"body"`
	ContentType string            `json:"content_type"`
	CachedAt    time.Time         `json:"cached_at"`
}

// generateCacheKey creates a cache key from the HTTP request.
func generateCacheKey(prefix string, req *http.Request) string {
	keyData := fmt.Sprintf("%s:%s:%s", req.Method, req.URL.Path, req.URL.RawQuery)

	if accept := req.Header.Get("Accept"); accept != "" {
		keyData += ":" + accept
	}

	hash := md5.Sum([]byte(keyData))
	hashStr := fmt.Sprintf("%x", hash)

	if prefix != "" {
		return fmt.Sprintf("%s:response:%s", prefix, hashStr)
	}
	return fmt.Sprintf("response:%s", hashStr)
}

func shouldCacheHeader(header string) bool {
	switch strings.ToLower(header) {
	case "content-type", "content-encoding", "cache-control", "etag", "last-modified":
		return true
	}
	return false
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
