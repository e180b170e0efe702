package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func protectedRouter(middleware gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware)
	router.POST("/action", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func TestRequireAPIKey(t *testing.T) {
	router := protectedRouter(RequireAPIKey("secret-key"))

	req, _ := http.NewRequest("POST", "/action", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing key: status = %d, want 401", w.Code)
	}

	req, _ = http.NewRequest("POST", "/action", nil)
	req.Header.Set("X-API-Key", "wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: status = %d, want 401", w.Code)
	}

	req, _ = http.NewRequest("POST", "/action", nil)
	req.Header.Set("X-API-Key", "secret-key")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("correct key: status = %d, want 200", w.Code)
	}
}

func TestRateLimitBlocksBursts(t *testing.T) {
	router := protectedRouter(RateLimit(1))

	limited := false
	for i := 0; i < 10; i++ {
		req, _ := http.NewRequest("POST", "/action", nil)
		req.RemoteAddr = "192.0.2.1:12345"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("burst of 10 requests at 1 rps was never rate limited")
	}

	// A different client IP gets its own bucket.
	req, _ := http.NewRequest("POST", "/action", nil)
	req.RemoteAddr = "192.0.2.2:12345"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("fresh client: status = %d, want 200", w.Code)
	}
}
