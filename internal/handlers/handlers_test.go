package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"idealista-watcher/internal/imageproxy"
	"idealista-watcher/internal/ratelimit"

	"github.com/gin-gonic/gin"
)

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", h.HealthCheck)
	r.POST("/api/parse-html", h.ParseHTML)
	r.GET("/api/image-proxy", h.ImageProxy)
	r.GET("/api/ratelimit/stats", h.GetRateLimitStats)
	return r
}

func newTestHandler() *Handler {
	return NewHandler(nil, nil, nil, imageproxy.New(), nil,
		ratelimit.NewRateLimiter(30, 1800, true), false)
}

func TestHealthCheck(t *testing.T) {
	r := newTestRouter(newTestHandler())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestParseHTMLSuccess(t *testing.T) {
	r := newTestRouter(newTestHandler())

	html := `<html><body>
		<span class="main-info__title-main">Piso en venta en calle de Goya</span>
		<span class="info-data-price">250.000 &euro;</span>
		<span class="main-info__title-minor">Goya, Madrid</span>
	</body></html>`
	body, _ := json.Marshal(map[string]string{
		"html": html,
		"url":  "https://www.idealista.com/inmueble/12345678/",
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/parse-html", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success  bool `json:"success"`
		Property struct {
			ID    string `json:"id"`
			Price int    `json:"price"`
		} `json:"property"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success {
		t.Fatal("expected success")
	}
	if resp.Property.ID != "12345678" {
		t.Fatalf("expected id 12345678, got %s", resp.Property.ID)
	}
	if resp.Property.Price != 250000 {
		t.Fatalf("expected price 250000, got %d", resp.Property.Price)
	}
}

func TestParseHTMLMissingBody(t *testing.T) {
	r := newTestRouter(newTestHandler())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/parse-html", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestParseHTMLInvalidListing(t *testing.T) {
	r := newTestRouter(newTestHandler())

	body, _ := json.Marshal(map[string]string{
		"html": "<html><body><p>Nothing here</p></body></html>",
		"url":  "https://www.idealista.com/inmueble/99999999/",
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/parse-html", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Success {
		t.Fatal("expected success=false for a page with no extractable data")
	}
	if resp.Error == "" {
		t.Fatal("expected an error message")
	}
}

func TestImageProxyMissingURL(t *testing.T) {
	r := newTestRouter(newTestHandler())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/image-proxy", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestImageProxyDomainNotAllowed(t *testing.T) {
	r := newTestRouter(newTestHandler())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/image-proxy?url=https://evil.example/a.jpg", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	h := NewHandler(nil, nil, nil, imageproxy.New(), nil,
		ratelimit.NewRateLimiter(2, 100, true), false)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/limited", h.RateLimitMiddleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/limited", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d should be allowed, got %d", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/limited", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}
