package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"idealista-watcher/internal/extract"
	"idealista-watcher/internal/fetcher"
	"idealista-watcher/internal/imageproxy"
	"idealista-watcher/internal/models"
	"idealista-watcher/internal/ratelimit"
	"idealista-watcher/internal/scheduler"
	"idealista-watcher/internal/search"
	"idealista-watcher/internal/storage"

	"github.com/gin-gonic/gin"
)

// Handler holds the dependencies shared by the API endpoints
type Handler struct {
	store       storage.Store
	searcher    *search.SearchClient
	fetcher     *fetcher.Fetcher
	proxy       *imageproxy.Proxy
	scheduler   *scheduler.Scheduler
	rateLimiter *ratelimit.RateLimiter
	useBrowser  bool
}

// NewHandler creates a new API handler
func NewHandler(store storage.Store, searcher *search.SearchClient, f *fetcher.Fetcher,
	proxy *imageproxy.Proxy, sched *scheduler.Scheduler, rl *ratelimit.RateLimiter, useBrowser bool) *Handler {
	return &Handler{
		store:       store,
		searcher:    searcher,
		fetcher:     f,
		proxy:       proxy,
		scheduler:   sched,
		rateLimiter: rl,
		useBrowser:  useBrowser,
	}
}

// HealthCheck reports server liveness
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now(),
	})
}

// ParseHTML extracts a listing from raw HTML supplied by the client
func (h *Handler) ParseHTML(c *gin.Context) {
	var req struct {
		HTML string `json:"html" binding:"required"`
		URL  string `json:"url"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	listing, err := extract.Parse(req.HTML, req.URL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	if !listing.Valid() {
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"error":   "could not extract essential listing data",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"property": listing,
	})
}

// ScrapeURL fetches one listing page, extracts it, stores and indexes it
func (h *Handler) ScrapeURL(c *gin.Context) {
	var req struct {
		URL string `json:"url" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	listing, err := h.scrapeOne(req.URL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, listing)
}

// ScrapeBatch fetches several listing pages with a politeness delay
func (h *Handler) ScrapeBatch(c *gin.Context) {
	var req struct {
		URLs []string `json:"urls" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var listings []models.Listing
	var errs []string

	for i, pageURL := range req.URLs {
		listing, err := h.scrapeOne(pageURL)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", pageURL, err))
			continue
		}
		listings = append(listings, *listing)

		if i < len(req.URLs)-1 {
			time.Sleep(1 * time.Second)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    len(listings),
		"failed":     len(errs),
		"errors":     errs,
		"properties": listings,
	})
}

func (h *Handler) scrapeOne(pageURL string) (*models.Listing, error) {
	var html string
	var err error
	if h.useBrowser {
		html, err = h.fetcher.FetchHTMLWithBrowser(pageURL)
	} else {
		html, err = h.fetcher.FetchHTML(pageURL, "")
	}
	if err != nil {
		return nil, err
	}

	listing, err := extract.Parse(html, pageURL)
	if err != nil {
		return nil, err
	}
	if !listing.Valid() {
		return nil, fmt.Errorf("could not extract essential listing data from %s", pageURL)
	}

	if h.store != nil {
		if err := h.store.Append(listing); err != nil {
			return nil, err
		}
	}

	if h.searcher != nil {
		if err := h.searcher.IndexListing(listing); err != nil {
			log.Printf("Warning: Failed to index listing %s: %v", listing.ID, err)
		}
	}

	return listing, nil
}

// TriggerWatchRun starts one watch run in the background
func (h *Handler) TriggerWatchRun(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Watcher is not available",
		})
		return
	}

	go func() {
		if _, err := h.scheduler.RunNow(); err != nil {
			log.Printf("Manual watch run failed: %v", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Watch run started in background",
		"status":  "running",
	})
}

// DownloadPhotos fetches a batch of images and returns them as data URIs
func (h *Handler) DownloadPhotos(c *gin.Context) {
	var req struct {
		URLs []string `json:"urls" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	photos := h.proxy.DownloadBase64(req.URLs)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"photos":  photos,
	})
}

// ImageProxy streams one allow-listed image with long-lived caching
func (h *Handler) ImageProxy(c *gin.Context) {
	imageURL := c.Query("url")

	data, contentType, err := h.proxy.Fetch(imageURL)
	if err != nil {
		var upstream *imageproxy.UpstreamError
		switch {
		case errors.Is(err, imageproxy.ErrMissingURL):
			c.JSON(http.StatusBadRequest, gin.H{"error": "url parameter is required"})
		case errors.Is(err, imageproxy.ErrDomainNotAllowed):
			c.JSON(http.StatusForbidden, gin.H{"error": "domain not allowed"})
		case errors.Is(err, imageproxy.ErrNoImageFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "no image found on photo page"})
		case errors.As(err, &upstream):
			c.JSON(upstream.StatusCode, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.Header("Cache-Control", imageproxy.CacheControl)
	c.Header("Vary", "Accept")
	c.Data(http.StatusOK, contentType, data)
}

// GetListings returns stored listings, optionally sorted
func (h *Handler) GetListings(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store is not available"})
		return
	}

	sortBy := c.DefaultQuery("sort", "")

	var listings []models.Listing
	var err error
	if sorter, ok := h.store.(interface {
		GetWithSort(string) ([]models.Listing, error)
	}); ok && sortBy != "" {
		listings, err = sorter.GetWithSort(sortBy)
	} else {
		listings, err = h.store.GetAll()
	}

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":      len(listings),
		"properties": listings,
	})
}

// GetListing returns one stored listing by id
func (h *Handler) GetListing(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store is not available"})
		return
	}

	id := c.Param("id")
	listing, err := h.store.GetByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		return
	}

	c.JSON(http.StatusOK, listing)
}

// SearchListings performs full-text and filtered search
func (h *Handler) SearchListings(c *gin.Context) {
	if h.searcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Search is not available"})
		return
	}

	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	if err != nil {
		limit = 20
	}

	params := search.FilterParams{
		Query: c.Query("q"),
		Limit: limit,
	}

	if v := c.Query("min_price"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params.MinPrice = &n
		}
	}
	if v := c.Query("max_price"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params.MaxPrice = &n
		}
	}
	if v := c.Query("min_rooms"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params.MinRooms = &n
		}
	}
	if v := c.Query("max_price_per_area"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params.MaxPricePerArea = &n
		}
	}
	if zones := c.QueryArray("zone"); len(zones) > 0 {
		params.Zones = zones
	}
	if v := c.Query("elevator"); v != "" {
		b := v == "true" || v == "1"
		params.Elevator = &b
	}
	if v := c.Query("terrace"); v != "" {
		b := v == "true" || v == "1"
		params.Terrace = &b
	}
	if sortBy := c.Query("sort_by"); sortBy != "" {
		params.SortBy = sortBy
	}

	listings, err := h.searcher.FilterSearch(params)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":      len(listings),
		"properties": listings,
	})
}

// GetRateLimitStats returns current rate limiter statistics
func (h *Handler) GetRateLimitStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.rateLimiter.GetStats())
}

// RateLimitMiddleware returns a Gin middleware that enforces rate limiting
func (h *Handler) RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.rateLimiter.AllowRequest() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"message": "Too many requests. Please try again later.",
				"stats":   h.rateLimiter.GetStats(),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
