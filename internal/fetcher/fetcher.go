package fetcher

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/chromedp/chromedp"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// Fetcher downloads portal pages, either with a plain HTTP client or a
// headless Chrome instance for pages that need JavaScript to render.
type Fetcher struct {
	client          *http.Client
	maxRetries      int
	retryDelay      time.Duration
	requestDelay    time.Duration
	lastRequestTime time.Time
	chromePath      string
	breaker         *CircuitBreaker
}

type Config struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
	RequestDelay time.Duration
	ChromePath   string
}

func New() *Fetcher {
	return NewWithConfig(Config{
		Timeout:      30 * time.Second,
		MaxRetries:   3,
		RetryDelay:   2 * time.Second,
		RequestDelay: 2 * time.Second,
		ChromePath:   "/usr/bin/google-chrome",
	})
}

func NewWithConfig(config Config) *Fetcher {
	// Cookie jar for session continuity between page loads
	jar, err := cookiejar.New(nil)
	if err != nil {
		log.Printf("Warning: Failed to create cookie jar: %v", err)
		jar = nil
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: config.Timeout,
			Jar:     jar,
		},
		maxRetries:   config.MaxRetries,
		retryDelay:   config.RetryDelay,
		requestDelay: config.RequestDelay,
		chromePath:   config.ChromePath,
		breaker:      NewCircuitBreaker(5, 30*time.Minute),
	}
}

// rateLimit enforces the minimum delay between requests
func (f *Fetcher) rateLimit() {
	if f.requestDelay == 0 {
		return
	}
	elapsed := time.Since(f.lastRequestTime)
	if elapsed < f.requestDelay {
		time.Sleep(f.requestDelay - elapsed)
	}
	f.lastRequestTime = time.Now()
}

// ApplyBrowserHeaders sets browser-like headers to avoid bot detection
func ApplyBrowserHeaders(req *http.Request, referer string) {
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7")
	req.Header.Set("Accept-Language", "es-ES,es;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("DNT", "1")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-User", "?1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("sec-ch-ua", `"Not A(Brand";v="99", "Google Chrome";v="122", "Chromium";v="122"`)
	req.Header.Set("sec-ch-ua-mobile", "?0")
	req.Header.Set("sec-ch-ua-platform", `"Windows"`)

	if referer != "" {
		req.Header.Set("Referer", referer)
		req.Header.Set("Sec-Fetch-Site", "same-origin")
	}
}

// doRequestWithRetry performs an HTTP request with exponential backoff.
// Client errors other than 429 are not retried.
func (f *Fetcher) doRequestWithRetry(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	if !f.breaker.CanProceed() {
		return nil, fmt.Errorf("circuit breaker open, fetching suspended")
	}

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * f.retryDelay
			if backoff > 60*time.Second {
				backoff = 60 * time.Second
			}
			log.Printf("[Fetcher] Retry attempt %d/%d after %v", attempt, f.maxRetries, backoff)
			time.Sleep(backoff)
		}

		resp, err = f.client.Do(req)
		if err == nil && resp.StatusCode == http.StatusOK {
			f.breaker.RecordSuccess()
			return resp, nil
		}

		if err != nil {
			log.Printf("[Fetcher] Request failed (attempt %d): %v", attempt+1, err)
			continue
		}

		f.breaker.RecordFailure(resp.StatusCode)
		log.Printf("[Fetcher] Request failed (attempt %d): status %d", attempt+1, resp.StatusCode)
		if resp.Body != nil {
			resp.Body.Close()
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			break
		}
	}

	if err != nil {
		return nil, fmt.Errorf("request failed after %d retries: %w", f.maxRetries, err)
	}
	return nil, fmt.Errorf("request failed after %d retries: status code %d", f.maxRetries, resp.StatusCode)
}

// FetchHTML downloads a page over plain HTTP with browser headers.
func (f *Fetcher) FetchHTML(pageURL, referer string) (string, error) {
	f.rateLimit()

	req, err := http.NewRequest(http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	ApplyBrowserHeaders(req, referer)

	resp, err := f.doRequestWithRetry(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

// FetchHTMLWithBrowser renders a page in headless Chrome and returns the
// resulting DOM. Idealista serves most of the gallery through JavaScript,
// so detail pages go through this path.
func (f *Fetcher) FetchHTMLWithBrowser(pageURL string) (string, error) {
	log.Printf("[HeadlessBrowser] Fetching %s with Chrome", pageURL)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(f.chromePath),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-software-rasterizer", true),
		chromedp.UserAgent(browserUserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var htmlContent string
	err := chromedp.Run(ctx,
		chromedp.Navigate(pageURL),
		chromedp.WaitVisible(`body`, chromedp.ByQuery),
		// Give the gallery scripts a moment to run
		chromedp.Sleep(3*time.Second),
		chromedp.OuterHTML(`html`, &htmlContent, chromedp.ByQuery),
	)
	if err != nil {
		log.Printf("[HeadlessBrowser] ERROR fetching %s: %v", pageURL, err)
		return "", fmt.Errorf("chromedp error: %w", err)
	}

	log.Printf("[HeadlessBrowser] Successfully fetched HTML (%d bytes)", len(htmlContent))
	return htmlContent, nil
}

// NormalizeURL strips query string and fragment from a detail URL so the
// same listing always maps to the same canonical address.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
