package imageproxy

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Typed boundary errors. Handlers map these onto HTTP status codes.
var (
	ErrMissingURL       = errors.New("missing url parameter")
	ErrDomainNotAllowed = errors.New("domain not allowed")
	ErrNoImageFound     = errors.New("no image found in photo page")
)

// UpstreamError carries the status code the origin server answered with.
type UpstreamError struct {
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("failed to fetch image: %d", e.StatusCode)
}

// DefaultAllowedDomains lists the portals whose image hosts the proxy
// will fetch from, one per platform.
var DefaultAllowedDomains = []string{
	"idealista.com",
	"fotocasa.es",
	"pisos.com",
	"habitaclia.com",
	"apinmo.com",
	"engelvoelkers.com",
	"ucarecdn.com",
	"inmotek.net",
}

// DefaultReferers maps each platform to the referer its CDN expects.
var DefaultReferers = map[string]string{
	"idealista.com":     "https://www.idealista.com/",
	"fotocasa.es":       "https://www.fotocasa.es/",
	"pisos.com":         "https://www.pisos.com/",
	"habitaclia.com":    "https://www.habitaclia.com/",
	"apinmo.com":        "https://www.grupotome.com/",
	"engelvoelkers.com": "https://www.engelvoelkers.com/",
	"ucarecdn.com":      "https://www.engelvoelkers.com/",
	"inmotek.net":       "https://www.areizaga.com/",
}

const (
	proxyUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	// CacheControl is set on every proxied image. Portal photos are
	// immutable once published.
	CacheControl = "public, max-age=2592000, immutable"

	maxBatchPhotos = 20
)

var photoPageImageRe = regexp.MustCompile(`(?i)https?://img\d?\.idealista\.com/[^"\s<>]+\.(?:jpg|jpeg|png|webp)`)

// Proxy fetches portal images with the headers their CDNs require and
// enforces the domain allow-list before any network call.
type Proxy struct {
	client   *http.Client
	allowed  []string
	referers map[string]string
}

func New() *Proxy {
	return NewWithConfig(DefaultAllowedDomains, DefaultReferers)
}

func NewWithConfig(allowed []string, referers map[string]string) *Proxy {
	return &Proxy{
		client:   &http.Client{Timeout: 10 * time.Second},
		allowed:  allowed,
		referers: referers,
	}
}

// Allowed reports whether the URL's host belongs to an allow-listed
// domain. Matching is by host suffix, not substring, so a host that
// merely embeds an allowed name does not pass.
func (p *Proxy) Allowed(rawURL string) bool {
	host := hostOf(rawURL)
	if host == "" {
		return false
	}
	for _, domain := range p.allowed {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// RefererFor returns the referer registered for the URL's domain.
func (p *Proxy) RefererFor(rawURL string) string {
	host := hostOf(rawURL)
	for domain, referer := range p.referers {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return referer
		}
	}
	return ""
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func (p *Proxy) imageRequest(imageURL string) (*http.Request, error) {
	req, err := http.NewRequest(http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", proxyUserAgent)
	req.Header.Set("Referer", p.RefererFor(imageURL))
	req.Header.Set("Accept", "image/webp,image/apng,image/*,*/*;q=0.8")
	return req, nil
}

// resolvePhotoPage follows an idealista photo-viewer URL
// ("/inmueble/<id>/foto/<n>/") to the image it displays. The main image
// selectors are tried first, then a raw scan of the page HTML.
func (p *Proxy) resolvePhotoPage(pageURL string) (string, error) {
	req, err := p.imageRequest(pageURL)
	if err != nil {
		return "", err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &UpstreamError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err == nil {
		img := doc.Find("img.main-image, img.detail-image, picture img, .multimedia-container img").First()
		if img.Length() > 0 {
			if src, ok := img.Attr("src"); ok && src != "" {
				return src, nil
			}
			if src, ok := img.Attr("data-src"); ok && src != "" {
				return src, nil
			}
		}
	}

	if m := photoPageImageRe.FindString(string(body)); m != "" {
		return m, nil
	}
	return "", ErrNoImageFound
}

func isPhotoPageURL(rawURL string) bool {
	return strings.Contains(rawURL, "idealista.com") &&
		strings.Contains(rawURL, "/inmueble/") &&
		strings.Contains(rawURL, "/foto/")
}

// Fetch downloads one image and returns its bytes and content type. The
// allow-list is checked before any network traffic. Photo-viewer pages
// are transparently resolved to the image they show.
func (p *Proxy) Fetch(imageURL string) ([]byte, string, error) {
	if imageURL == "" {
		return nil, "", ErrMissingURL
	}
	if !p.Allowed(imageURL) {
		return nil, "", ErrDomainNotAllowed
	}

	if isPhotoPageURL(imageURL) {
		resolved, err := p.resolvePhotoPage(imageURL)
		if err != nil {
			return nil, "", err
		}
		imageURL = resolved
	}

	req, err := p.imageRequest(imageURL)
	if err != nil {
		return nil, "", err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", &UpstreamError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return body, contentType, nil
}

// DownloadBase64 fetches up to 20 images and returns them as data URIs.
// Failed downloads are logged and skipped; the batch never aborts.
func (p *Proxy) DownloadBase64(urls []string) []string {
	if len(urls) > maxBatchPhotos {
		urls = urls[:maxBatchPhotos]
	}

	var photos []string
	for i, imageURL := range urls {
		body, contentType, err := p.Fetch(imageURL)
		if err != nil {
			log.Printf("[ImageProxy] Photo %d: error - %v", i+1, err)
			continue
		}
		encoded := base64.StdEncoding.EncodeToString(body)
		photos = append(photos, fmt.Sprintf("data:%s;base64,%s", contentType, encoded))
		log.Printf("[ImageProxy] Photo %d: downloaded OK", i+1)
	}

	log.Printf("[ImageProxy] Downloaded %d of %d photos", len(photos), len(urls))
	return photos
}
