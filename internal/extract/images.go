package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxImages = 30

var (
	// Pattern: https://img4.idealista.com/blur/.../M/{hash}/xxx.jpg
	idealistaImageRe = regexp.MustCompile(`(?i)https?://img\d?\.idealista\.com/[^"\s<>]+\.(?:jpg|jpeg|png|webp)`)
	// The 10-digit number before the extension identifies the photo
	// across all the resized variants of it.
	imageIDRe = regexp.MustCompile(`/(\d{10})\.(jpg|jpeg|png|webp)`)
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

type imageSet struct {
	urls []string
	seen map[string]bool
}

func newImageSet() *imageSet {
	return &imageSet{seen: make(map[string]bool)}
}

// add appends one candidate URL, skipping tracking pixels, logos and
// duplicates. The first occurrence of a photo wins.
func (s *imageSet) add(url string) {
	if url == "" || strings.Contains(strings.ToLower(url), "logo") {
		return
	}
	if strings.Contains(url, "loading") || strings.Contains(url, "px.png") ||
		strings.Contains(url, "bat.bing") || strings.Contains(url, "profilephotos") {
		return
	}
	validExt := false
	for _, ext := range imageExtensions {
		if strings.HasSuffix(url, ext) {
			validExt = true
			break
		}
	}
	if !validExt {
		return
	}

	key := url
	if m := imageIDRe.FindStringSubmatch(url); len(m) > 1 {
		key = m[1]
	} else if i := strings.Index(url, "?"); i >= 0 {
		key = url[:i]
	}
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	s.urls = append(s.urls, url)
}

// CollectImages gathers up to 30 unique photo URLs from a detail page.
// The raw HTML is scanned first so photos living inside embedded JSON
// are picked up even when no <img> tag references them, then the DOM
// pass covers lazy-loading attributes and srcset sources.
func CollectImages(html string, doc *goquery.Document) []string {
	set := newImageSet()

	for _, match := range idealistaImageRe.FindAllString(html, -1) {
		set.add(match)
	}

	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		for _, attr := range []string{"src", "data-src", "data-lazy"} {
			if val, ok := img.Attr(attr); ok && strings.Contains(val, "idealista") {
				set.add(val)
			}
		}
	})

	doc.Find("source[srcset]").Each(func(_ int, source *goquery.Selection) {
		srcset, _ := source.Attr("srcset")
		if !strings.Contains(srcset, "idealista") {
			return
		}
		for _, part := range strings.Split(srcset, ",") {
			candidate := strings.SplitN(strings.TrimSpace(part), " ", 2)[0]
			if candidate != "" {
				set.add(candidate)
			}
		}
	})

	if len(set.urls) > maxImages {
		return set.urls[:maxImages]
	}
	return set.urls
}
