package crawler

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"idealista-watcher/internal/extract"
	"idealista-watcher/internal/fetcher"
	"idealista-watcher/internal/models"
)

var (
	roomsRe = regexp.MustCompile(`(\d+)\s*hab`)
	sizeRe  = regexp.MustCompile(`(\d+)\s*m²`)
	bathRe  = regexp.MustCompile(`(\d+)\s*baño`)
	priceRe = regexp.MustCompile(`[^\d]`)
)

// Crawler fetches idealista search-results pages and turns each result
// card into a ListingSummary.
type Crawler struct {
	userAgent string
	delay     time.Duration
}

func New() *Crawler {
	return &Crawler{
		userAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		delay:     3 * time.Second,
	}
}

// Crawl visits one search URL and returns the summaries in page order.
func (c *Crawler) Crawl(searchURL string) ([]models.ListingSummary, error) {
	var summaries []models.ListingSummary
	var parseErr error

	collector := colly.NewCollector(
		colly.AllowedDomains("www.idealista.com", "idealista.com"),
		colly.UserAgent(c.userAgent),
		colly.MaxDepth(1),
	)
	collector.SetRequestTimeout(30 * time.Second)
	collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Delay:       c.delay,
		RandomDelay: 2 * time.Second,
	})

	collector.OnRequest(func(r *colly.Request) {
		log.Println("[Crawler] Visiting", r.URL)
		r.Headers.Set("Accept-Language", "es-ES,es;q=0.9,en;q=0.8")
		r.Headers.Set("Referer", "https://www.idealista.com/")
	})

	collector.OnError(func(r *colly.Response, err error) {
		log.Println("[Crawler] Error:", err)
	})

	collector.OnResponse(func(r *colly.Response) {
		log.Printf("[Crawler] Received search results page, size: %d bytes", len(r.Body))
		summaries, parseErr = ParseSearchHTML(string(r.Body))
	})

	if err := collector.Visit(searchURL); err != nil {
		return nil, fmt.Errorf("error visiting search page: %w", err)
	}
	collector.Wait()

	if parseErr != nil {
		return nil, parseErr
	}
	log.Printf("[Crawler] Extracted %d listings from search results", len(summaries))
	return summaries, nil
}

// ParseSearchHTML extracts result cards from a search page. It is the
// single parse path for search results, shared by the live crawl and
// the paste-HTML flow.
func ParseSearchHTML(html string) ([]models.ListingSummary, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("error parsing search HTML: %w", err)
	}

	cards := doc.Find("article.item")
	if cards.Length() == 0 {
		cards = doc.Find("div.item-info-container")
	}

	var summaries []models.ListingSummary
	cards.Each(func(_ int, card *goquery.Selection) {
		link := card.Find("a.item-link").First()
		if link.Length() == 0 {
			return
		}
		href, _ := link.Attr("href")
		if href == "" {
			return
		}
		if strings.HasPrefix(href, "/") {
			href = "https://www.idealista.com" + href
		}
		// Tracking-query variants of the same card must map to one id
		href = fetcher.NormalizeURL(href)

		summary := models.ListingSummary{
			ID:    extract.PropertyIDFromURL(href),
			URL:   href,
			Title: strings.TrimSpace(link.Text()),
		}

		summary.Price = cleanPrice(card.Find("span.item-price").First().Text())

		// All item-detail spans together carry rooms, size and baths
		var details strings.Builder
		card.Find("span.item-detail").Each(func(_ int, d *goquery.Selection) {
			details.WriteString(d.Text())
			details.WriteString(" ")
		})
		detailsText := details.String()
		if m := roomsRe.FindStringSubmatch(detailsText); len(m) > 1 {
			summary.Rooms, _ = strconv.Atoi(m[1])
		}
		if m := sizeRe.FindStringSubmatch(detailsText); len(m) > 1 {
			summary.Area, _ = strconv.Atoi(m[1])
		}
		if m := bathRe.FindStringSubmatch(detailsText); len(m) > 1 {
			summary.Bathrooms, _ = strconv.Atoi(m[1])
		}

		summary.Address = strings.TrimSpace(card.Find("span.item-address").First().Text())

		if img := card.Find("img").First(); img.Length() > 0 {
			if src, ok := img.Attr("src"); ok && src != "" {
				summary.Thumbnail = src
			} else if src, ok := img.Attr("data-src"); ok && src != "" {
				summary.Thumbnail = src
			}
		}

		summaries = append(summaries, summary)
	})

	return summaries, nil
}

func cleanPrice(text string) int {
	cleaned := priceRe.ReplaceAllString(text, "")
	if cleaned == "" {
		return 0
	}
	val, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0
	}
	return val
}
