package watcher

import (
	"context"
	"log"
	"math"
	"time"

	"idealista-watcher/internal/aggregator"
	"idealista-watcher/internal/config"
	"idealista-watcher/internal/crawler"
	"idealista-watcher/internal/extract"
	"idealista-watcher/internal/fetcher"
	"idealista-watcher/internal/models"
	"idealista-watcher/internal/notify"
	"idealista-watcher/internal/search"
	"idealista-watcher/internal/storage"
	"idealista-watcher/internal/tracker"
)

// Watcher polls a search URL, feeds every unseen listing through the
// store and notification channels, and remembers what it has processed.
type Watcher struct {
	cfg        config.WatcherConfig
	crawler    *crawler.Crawler
	fetcher    *fetcher.Fetcher
	tracker    *tracker.Tracker
	store      storage.Store
	notifier   *notify.Manager
	searcher   *search.SearchClient
	aggregator *aggregator.Client
}

// Stats summarizes one watch run.
type Stats struct {
	Found    int `json:"found"`
	New      int `json:"new"`
	Stored   int `json:"stored"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
	SeenSize int `json:"seen_size"`
}

func New(cfg config.WatcherConfig, c *crawler.Crawler, f *fetcher.Fetcher, t *tracker.Tracker,
	store storage.Store, notifier *notify.Manager, searcher *search.SearchClient) *Watcher {
	return &Watcher{
		cfg:      cfg,
		crawler:  c,
		fetcher:  f,
		tracker:  t,
		store:    store,
		notifier: notifier,
		searcher: searcher,
	}
}

// SetAggregator switches the listing source from crawling the search
// URL to the aggregation API.
func (w *Watcher) SetAggregator(a *aggregator.Client) {
	w.aggregator = a
}

// RunOnce performs a single check of the configured source. Per-item
// failures are logged and counted; the batch always runs to completion
// and the seen-set is persisted at the end.
func (w *Watcher) RunOnce() (*Stats, error) {
	if w.aggregator != nil {
		log.Printf("[Watcher] Checking aggregation API")
		listings, err := w.aggregator.FetchListings()
		if err != nil {
			return nil, err
		}
		return w.processListings(listings), nil
	}

	log.Printf("[Watcher] Checking %s", w.cfg.SearchURL)
	summaries, err := w.crawler.Crawl(w.cfg.SearchURL)
	if err != nil {
		return nil, err
	}
	return w.processBatch(summaries), nil
}

// processBatch runs every unseen summary through the pipeline and
// persists the seen-set once the batch is done.
func (w *Watcher) processBatch(summaries []models.ListingSummary) *Stats {
	stats := &Stats{}
	stats.Found = len(summaries)
	w.tracker.SetSearchURL(w.cfg.SearchURL)

	for i, summary := range summaries {
		if summary.ID == "" {
			continue
		}
		if !w.tracker.IsNew(summary.ID) {
			continue
		}
		stats.New++

		w.ingest(w.buildListing(summary), stats)

		// Politeness delay between items, not after the last one
		if i < len(summaries)-1 && w.cfg.GetItemDelay() > 0 {
			time.Sleep(w.cfg.GetItemDelay())
		}
	}

	w.finishRun(stats)
	return stats
}

// processListings gates fully-formed records from the aggregation API
// through the same seen-set, price filter and sinks as crawled cards.
// No per-item delay: the records came from a single API response.
func (w *Watcher) processListings(listings []*models.Listing) *Stats {
	stats := &Stats{}
	stats.Found = len(listings)

	for _, listing := range listings {
		if listing.ID == "" {
			continue
		}
		if !w.tracker.IsNew(listing.ID) {
			continue
		}
		stats.New++
		w.ingest(listing, stats)
	}

	w.finishRun(stats)
	return stats
}

// ingest runs one new listing through the price filter and the sinks,
// marking it seen on every outcome except a sink error.
func (w *Watcher) ingest(listing *models.Listing, stats *Stats) {
	if w.outsidePriceRange(listing.Price) {
		log.Printf("[Watcher] Listing %s price %d outside configured range, skipping", listing.ID, listing.Price)
		w.tracker.MarkSeen(listing.ID)
		stats.Skipped++
		return
	}

	if err := w.processListing(listing); err != nil {
		log.Printf("[Watcher] Error processing listing %s: %v", listing.ID, err)
		stats.Errors++
		return
	}
	stats.Stored++
	w.tracker.MarkSeen(listing.ID)
}

func (w *Watcher) finishRun(stats *Stats) {
	if err := w.tracker.Persist(); err != nil {
		log.Printf("[Watcher] Error persisting seen set: %v", err)
	}
	stats.SeenSize = w.tracker.Count()

	log.Printf("[Watcher] Run complete: %d found, %d new, %d stored, %d skipped, %d errors",
		stats.Found, stats.New, stats.Stored, stats.Skipped, stats.Errors)
}

// buildListing turns a search card into a full record. With deep scrape
// enabled the detail page is fetched and parsed; otherwise the card
// data alone is used.
func (w *Watcher) buildListing(summary models.ListingSummary) *models.Listing {
	if w.cfg.DeepScrape {
		html, err := w.fetcher.FetchHTMLWithBrowser(summary.URL)
		if err != nil {
			log.Printf("[Watcher] Detail fetch failed for %s, falling back to card data: %v", summary.URL, err)
		} else {
			listing, err := extract.Parse(html, summary.URL)
			if err == nil && listing.Valid() {
				return listing
			}
			log.Printf("[Watcher] Detail extraction failed for %s, falling back to card data", summary.URL)
		}
	}
	return summaryToListing(summary)
}

func summaryToListing(s models.ListingSummary) *models.Listing {
	pricePerArea := 0
	if s.Area > 0 {
		pricePerArea = int(math.Round(float64(s.Price) / float64(s.Area)))
	}

	listing := &models.Listing{
		ID:           s.ID,
		URL:          s.URL,
		Title:        s.Title,
		Address:      s.Address,
		Price:        s.Price,
		PricePerArea: pricePerArea,
		Area:         s.Area,
		Rooms:        s.Rooms,
		Bathrooms:    s.Bathrooms,
		Status:       models.ListingStatusActive,
		FetchedAt:    time.Now(),
	}
	if s.Thumbnail != "" {
		listing.Images = []string{s.Thumbnail}
	}
	return listing
}

func (w *Watcher) outsidePriceRange(price int) bool {
	if w.cfg.MinPrice > 0 && price < w.cfg.MinPrice {
		return true
	}
	if w.cfg.MaxPrice > 0 && price > w.cfg.MaxPrice {
		return true
	}
	return false
}

func (w *Watcher) processListing(l *models.Listing) error {
	if w.store != nil {
		exists, err := w.store.Exists(l.ID)
		if err != nil {
			return err
		}
		if !exists {
			if err := w.store.Append(l); err != nil {
				return err
			}
		}
	}

	if w.notifier != nil {
		w.notifier.Notify(l)
	}

	if w.searcher != nil {
		if err := w.searcher.IndexListing(l); err != nil {
			// Indexing trouble must not lose the listing
			log.Printf("[Watcher] Error indexing listing %s: %v", l.ID, err)
		}
	}
	return nil
}

// Run checks the search URL on the configured interval until the
// context is cancelled. The first check happens immediately.
func (w *Watcher) Run(ctx context.Context) {
	interval := w.cfg.GetCheckInterval()
	log.Printf("[Watcher] Starting continuous watch, interval %v", interval)

	if _, err := w.RunOnce(); err != nil {
		log.Printf("[Watcher] Run failed: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Watcher] Stopping, persisting seen set")
			if err := w.tracker.Persist(); err != nil {
				log.Printf("[Watcher] Error persisting seen set: %v", err)
			}
			return
		case <-ticker.C:
			if _, err := w.RunOnce(); err != nil {
				log.Printf("[Watcher] Run failed: %v", err)
			}
		}
	}
}
