package aggregator

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"idealista-watcher/internal/config"
	"idealista-watcher/internal/models"
)

// Client talks to a RapidAPI-hosted idealista aggregation API. It is an
// alternative listing source to crawling the search pages: one GET per
// result page, no HTML parsing and no browser.
type Client struct {
	cfg      config.AggregatorConfig
	minPrice int
	maxPrice int
	baseURL  string
	client   *http.Client
}

// New creates an aggregation API client. The price bounds come from the
// watcher settings so both sources filter the same way.
func New(cfg config.AggregatorConfig, minPrice, maxPrice int) *Client {
	return &Client{
		cfg:      cfg,
		minPrice: minPrice,
		maxPrice: maxPrice,
		baseURL:  "https://" + cfg.APIHost,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// searchPage fetches one result page. The API wraps the result list in a
// field that has changed name across versions, so the list is read via
// elementList, then elements, then properties; a bare JSON array is
// accepted too.
func (c *Client) searchPage(page int) ([]Record, int, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/listhomes", nil)
	if err != nil {
		return nil, 0, err
	}

	q := req.URL.Query()
	q.Set("order", c.cfg.Order)
	q.Set("operation", c.cfg.Operation)
	q.Set("locationId", c.cfg.LocationID)
	q.Set("locationName", c.cfg.LocationName)
	q.Set("numPage", strconv.Itoa(page))
	q.Set("maxItems", strconv.Itoa(c.cfg.MaxItems))
	q.Set("location", c.cfg.Country)
	q.Set("locale", c.cfg.Locale)
	if c.minPrice > 0 {
		q.Set("minPrice", strconv.Itoa(c.minPrice))
	}
	if c.maxPrice > 0 {
		q.Set("maxPrice", strconv.Itoa(c.maxPrice))
	}
	if c.cfg.MinSize > 0 {
		q.Set("minSize", strconv.Itoa(c.cfg.MinSize))
	}
	if c.cfg.MaxSize > 0 {
		q.Set("maxSize", strconv.Itoa(c.cfg.MaxSize))
	}
	req.URL.RawQuery = q.Encode()

	req.Header.Set("X-RapidAPI-Key", c.cfg.APIKey)
	req.Header.Set("X-RapidAPI-Host", c.cfg.APIHost)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("aggregation API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("aggregation API returned status %d", resp.StatusCode)
	}

	var payload interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, 0, fmt.Errorf("failed to decode aggregation API response: %w", err)
	}

	switch body := payload.(type) {
	case map[string]interface{}:
		totalPages := 1
		if tp, ok := body["totalPages"].(float64); ok {
			totalPages = int(tp)
		}
		for _, field := range []string{"elementList", "elements", "properties"} {
			if raw, ok := body[field].([]interface{}); ok {
				return toRecords(raw), totalPages, nil
			}
		}
		return nil, totalPages, nil
	case []interface{}:
		return toRecords(body), 1, nil
	}
	return nil, 0, fmt.Errorf("unexpected aggregation API response shape")
}

func toRecords(raw []interface{}) []Record {
	records := make([]Record, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]interface{}); ok {
			records = append(records, Record(m))
		}
	}
	return records
}

// FetchRecords walks result pages up to the configured maximum,
// stopping early on an empty page or when the API reports no more.
func (c *Client) FetchRecords() ([]Record, error) {
	maxPages := c.cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}

	var all []Record
	for page := 1; page <= maxPages; page++ {
		records, totalPages, err := c.searchPage(page)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			log.Printf("[Aggregator] Page %d failed, keeping %d records: %v", page, len(all), err)
			break
		}
		if len(records) == 0 {
			break
		}
		all = append(all, records...)
		if page >= totalPages {
			break
		}
	}

	log.Printf("[Aggregator] Fetched %d records", len(all))
	return all, nil
}

// FetchListings fetches all pages and maps the records onto listings.
// Records without a usable id are dropped.
func (c *Client) FetchListings() ([]*models.Listing, error) {
	records, err := c.FetchRecords()
	if err != nil {
		return nil, err
	}

	listings := make([]*models.Listing, 0, len(records))
	for _, r := range records {
		l := r.ToListing()
		if l.ID == "" {
			continue
		}
		listings = append(listings, l)
	}
	return listings, nil
}

// Record is one raw property object from the aggregation API. Field
// names vary between API versions, so every logical field is read
// through an ordered list of candidate accessors: the first one that
// matches wins and the zero value stands in when none do.
type Record map[string]interface{}

type stringAccessor func(Record) (string, bool)
type intAccessor func(Record) (int, bool)
type boolAccessor func(Record) (bool, bool)

// stringKey accepts numbers too: property codes arrive as JSON numbers
// from some API versions.
func stringKey(name string) stringAccessor {
	return func(r Record) (string, bool) {
		switch v := r[name].(type) {
		case string:
			if v != "" {
				return v, true
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		}
		return "", false
	}
}

func intKey(name string) intAccessor {
	return func(r Record) (int, bool) {
		switch v := r[name].(type) {
		case float64:
			return int(v), true
		case string:
			if n, err := strconv.Atoi(v); err == nil {
				return n, true
			}
		}
		return 0, false
	}
}

// boolKey treats a non-empty object as true: parkingSpace is an object
// on listings that have one and absent otherwise.
func boolKey(name string) boolAccessor {
	return func(r Record) (bool, bool) {
		switch v := r[name].(type) {
		case bool:
			return v, true
		case map[string]interface{}:
			return len(v) > 0, true
		}
		return false, false
	}
}

func firstString(r Record, candidates ...stringAccessor) string {
	for _, get := range candidates {
		if v, ok := get(r); ok {
			return v
		}
	}
	return ""
}

func firstInt(r Record, candidates ...intAccessor) int {
	for _, get := range candidates {
		if v, ok := get(r); ok {
			return v
		}
	}
	return 0
}

func firstBool(r Record, candidates ...boolAccessor) bool {
	for _, get := range candidates {
		if v, ok := get(r); ok {
			return v
		}
	}
	return false
}

// multimediaImages reads multimedia.images[].url, the nested shape the
// API uses for photo galleries.
func multimediaImages(r Record) ([]string, bool) {
	multimedia, ok := r["multimedia"].(map[string]interface{})
	if !ok {
		return nil, false
	}
	items, ok := multimedia["images"].([]interface{})
	if !ok {
		return nil, false
	}
	var urls []string
	for _, item := range items {
		switch img := item.(type) {
		case map[string]interface{}:
			if u, ok := img["url"].(string); ok && u != "" {
				urls = append(urls, u)
			}
		case string:
			if img != "" {
				urls = append(urls, img)
			}
		}
	}
	return urls, len(urls) > 0
}

// flatImages reads a plain images array of URL strings.
func flatImages(r Record) ([]string, bool) {
	items, ok := r["images"].([]interface{})
	if !ok {
		return nil, false
	}
	var urls []string
	for _, item := range items {
		if u, ok := item.(string); ok && u != "" {
			urls = append(urls, u)
		}
	}
	return urls, len(urls) > 0
}

// ToListing maps an API record onto a listing. The accessor chains per
// field, in priority order:
//
//	id          propertyCode, id
//	title       title, propertyName
//	area        size, surface
//	rooms       rooms, bedrooms
//	address     address, location
//	zone        district, neighborhood
//	elevator    hasLift, elevator
//	parking     parkingSpace, hasParking
//	url         url, link
//	images      multimedia.images, images, thumbnail/image/mainImage
//	description description, comments
func (r Record) ToListing() *models.Listing {
	price := firstInt(r, intKey("price"))
	area := firstInt(r, intKey("size"), intKey("surface"))
	pricePerArea := 0
	if area > 0 {
		pricePerArea = int(math.Round(float64(price) / float64(area)))
	}

	id := firstString(r, stringKey("propertyCode"), stringKey("id"))
	url := firstString(r, stringKey("url"), stringKey("link"))
	if url == "" && id != "" {
		url = "https://www.idealista.com/inmueble/" + id + "/"
	}

	description := firstString(r, stringKey("description"), stringKey("comments"))
	if runes := []rune(description); len(runes) > 500 {
		description = string(runes[:500])
	}

	listing := &models.Listing{
		ID:              id,
		URL:             url,
		Title:           firstString(r, stringKey("title"), stringKey("propertyName")),
		Address:         firstString(r, stringKey("address"), stringKey("location")),
		Zone:            firstString(r, stringKey("district"), stringKey("neighborhood")),
		Price:           price,
		PricePerArea:    pricePerArea,
		Area:            area,
		Rooms:           firstInt(r, intKey("rooms"), intKey("bedrooms")),
		Bathrooms:       firstInt(r, intKey("bathrooms")),
		Floor:           firstString(r, stringKey("floor")),
		Elevator:        firstBool(r, boolKey("hasLift"), boolKey("elevator")),
		ParkingIncluded: firstBool(r, boolKey("parkingSpace"), boolKey("hasParking")),
		Description:     description,
		Status:          models.ListingStatusActive,
		FetchedAt:       time.Now(),
	}

	images, ok := multimediaImages(r)
	if !ok {
		images, _ = flatImages(r)
	}
	if len(images) == 0 {
		if thumb := firstString(r, stringKey("thumbnail"), stringKey("image"), stringKey("mainImage")); thumb != "" {
			images = []string{thumb}
		}
	}
	listing.Images = images

	return listing
}
