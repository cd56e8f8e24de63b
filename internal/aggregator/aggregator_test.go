package aggregator

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"idealista-watcher/internal/config"
)

func testConfig() config.AggregatorConfig {
	return config.AggregatorConfig{
		Enabled:      true,
		APIKey:       "test-key",
		APIHost:      "idealista7.p.rapidapi.com",
		LocationID:   "0-EU-ES-28-07-001-079",
		LocationName: "Madrid",
		Operation:    "sale",
		Country:      "es",
		Locale:       "es",
		Order:        "relevance",
		MaxItems:     40,
		MaxPages:     10,
	}
}

func TestToListingPrimaryKeys(t *testing.T) {
	r := Record{
		"propertyCode": "12345678",
		"title":        "Piso en venta en Chamberí",
		"price":        float64(350000),
		"size":         float64(100),
		"rooms":        float64(3),
		"bathrooms":    float64(2),
		"address":      "Calle de Almagro",
		"district":     "Chamberí",
		"floor":        "4",
		"hasLift":      true,
		"url":          "https://www.idealista.com/inmueble/12345678/",
		"description":  "Amplio piso reformado",
		"multimedia": map[string]interface{}{
			"images": []interface{}{
				map[string]interface{}{"url": "https://img3.idealista.com/blur/WEB_LISTING/0/id.pro.es.image.master/a.jpg"},
				map[string]interface{}{"url": "https://img3.idealista.com/blur/WEB_LISTING/0/id.pro.es.image.master/b.jpg"},
			},
		},
	}

	l := r.ToListing()
	if l.ID != "12345678" {
		t.Fatalf("expected id 12345678, got %q", l.ID)
	}
	if l.Title != "Piso en venta en Chamberí" {
		t.Fatalf("unexpected title %q", l.Title)
	}
	if l.Price != 350000 || l.Area != 100 {
		t.Fatalf("expected price 350000 and area 100, got %d and %d", l.Price, l.Area)
	}
	if l.PricePerArea != 3500 {
		t.Fatalf("expected price per area 3500, got %d", l.PricePerArea)
	}
	if l.Rooms != 3 || l.Bathrooms != 2 {
		t.Fatalf("expected 3 rooms and 2 bathrooms, got %d and %d", l.Rooms, l.Bathrooms)
	}
	if l.Zone != "Chamberí" {
		t.Fatalf("expected zone Chamberí, got %q", l.Zone)
	}
	if !l.Elevator {
		t.Fatal("expected elevator true")
	}
	if len(l.Images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(l.Images))
	}
}

func TestToListingFallbackKeys(t *testing.T) {
	r := Record{
		"id":           float64(87654321),
		"propertyName": "Ático con terraza",
		"price":        float64(240000),
		"surface":      float64(80),
		"bedrooms":     float64(2),
		"location":     "Calle Mayor",
		"neighborhood": "Sol",
		"elevator":     true,
		"hasParking":   true,
		"link":         "https://www.idealista.com/inmueble/87654321/",
		"comments":     "Vistas despejadas",
		"images":       []interface{}{"https://img3.idealista.com/blur/WEB_LISTING/0/c.jpg"},
	}

	l := r.ToListing()
	if l.ID != "87654321" {
		t.Fatalf("expected numeric id stringified to 87654321, got %q", l.ID)
	}
	if l.Title != "Ático con terraza" {
		t.Fatalf("unexpected title %q", l.Title)
	}
	if l.Area != 80 || l.Rooms != 2 {
		t.Fatalf("expected area 80 and rooms 2, got %d and %d", l.Area, l.Rooms)
	}
	if l.Address != "Calle Mayor" || l.Zone != "Sol" {
		t.Fatalf("unexpected address %q / zone %q", l.Address, l.Zone)
	}
	if !l.Elevator || !l.ParkingIncluded {
		t.Fatal("expected elevator and parking from fallback keys")
	}
	if l.URL != "https://www.idealista.com/inmueble/87654321/" {
		t.Fatalf("unexpected url %q", l.URL)
	}
	if l.Description != "Vistas despejadas" {
		t.Fatalf("unexpected description %q", l.Description)
	}
	if len(l.Images) != 1 {
		t.Fatalf("expected 1 image, got %d", len(l.Images))
	}
}

func TestToListingSentinels(t *testing.T) {
	l := Record{}.ToListing()
	if l.ID != "" || l.URL != "" || l.Title != "" {
		t.Fatalf("expected empty sentinels, got id %q url %q title %q", l.ID, l.URL, l.Title)
	}
	if l.Price != 0 || l.Area != 0 || l.PricePerArea != 0 {
		t.Fatalf("expected zero numerics, got price %d area %d ppa %d", l.Price, l.Area, l.PricePerArea)
	}
	if l.Elevator || l.ParkingIncluded {
		t.Fatal("expected boolean sentinels to be false")
	}
}

func TestToListingBuildsURLFromID(t *testing.T) {
	r := Record{"propertyCode": "11112222", "price": float64(100000)}
	l := r.ToListing()
	if l.URL != "https://www.idealista.com/inmueble/11112222/" {
		t.Fatalf("unexpected url %q", l.URL)
	}
}

func TestToListingTruncatesDescription(t *testing.T) {
	r := Record{"propertyCode": "1", "description": strings.Repeat("ñ", 600)}
	l := r.ToListing()
	if got := len([]rune(l.Description)); got != 500 {
		t.Fatalf("expected description truncated to 500 runes, got %d", got)
	}
}

func TestToListingParkingObject(t *testing.T) {
	r := Record{
		"propertyCode": "2",
		"parkingSpace": map[string]interface{}{"hasParkingSpace": true, "isParkingSpaceIncludedInPrice": true},
	}
	if l := r.ToListing(); !l.ParkingIncluded {
		t.Fatal("expected parkingSpace object to count as parking")
	}
}

func TestFetchListings(t *testing.T) {
	var gotPath, gotKey, gotHost string
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.Path
		gotKey = req.Header.Get("X-RapidAPI-Key")
		gotHost = req.Header.Get("X-RapidAPI-Host")
		gotQuery = req.URL.Query()
		fmt.Fprint(w, `{"totalPages":1,"elementList":[
			{"propertyCode":"100","price":200000,"size":75,"address":"Calle Uno"},
			{"price":150000},
			{"id":200,"price":180000,"surface":60,"location":"Calle Dos"}
		]}`)
	}))
	defer server.Close()

	c := New(testConfig(), 150000, 300000)
	c.baseURL = server.URL

	listings, err := c.FetchListings()
	if err != nil {
		t.Fatalf("FetchListings failed: %v", err)
	}

	if gotPath != "/listhomes" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotKey != "test-key" || gotHost != "idealista7.p.rapidapi.com" {
		t.Fatalf("missing API headers, got key %q host %q", gotKey, gotHost)
	}
	for param, want := range map[string]string{
		"operation": "sale", "locationId": "0-EU-ES-28-07-001-079",
		"numPage": "1", "maxItems": "40", "minPrice": "150000", "maxPrice": "300000",
	} {
		if got := gotQuery[param]; len(got) != 1 || got[0] != want {
			t.Fatalf("expected query %s=%s, got %v", param, want, got)
		}
	}

	// The record without any id key is dropped
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(listings))
	}
	if listings[0].ID != "100" || listings[1].ID != "200" {
		t.Fatalf("unexpected ids %q and %q", listings[0].ID, listings[1].ID)
	}
}

func TestFetchRecordsPagination(t *testing.T) {
	pages := map[string]string{
		"1": `{"totalPages":2,"elementList":[{"propertyCode":"1"},{"propertyCode":"2"}]}`,
		"2": `{"totalPages":2,"elementList":[{"propertyCode":"3"}]}`,
	}
	var requested []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		page := req.URL.Query().Get("numPage")
		requested = append(requested, page)
		fmt.Fprint(w, pages[page])
	}))
	defer server.Close()

	c := New(testConfig(), 0, 0)
	c.baseURL = server.URL

	records, err := c.FetchRecords()
	if err != nil {
		t.Fatalf("FetchRecords failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records across pages, got %d", len(records))
	}
	if len(requested) != 2 {
		t.Fatalf("expected exactly 2 page requests, got %v", requested)
	}
}

func TestFetchRecordsStopsOnEmptyPage(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		calls++
		if calls == 1 {
			fmt.Fprint(w, `{"totalPages":5,"elementList":[{"propertyCode":"1"}]}`)
			return
		}
		fmt.Fprint(w, `{"totalPages":5,"elementList":[]}`)
	}))
	defer server.Close()

	c := New(testConfig(), 0, 0)
	c.baseURL = server.URL

	records, err := c.FetchRecords()
	if err != nil {
		t.Fatalf("FetchRecords failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if calls != 2 {
		t.Fatalf("expected fetching to stop after the empty page, got %d calls", calls)
	}
}

func TestFetchRecordsBareArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, `[{"propertyCode":"1"},{"propertyCode":"2"}]`)
	}))
	defer server.Close()

	c := New(testConfig(), 0, 0)
	c.baseURL = server.URL

	records, err := c.FetchRecords()
	if err != nil {
		t.Fatalf("FetchRecords failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}

func TestFetchRecordsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := New(testConfig(), 0, 0)
	c.baseURL = server.URL

	if _, err := c.FetchRecords(); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}
