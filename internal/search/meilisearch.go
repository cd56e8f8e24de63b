package search

import (
	"encoding/json"

	"github.com/meilisearch/meilisearch-go"

	"idealista-watcher/internal/models"
)

type SearchClient struct {
	client *meilisearch.Client
	index  string
}

func NewSearchClient(host, apiKey string) *SearchClient {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: apiKey,
	})

	return &SearchClient{
		client: client,
		index:  "listings",
	}
}

// InitIndex initializes the Meilisearch index
func (s *SearchClient) InitIndex() error {
	_, err := s.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        s.index,
		PrimaryKey: "id",
	})
	// Ignore error if index already exists
	if err != nil && err.Error() != "index already exists" {
		return err
	}

	_, err = s.client.Index(s.index).UpdateSearchableAttributes(&[]string{
		"title",
		"address",
		"zone",
		"description",
		"url",
	})
	if err != nil {
		return err
	}

	_, err = s.client.Index(s.index).UpdateFilterableAttributes(&[]string{
		"id",
		"price",
		"price_per_area",
		"area",
		"rooms",
		"bathrooms",
		"zone",
		"floor",
		"terrace",
		"balcony",
		"elevator",
		"parking_included",
		"needs_renovation",
		"status",
	})
	if err != nil {
		return err
	}

	_, err = s.client.Index(s.index).UpdateSortableAttributes(&[]string{
		"price",
		"price_per_area",
		"area",
		"rooms",
		"days_published",
		"created_at",
	})
	return err
}

// IndexListing indexes a single listing
func (s *SearchClient) IndexListing(listing *models.Listing) error {
	_, err := s.client.Index(s.index).AddDocuments([]models.Listing{*listing})
	return err
}

// IndexListings indexes multiple listings
func (s *SearchClient) IndexListings(listings []models.Listing) error {
	if len(listings) == 0 {
		return nil
	}
	_, err := s.client.Index(s.index).AddDocuments(listings)
	return err
}

// SearchRequest represents advanced search parameters
type SearchRequest struct {
	Query  string
	Limit  int64
	Offset int64
	Filter []string
	Sort   []string
}

// SearchResult represents search results
type SearchResult struct {
	Hits           []models.Listing
	TotalHits      int64
	ProcessingTime int64
}

// Search searches for listings with basic options
func (s *SearchClient) Search(query string, limit int64) ([]models.Listing, error) {
	result, err := s.AdvancedSearch(SearchRequest{
		Query: query,
		Limit: limit,
	})
	if err != nil {
		return nil, err
	}
	return result.Hits, nil
}

// AdvancedSearch performs search with filters and sorting
func (s *SearchClient) AdvancedSearch(req SearchRequest) (*SearchResult, error) {
	if req.Limit == 0 {
		req.Limit = 20
	}

	searchReq := &meilisearch.SearchRequest{
		Limit:  req.Limit,
		Offset: req.Offset,
	}

	if len(req.Filter) > 0 {
		filterStr := ""
		for i, f := range req.Filter {
			if i > 0 {
				filterStr += " AND "
			}
			filterStr += f
		}
		searchReq.Filter = filterStr
	}

	if len(req.Sort) > 0 {
		searchReq.Sort = req.Sort
	}

	searchRes, err := s.client.Index(s.index).Search(req.Query, searchReq)
	if err != nil {
		return nil, err
	}

	listings := make([]models.Listing, 0, len(searchRes.Hits))
	for _, hit := range searchRes.Hits {
		// Round-trip through JSON to reuse the model's tags
		hitJSON, err := json.Marshal(hit)
		if err != nil {
			continue
		}
		var listing models.Listing
		if err := json.Unmarshal(hitJSON, &listing); err != nil {
			continue
		}
		listings = append(listings, listing)
	}

	return &SearchResult{
		Hits:           listings,
		TotalHits:      searchRes.EstimatedTotalHits,
		ProcessingTime: searchRes.ProcessingTimeMs,
	}, nil
}
