package search

import (
	"fmt"
	"strings"

	"idealista-watcher/internal/models"
)

type FilterParams struct {
	Query           string
	MinPrice        *int
	MaxPrice        *int
	MinRooms        *int
	MaxPricePerArea *int
	Zones           []string
	Elevator        *bool
	Terrace         *bool
	SortBy          string
	Limit           int64
}

// FilterSearch performs a search constrained by the given filters.
func (s *SearchClient) FilterSearch(params FilterParams) ([]models.Listing, error) {
	var filters []string

	if params.MinPrice != nil {
		filters = append(filters, fmt.Sprintf("price >= %d", *params.MinPrice))
	}
	if params.MaxPrice != nil {
		filters = append(filters, fmt.Sprintf("price <= %d", *params.MaxPrice))
	}
	if params.MinRooms != nil {
		filters = append(filters, fmt.Sprintf("rooms >= %d", *params.MinRooms))
	}
	if params.MaxPricePerArea != nil {
		filters = append(filters, fmt.Sprintf("price_per_area <= %d", *params.MaxPricePerArea))
	}

	if len(params.Zones) > 0 {
		zoneFilters := make([]string, len(params.Zones))
		for i, zone := range params.Zones {
			zoneFilters[i] = fmt.Sprintf("zone = '%s'", zone)
		}
		filters = append(filters, fmt.Sprintf("(%s)", strings.Join(zoneFilters, " OR ")))
	}

	if params.Elevator != nil {
		filters = append(filters, fmt.Sprintf("elevator = %t", *params.Elevator))
	}
	if params.Terrace != nil {
		filters = append(filters, fmt.Sprintf("terrace = %t", *params.Terrace))
	}

	req := SearchRequest{
		Query:  params.Query,
		Limit:  params.Limit,
		Filter: filters,
	}
	if params.SortBy != "" {
		req.Sort = []string{params.SortBy}
	}

	result, err := s.AdvancedSearch(req)
	if err != nil {
		return nil, err
	}
	return result.Hits, nil
}
