package models

// ListingSummary is the light record extracted from one search-results
// card. A summary carries only what the card shows; the full record
// comes from the detail page.
type ListingSummary struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Price     int    `json:"price"`
	Rooms     int    `json:"rooms"`
	Area      int    `json:"area"`
	Bathrooms int    `json:"bathrooms"`
	Address   string `json:"address,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}
