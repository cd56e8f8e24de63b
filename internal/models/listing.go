package models

import "time"

// Listing is a property record assembled from an idealista detail page.
// Numeric fields use 0 as the "not found" value, matching the extractors.
type Listing struct {
	ID    string `gorm:"type:varchar(32);primaryKey" json:"id"`
	URL   string `gorm:"type:varchar(500);not null;uniqueIndex" json:"url"`
	Title string `gorm:"type:text" json:"title"`

	Address string `gorm:"type:text" json:"address,omitempty"`
	Zone    string `gorm:"type:varchar(120);index" json:"zone,omitempty"`

	Price        int `gorm:"index" json:"price"`
	PricePerArea int `json:"price_per_area"`

	// Area is the built surface when stated, otherwise the first generic
	// m² figure on the page.
	Area       int    `gorm:"index" json:"area"`
	BuiltArea  int    `json:"built_area,omitempty"`
	UsableArea int    `json:"usable_area,omitempty"`
	Rooms      int    `gorm:"index" json:"rooms"`
	Bathrooms  int    `json:"bathrooms"`
	Floor      string `gorm:"type:varchar(40)" json:"floor,omitempty"`

	Terrace         bool `json:"terrace"`
	Balcony         bool `json:"balcony"`
	Elevator        bool `json:"elevator"`
	ParkingIncluded bool `json:"parking_included"`
	ParkingOptional bool `json:"parking_optional"`
	NeedsRenovation bool `json:"needs_renovation"`

	YearBuilt     *int   `gorm:"type:int" json:"year_built,omitempty"`
	Orientation   string `gorm:"type:varchar(20)" json:"orientation,omitempty"`
	DaysPublished int    `json:"days_published"`
	Description   string `gorm:"type:text" json:"description,omitempty"`

	// Images are persisted in their own table, in discovery order.
	Images []string `gorm:"-" json:"images,omitempty"`

	Status    ListingStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	RemovedAt *time.Time    `gorm:"type:datetime" json:"removed_at,omitempty"`

	FetchedAt time.Time `gorm:"type:datetime;not null" json:"fetched_at"`
	CreatedAt time.Time `gorm:"type:datetime;not null;autoCreateTime;index:idx_created_at,sort:desc" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:datetime;not null;autoUpdateTime" json:"updated_at"`
}

// ListingStatus marks whether a listing is still published.
type ListingStatus string

const (
	ListingStatusActive  ListingStatus = "active"
	ListingStatusRemoved ListingStatus = "removed"
)

// TableName specifies the table name for Listing
func (Listing) TableName() string {
	return "listings"
}

// Valid reports whether extraction produced a usable record: a price or
// at least an address. Invalid records are still returned to callers.
func (l *Listing) Valid() bool {
	return l.Price > 0 || l.Address != ""
}

// IsActive reports whether the listing is still published.
func (l *Listing) IsActive() bool {
	return l.Status == ListingStatusActive
}

// MarkAsRemoved flags the listing as unpublished without deleting the row.
func (l *Listing) MarkAsRemoved() {
	l.Status = ListingStatusRemoved
	now := time.Now()
	l.RemovedAt = &now
}
