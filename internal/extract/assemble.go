package extract

import (
	"log"
	"math"
	"time"

	"idealista-watcher/internal/models"
)

// Parse runs every field extractor over a detail page and assembles the
// listing record. A record is always returned, even when extraction
// found close to nothing; callers decide what to do with invalid ones
// via Listing.Valid().
func Parse(html, url string) (*models.Listing, error) {
	doc, text, err := Normalize(html)
	if err != nil {
		return nil, err
	}

	price := extractPrice(doc)
	builtSize := extractBuiltSize(text, doc)
	usableSize := extractUsableSize(text)
	size := builtSize
	if size == 0 {
		size = extractSize(doc)
	}

	pricePerArea := 0
	if size > 0 {
		pricePerArea = int(math.Round(float64(price) / float64(size)))
	}

	title := extractTitle(doc)
	address := extractAddress(doc)
	if address == "" {
		address = title
	}

	var yearBuilt *int
	if year := extractYearBuilt(text); year > 0 {
		yearBuilt = &year
	}

	images := CollectImages(html, doc)
	if len(images) > 0 {
		log.Printf("[Extract] Found %d unique images", len(images))
	}

	listing := &models.Listing{
		ID:              PropertyIDFromURL(url),
		URL:             url,
		Title:           title,
		Address:         address,
		Zone:            extractZone(doc),
		Price:           price,
		PricePerArea:    pricePerArea,
		Area:            size,
		BuiltArea:       builtSize,
		UsableArea:      usableSize,
		Rooms:           extractRooms(text),
		Bathrooms:       extractBathrooms(text),
		Floor:           extractFloor(text),
		Terrace:         extractTerrace(text),
		Balcony:         extractBalcony(text),
		Elevator:        extractElevator(text),
		ParkingIncluded: extractParkingIncluded(text),
		ParkingOptional: extractParkingOptional(text),
		NeedsRenovation: extractNeedsRenovation(text),
		YearBuilt:       yearBuilt,
		Orientation:     extractOrientation(text),
		DaysPublished:   extractDaysPublished(text),
		Description:     extractDescription(doc),
		Images:          images,
		Status:          models.ListingStatusActive,
		FetchedAt:       time.Now(),
	}
	return listing, nil
}
