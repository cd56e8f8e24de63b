package storage

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"idealista-watcher/internal/models"
)

// GormStore persists listings in MySQL through GORM.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(host, port, user, password, dbname string) (*GormStore, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, password, host, port, dbname)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}

	return &GormStore{db: db}, nil
}

// NewGormStoreFromDB wraps an existing gorm.DB instance
func NewGormStoreFromDB(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InitSchema creates tables using GORM AutoMigrate
func (s *GormStore) InitSchema() error {
	return s.db.AutoMigrate(
		&models.Listing{},
		&models.ListingImage{},
	)
}

// Exists reports whether a listing id is already stored.
func (s *GormStore) Exists(id string) (bool, error) {
	var count int64
	err := s.db.Model(&models.Listing{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Append saves or updates a listing together with its images (upsert by
// id, keeping the original CreatedAt, Status and RemovedAt on update).
func (s *GormStore) Append(l *models.Listing) error {
	if l.ID == "" {
		return errors.New("listing id is empty")
	}
	if l.FetchedAt.IsZero() {
		l.FetchedAt = time.Now()
	}
	if l.Status == "" {
		l.Status = models.ListingStatusActive
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Listing
		result := tx.Where("id = ?", l.ID).First(&existing)

		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			if err := tx.Create(l).Error; err != nil {
				return err
			}
		} else if result.Error != nil {
			return result.Error
		} else {
			l.CreatedAt = existing.CreatedAt
			l.Status = existing.Status
			l.RemovedAt = existing.RemovedAt
			if err := tx.Save(l).Error; err != nil {
				return err
			}
		}

		return saveListingImages(tx, l.ID, l.Images)
	})
}

// saveListingImages replaces the image rows for a listing. An empty
// slice leaves existing rows alone: a blocked or partial page must not
// wipe images collected earlier.
func saveListingImages(tx *gorm.DB, listingID string, urls []string) error {
	if len(urls) == 0 {
		return nil
	}

	if err := tx.Where("listing_id = ?", listingID).Delete(&models.ListingImage{}).Error; err != nil {
		return err
	}

	images := make([]models.ListingImage, 0, len(urls))
	for i, u := range urls {
		images = append(images, models.ListingImage{
			ListingID: listingID,
			ImageURL:  u,
			SortOrder: i,
		})
	}
	return tx.Create(&images).Error
}

// GetAll retrieves all listings, newest first.
func (s *GormStore) GetAll() ([]models.Listing, error) {
	var listings []models.Listing
	err := s.db.Order("created_at DESC").Find(&listings).Error
	return listings, err
}

// GetWithSort retrieves all listings with a custom ordering.
func (s *GormStore) GetWithSort(sortBy string) ([]models.Listing, error) {
	var listings []models.Listing

	var orderClause string
	switch sortBy {
	case "price_asc":
		orderClause = "price ASC"
	case "price_desc":
		orderClause = "price DESC"
	case "area_desc":
		orderClause = "area DESC"
	case "price_per_area_asc":
		orderClause = "price_per_area ASC"
	case "fetched_at_asc":
		orderClause = "fetched_at ASC"
	default:
		orderClause = "created_at DESC"
	}

	err := s.db.Order(orderClause).Find(&listings).Error
	return listings, err
}

// GetByID retrieves one listing with its images in sort order.
func (s *GormStore) GetByID(id string) (*models.Listing, error) {
	var listing models.Listing
	if err := s.db.Where("id = ?", id).First(&listing).Error; err != nil {
		return nil, err
	}

	var images []models.ListingImage
	if err := s.db.Where("listing_id = ?", id).Order("sort_order ASC").Find(&images).Error; err != nil {
		return nil, err
	}
	for _, img := range images {
		listing.Images = append(listing.Images, img.ImageURL)
	}
	return &listing, nil
}

// GetActive retrieves listings still marked active, newest first.
func (s *GormStore) GetActive() ([]models.Listing, error) {
	var listings []models.Listing
	err := s.db.Where("status = ?", models.ListingStatusActive).Order("created_at DESC").Find(&listings).Error
	return listings, err
}

// MarkRemoved flags listings as unpublished (logical deletion).
func (s *GormStore) MarkRemoved(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now()
	return s.db.Model(&models.Listing{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"status":     models.ListingStatusRemoved,
			"removed_at": &now,
		}).Error
}
