package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"idealista-watcher/internal/models"
)

// PostgresStore persists listings in PostgreSQL over database/sql.
type PostgresStore struct {
	conn *sql.DB
}

func NewPostgresStore(host, port, user, password, dbname string) (*PostgresStore, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{conn: conn}, nil
}

func (s *PostgresStore) Close() error {
	return s.conn.Close()
}

// InitSchema creates the listings tables if they don't exist
func (s *PostgresStore) InitSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS listings (
		id VARCHAR(32) PRIMARY KEY,
		url TEXT NOT NULL UNIQUE,
		title TEXT,
		address TEXT,
		zone VARCHAR(120),

		price INTEGER NOT NULL DEFAULT 0,
		price_per_area INTEGER NOT NULL DEFAULT 0,
		area INTEGER NOT NULL DEFAULT 0,
		built_area INTEGER NOT NULL DEFAULT 0,
		usable_area INTEGER NOT NULL DEFAULT 0,
		rooms INTEGER NOT NULL DEFAULT 0,
		bathrooms INTEGER NOT NULL DEFAULT 0,
		floor VARCHAR(40),

		terrace BOOLEAN NOT NULL DEFAULT FALSE,
		balcony BOOLEAN NOT NULL DEFAULT FALSE,
		elevator BOOLEAN NOT NULL DEFAULT FALSE,
		parking_included BOOLEAN NOT NULL DEFAULT FALSE,
		parking_optional BOOLEAN NOT NULL DEFAULT FALSE,
		needs_renovation BOOLEAN NOT NULL DEFAULT FALSE,

		year_built INTEGER,
		orientation VARCHAR(20),
		days_published INTEGER NOT NULL DEFAULT 0,
		description TEXT,

		status VARCHAR(20) NOT NULL DEFAULT 'active',
		removed_at TIMESTAMP,
		fetched_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS listing_images (
		id BIGSERIAL PRIMARY KEY,
		listing_id VARCHAR(32) NOT NULL REFERENCES listings(id),
		image_url TEXT NOT NULL,
		sort_order INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_listings_created_at ON listings(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_listings_price ON listings(price);
	CREATE INDEX IF NOT EXISTS idx_listings_zone ON listings(zone);
	CREATE INDEX IF NOT EXISTS idx_listing_images_listing_id ON listing_images(listing_id);
	`
	_, err := s.conn.Exec(query)
	return err
}

// Exists reports whether a listing id is already stored.
func (s *PostgresStore) Exists(id string) (bool, error) {
	var count int
	err := s.conn.QueryRow(`SELECT COUNT(1) FROM listings WHERE id = $1`, id).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Append saves a listing (upsert by id) and replaces its image rows.
func (s *PostgresStore) Append(l *models.Listing) error {
	if l.FetchedAt.IsZero() {
		l.FetchedAt = time.Now()
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
	INSERT INTO listings (
		id, url, title, address, zone,
		price, price_per_area, area, built_area, usable_area, rooms, bathrooms, floor,
		terrace, balcony, elevator, parking_included, parking_optional, needs_renovation,
		year_built, orientation, days_published, description,
		fetched_at, created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
	ON CONFLICT (id) DO UPDATE SET
		url = EXCLUDED.url,
		title = EXCLUDED.title,
		address = EXCLUDED.address,
		zone = EXCLUDED.zone,
		price = EXCLUDED.price,
		price_per_area = EXCLUDED.price_per_area,
		area = EXCLUDED.area,
		built_area = EXCLUDED.built_area,
		usable_area = EXCLUDED.usable_area,
		rooms = EXCLUDED.rooms,
		bathrooms = EXCLUDED.bathrooms,
		floor = EXCLUDED.floor,
		terrace = EXCLUDED.terrace,
		balcony = EXCLUDED.balcony,
		elevator = EXCLUDED.elevator,
		parking_included = EXCLUDED.parking_included,
		parking_optional = EXCLUDED.parking_optional,
		needs_renovation = EXCLUDED.needs_renovation,
		year_built = EXCLUDED.year_built,
		orientation = EXCLUDED.orientation,
		days_published = EXCLUDED.days_published,
		description = EXCLUDED.description,
		fetched_at = EXCLUDED.fetched_at
	`
	_, err = tx.Exec(query,
		l.ID, l.URL, l.Title, l.Address, l.Zone,
		l.Price, l.PricePerArea, l.Area, l.BuiltArea, l.UsableArea, l.Rooms, l.Bathrooms, l.Floor,
		l.Terrace, l.Balcony, l.Elevator, l.ParkingIncluded, l.ParkingOptional, l.NeedsRenovation,
		l.YearBuilt, l.Orientation, l.DaysPublished, l.Description,
		l.FetchedAt, time.Now())
	if err != nil {
		return err
	}

	if len(l.Images) > 0 {
		if _, err := tx.Exec(`DELETE FROM listing_images WHERE listing_id = $1`, l.ID); err != nil {
			return err
		}
		for i, u := range l.Images {
			_, err := tx.Exec(`INSERT INTO listing_images (listing_id, image_url, sort_order) VALUES ($1, $2, $3)`,
				l.ID, u, i)
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

const listingColumns = `id, url, title, address, zone,
	price, price_per_area, area, built_area, usable_area, rooms, bathrooms, floor,
	terrace, balcony, elevator, parking_included, parking_optional, needs_renovation,
	year_built, orientation, days_published, description,
	status, removed_at, fetched_at, created_at`

func scanListing(scanner interface{ Scan(...interface{}) error }) (*models.Listing, error) {
	var l models.Listing
	err := scanner.Scan(
		&l.ID, &l.URL, &l.Title, &l.Address, &l.Zone,
		&l.Price, &l.PricePerArea, &l.Area, &l.BuiltArea, &l.UsableArea, &l.Rooms, &l.Bathrooms, &l.Floor,
		&l.Terrace, &l.Balcony, &l.Elevator, &l.ParkingIncluded, &l.ParkingOptional, &l.NeedsRenovation,
		&l.YearBuilt, &l.Orientation, &l.DaysPublished, &l.Description,
		&l.Status, &l.RemovedAt, &l.FetchedAt, &l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetAll retrieves all listings, newest first.
func (s *PostgresStore) GetAll() ([]models.Listing, error) {
	rows, err := s.conn.Query(`SELECT ` + listingColumns + ` FROM listings ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

// GetByID retrieves one listing with its images in sort order.
func (s *PostgresStore) GetByID(id string) (*models.Listing, error) {
	l, err := scanListing(s.conn.QueryRow(`SELECT `+listingColumns+` FROM listings WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	rows, err := s.conn.Query(`SELECT image_url FROM listing_images WHERE listing_id = $1 ORDER BY sort_order ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		l.Images = append(l.Images, u)
	}
	return l, rows.Err()
}

// MarkRemoved flags listings as unpublished.
func (s *PostgresStore) MarkRemoved(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now()
	for _, id := range ids {
		if _, err := s.conn.Exec(`UPDATE listings SET status = 'removed', removed_at = $1 WHERE id = $2`, now, id); err != nil {
			return err
		}
	}
	return nil
}
