package storage

import "idealista-watcher/internal/models"

// Store is the persistence contract the watcher depends on: membership
// checks before inserting and append-style writes. Listing queries back
// the read API.
type Store interface {
	Exists(id string) (bool, error)
	Append(l *models.Listing) error
	GetAll() ([]models.Listing, error)
	GetByID(id string) (*models.Listing, error)
	MarkRemoved(ids []string) error
	Close() error
}
