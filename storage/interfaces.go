package storage

import (
	"context"

	"suumo-scraper/models"
)

// Sink is the interface any storage backend must satisfy. Write persists a
// whole run's batch in one logical operation.
type Sink interface {
	Name() string
	Write(ctx context.Context, listings []*models.Listing) error
	Close() error
}

// ListingReader reads back what a table sink holds.
type ListingReader interface {
	FetchAll(ctx context.Context) ([]*models.Listing, error)
	Count(ctx context.Context) (int, error)
}
