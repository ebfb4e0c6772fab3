package partial

import (
	"context"

	"github.com/dmitrijs2005/mediafetch/internal/models"
)

// Repository describes storage operations for PartialRecord rows.
type Repository interface {
	// Upsert inserts rec or replaces the existing row for rec.URL.
	Upsert(ctx context.Context, rec models.PartialRecord) error

	// GetByURL returns the record for url or common.ErrorNotFound.
	GetByURL(ctx context.Context, url string) (*models.PartialRecord, error)

	// GetAll returns every partial record.
	GetAll(ctx context.Context) ([]models.PartialRecord, error)

	// DeleteByURL removes the record for url. Deleting a missing row is not an error.
	DeleteByURL(ctx context.Context, url string) error
}
