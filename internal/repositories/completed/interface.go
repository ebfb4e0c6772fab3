package completed

import (
	"context"

	"github.com/dmitrijs2005/mediafetch/internal/models"
)

// Repository describes storage operations for CompletedRecord rows.
type Repository interface {
	// Upsert inserts rec or replaces the existing row for rec.URL.
	Upsert(ctx context.Context, rec models.CompletedRecord) error

	// GetByURL returns the record for url or common.ErrorNotFound.
	GetByURL(ctx context.Context, url string) (*models.CompletedRecord, error)

	// GetAll returns every completed record.
	GetAll(ctx context.Context) ([]models.CompletedRecord, error)

	// Count returns the number of completed records.
	Count(ctx context.Context) (int, error)

	// Clear removes all completed records.
	Clear(ctx context.Context) error
}
