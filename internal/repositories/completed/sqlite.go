package completed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mediafetch/internal/common"
	"github.com/dmitrijs2005/mediafetch/internal/dbx"
	"github.com/dmitrijs2005/mediafetch/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, rec models.CompletedRecord) error {
	query := `INSERT INTO downloads (media_url, file_path, file_size, user_id, post_id, downloaded_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(media_url) DO UPDATE SET file_path = excluded.file_path,
				file_size = excluded.file_size,
				user_id = excluded.user_id,
				post_id = excluded.post_id,
				downloaded_at = excluded.downloaded_at
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.URL, rec.Path, rec.Size, rec.UserID, rec.PostID, rec.CompletedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert download: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByURL(ctx context.Context, url string) (*models.CompletedRecord, error) {
	query := `SELECT media_url, file_path, file_size, user_id, post_id, downloaded_at
			FROM downloads WHERE media_url = ?`
	rec := &models.CompletedRecord{}
	err := r.db.QueryRowContext(ctx, query, url).
		Scan(&rec.URL, &rec.Path, &rec.Size, &rec.UserID, &rec.PostID, &rec.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return rec, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.CompletedRecord, error) {
	query := `SELECT media_url, file_path, file_size, user_id, post_id, downloaded_at
			FROM downloads ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select downloads: %w", err)
	}
	defer rows.Close()

	var result []models.CompletedRecord
	for rows.Next() {
		var rec models.CompletedRecord
		if err := rows.Scan(&rec.URL, &rec.Path, &rec.Size, &rec.UserID, &rec.PostID, &rec.CompletedAt); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM downloads`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count downloads: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM downloads`); err != nil {
		return fmt.Errorf("failed to clear downloads: %w", err)
	}
	return nil
}
