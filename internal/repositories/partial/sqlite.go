package partial

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mediafetch/internal/common"
	"github.com/dmitrijs2005/mediafetch/internal/dbx"
	"github.com/dmitrijs2005/mediafetch/internal/models"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, rec models.PartialRecord) error {
	query := `INSERT INTO partial_downloads (media_url, tmp_path, downloaded_size, total_size, user_id, post_id, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(media_url) DO UPDATE SET tmp_path = excluded.tmp_path,
				downloaded_size = excluded.downloaded_size,
				total_size = excluded.total_size,
				user_id = excluded.user_id,
				post_id = excluded.post_id,
				updated_at = excluded.updated_at
	`
	var total sql.NullInt64
	if rec.Total != nil {
		total = sql.NullInt64{Int64: *rec.Total, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, query,
		rec.URL, rec.TempPath, rec.Downloaded, total, rec.UserID, rec.PostID, rec.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert partial download: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByURL(ctx context.Context, url string) (*models.PartialRecord, error) {
	query := `SELECT media_url, tmp_path, downloaded_size, total_size, user_id, post_id, updated_at
			FROM partial_downloads WHERE media_url = ?`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return rec, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.PartialRecord, error) {
	query := `SELECT media_url, tmp_path, downloaded_size, total_size, user_id, post_id, updated_at
			FROM partial_downloads`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select partial downloads: %w", err)
	}
	defer rows.Close()

	var result []models.PartialRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) DeleteByURL(ctx context.Context, url string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM partial_downloads WHERE media_url = ?`, url); err != nil {
		return fmt.Errorf("failed to delete partial download: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.PartialRecord, error) {
	rec := &models.PartialRecord{}
	var total sql.NullInt64
	if err := s.Scan(&rec.URL, &rec.TempPath, &rec.Downloaded, &total, &rec.UserID, &rec.PostID, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if total.Valid {
		v := total.Int64
		rec.Total = &v
	}
	return rec, nil
}
