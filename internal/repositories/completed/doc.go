// Package completed persists finished downloads.
//
// # Overview
//
// A CompletedRecord says a media URL has been fully written to a final path.
// The table is keyed by URL, so at most one record exists per URL; upserts
// replace the path, size and owner of an existing row.
//
// The SQLite implementation works over dbx.DBTX, so it can run against the
// database handle or inside a transaction opened with dbx.WithTx. The record
// store uses the latter to remove a partial record and insert the completed
// one atomically.
//
// Typical Usage
//
//	repo := completed.NewSQLiteRepository(db)
//	_ = repo.Upsert(ctx, rec)
//	rec, err := repo.GetByURL(ctx, url) // common.ErrorNotFound when absent
package completed
