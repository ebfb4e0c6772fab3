// Package store is the durable record store of the download engine.
//
// It keeps two tables in one SQLite file: completed downloads and partial
// (interrupted) downloads. Every mutation is committed before the call
// returns and all writes go through a single writer lock. Skip checks are
// answered from an in-memory snapshot of completed records loaded at open
// and kept current on every write.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/mediafetch/internal/common"
	"github.com/dmitrijs2005/mediafetch/internal/dbx"
	"github.com/dmitrijs2005/mediafetch/internal/filex"
	"github.com/dmitrijs2005/mediafetch/internal/logging"
	"github.com/dmitrijs2005/mediafetch/internal/models"
	"github.com/dmitrijs2005/mediafetch/internal/repositories/completed"
	"github.com/dmitrijs2005/mediafetch/internal/repositories/metadata"
	"github.com/dmitrijs2005/mediafetch/internal/repositories/partial"
)

const (
	keyLastRunID   = "last_run_id"
	runKeyPrefix   = "run:"
	migrateTimeout = 30 * time.Second

	// DatabaseFile is the state file name inside the state directory.
	DatabaseFile = "downloads.db"
)

type Store struct {
	db  *sql.DB
	log logging.Logger

	completed completed.Repository
	partial   partial.Repository
	meta      metadata.Repository

	writeMu sync.Mutex

	mu        sync.RWMutex
	done      map[string]models.CompletedRecord
	partials  map[string]models.PartialRecord
	closeOnce sync.Once
}

// Open opens (creating if needed) the database file at path.
func Open(ctx context.Context, path string, log logging.Logger) (*Store, error) {
	db, err := dbx.Open(ctx, dbx.FileDSN(path))
	if err != nil {
		return nil, err
	}
	s, err := New(ctx, db, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New migrates db, loads the completed snapshot and purges partial records
// whose temp file is gone. The store takes ownership of db.
func New(ctx context.Context, db *sql.DB, log logging.Logger) (*Store, error) {
	// One connection: SQLite has a single writer, and in-memory databases
	// are per connection.
	db.SetMaxOpenConns(1)

	mctx, cancel := context.WithTimeout(ctx, migrateTimeout)
	defer cancel()
	if err := RunMigrations(mctx, db); err != nil {
		return nil, err
	}

	if log == nil {
		log = logging.Discard()
	}

	s := &Store{
		db:        db,
		log:       log,
		completed: completed.NewSQLiteRepository(db),
		partial:   partial.NewSQLiteRepository(db),
		meta:      metadata.NewSQLiteRepository(db),
		done:      make(map[string]models.CompletedRecord),
		partials:  make(map[string]models.PartialRecord),
	}

	if err := s.loadCompleted(ctx); err != nil {
		return nil, err
	}
	if _, err := s.LoadAllPartial(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadCompleted(ctx context.Context) error {
	all, err := s.completed.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load completed: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range all {
		s.done[r.URL] = r
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		err = s.db.Close()
	})
	return err
}

// LookupCompleted reports the stored path and size for url.
func (s *Store) LookupCompleted(url string) (string, int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.done[url]
	return r.Path, r.Size, ok
}

// CompletedCount is the number of known completed URLs.
func (s *Store) CompletedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.done)
}

// UpsertCompleted records rec without touching partial state.
func (s *Store) UpsertCompleted(ctx context.Context, rec models.CompletedRecord) error {
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = time.Now()
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.completed.Upsert(ctx, rec); err != nil {
		return err
	}

	s.mu.Lock()
	s.done[rec.URL] = rec
	s.mu.Unlock()
	return nil
}

// Complete removes the partial record for rec.URL and upserts rec in one
// transaction, so the two never coexist.
func (s *Store) Complete(ctx context.Context, rec models.CompletedRecord) error {
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = time.Now()
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := partial.NewSQLiteRepository(tx).DeleteByURL(ctx, rec.URL); err != nil {
			return err
		}
		return completed.NewSQLiteRepository(tx).Upsert(ctx, rec)
	})
	if err != nil {
		return fmt.Errorf("complete %s: %w", rec.URL, err)
	}

	s.mu.Lock()
	delete(s.partials, rec.URL)
	s.done[rec.URL] = rec
	s.mu.Unlock()
	return nil
}

// UpsertPartial stores progress of an interrupted or running transfer.
func (s *Store) UpsertPartial(ctx context.Context, rec models.PartialRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.partial.Upsert(ctx, rec); err != nil {
		return err
	}

	s.mu.Lock()
	s.partials[rec.URL] = rec
	s.mu.Unlock()
	return nil
}

// RemovePartial deletes the partial record for url, if any.
func (s *Store) RemovePartial(ctx context.Context, url string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.partial.DeleteByURL(ctx, url); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.partials, url)
	s.mu.Unlock()
	return nil
}

// Partial returns the partial record for url.
func (s *Store) Partial(url string) (models.PartialRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.partials[url]
	return r, ok
}

// LoadAllPartial reloads partial records from disk, deleting those whose
// temp file no longer exists, and returns the survivors.
func (s *Store) LoadAllPartial(ctx context.Context) (map[string]models.PartialRecord, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	all, err := s.partial.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load partial: %w", err)
	}

	live := make(map[string]models.PartialRecord, len(all))
	for _, r := range all {
		if filex.Exists(r.TempPath) {
			live[r.URL] = r
			continue
		}
		if err := s.partial.DeleteByURL(ctx, r.URL); err != nil {
			return nil, err
		}
		s.log.Info(ctx, "Purged stale partial record", "url", r.URL, "tmp", r.TempPath)
	}

	s.mu.Lock()
	s.partials = live
	s.mu.Unlock()

	out := make(map[string]models.PartialRecord, len(live))
	for k, v := range live {
		out[k] = v
	}
	return out, nil
}

// Clear forgets every completed download and the saved run summaries.
// Partial records are kept so interrupted transfers can still resume.
func (s *Store) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := completed.NewSQLiteRepository(tx).Clear(ctx); err != nil {
			return err
		}
		meta := metadata.NewSQLiteRepository(tx)
		runs, err := meta.Keys(ctx, runKeyPrefix)
		if err != nil {
			return err
		}
		return meta.Delete(ctx, append(runs, keyLastRunID)...)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.done = make(map[string]models.CompletedRecord)
	s.mu.Unlock()
	return nil
}

// SaveRunSummary persists sum as the last run, replacing the summaries of
// earlier runs.
func (s *Store) SaveRunSummary(ctx context.Context, sum models.RunSummary) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	key := runKeyPrefix + sum.RunID
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		old, err := repo.Keys(ctx, runKeyPrefix)
		if err != nil {
			return err
		}
		old = slices.DeleteFunc(old, func(k string) bool { return k == key })
		if err := repo.Delete(ctx, old...); err != nil {
			return err
		}
		if err := metadata.SetJSON(ctx, repo, key, sum); err != nil {
			return err
		}
		return repo.Set(ctx, keyLastRunID, []byte(sum.RunID))
	})
}

// LastRunSummary returns the summary of the most recent saved run.
func (s *Store) LastRunSummary(ctx context.Context) (*models.RunSummary, error) {
	id, err := s.meta.Get(ctx, keyLastRunID)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, errNoRuns
	}
	var sum models.RunSummary
	ok, err := metadata.GetJSON(ctx, s.meta, runKeyPrefix+string(id), &sum)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNoRuns
	}
	return &sum, nil
}

var errNoRuns = fmt.Errorf("no saved runs: %w", common.ErrorNotFound)
