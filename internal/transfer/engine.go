// Package transfer downloads one media item at a time: skip check, resume
// from a temp file, ranged continuation, size verification and the final
// atomic rename.
//
// An item moves PENDING → SKIPPED, or PENDING → ATTEMPTING and then, possibly
// through RESUMING, to COMPLETED, FAILED or CANCELLED. Bytes are only ever
// appended to the item's temp file, which is renamed over the final path
// after its size matches the declared total.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/mediafetch/internal/common"
	"github.com/dmitrijs2005/mediafetch/internal/control"
	"github.com/dmitrijs2005/mediafetch/internal/filex"
	"github.com/dmitrijs2005/mediafetch/internal/logging"
	"github.com/dmitrijs2005/mediafetch/internal/models"
	"github.com/dmitrijs2005/mediafetch/internal/netx"
)

const (
	DefaultChunkSize       = 1 << 20
	DefaultPartialInterval = 5 * time.Second
)

// DefaultHeaders are sent with every media request. Compression is
// refused so byte offsets match the file on disk.
func DefaultHeaders(referer string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", common.DefaultUserAgent)
	h.Set("Accept", common.DefaultAccept)
	h.Set("Accept-Encoding", "identity")
	if referer != "" {
		h.Set("Referer", referer)
	}
	return h
}

// Store is the part of the record store the engine needs.
type Store interface {
	LookupCompleted(url string) (string, int64, bool)
	Partial(url string) (models.PartialRecord, bool)
	UpsertPartial(ctx context.Context, rec models.PartialRecord) error
	RemovePartial(ctx context.Context, url string) error
	Complete(ctx context.Context, rec models.CompletedRecord) error
}

// Fetcher issues a GET with retries.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers http.Header, maxRetries int) (*http.Response, error)
}

type Options struct {
	Store           Store
	Fetcher         Fetcher
	Control         *control.Control
	Logger          logging.Logger
	Headers         http.Header
	MaxRetries      int
	RetryInterval   time.Duration
	ChunkSize       int
	PartialInterval time.Duration
	OnProgress      ProgressFunc
}

type Engine struct {
	store           Store
	fetcher         Fetcher
	ctl             *control.Control
	log             logging.Logger
	headers         http.Header
	maxRetries      int
	retryInterval   time.Duration
	chunkSize       int
	partialInterval time.Duration
	onProgress      ProgressFunc
}

func NewEngine(opts Options) *Engine {
	e := &Engine{
		store:           opts.Store,
		fetcher:         opts.Fetcher,
		ctl:             opts.Control,
		log:             opts.Logger,
		headers:         opts.Headers,
		maxRetries:      max(opts.MaxRetries, 0),
		retryInterval:   max(opts.RetryInterval, 0),
		chunkSize:       opts.ChunkSize,
		partialInterval: opts.PartialInterval,
		onProgress:      opts.OnProgress,
	}
	if e.ctl == nil {
		e.ctl = control.New()
	}
	if e.log == nil {
		e.log = logging.Discard()
	}
	if e.headers == nil {
		e.headers = http.Header{}
	}
	if e.chunkSize <= 0 {
		e.chunkSize = DefaultChunkSize
	}
	if e.partialInterval <= 0 {
		e.partialInterval = DefaultPartialInterval
	}
	if e.onProgress == nil {
		e.onProgress = func(Progress) {}
	}
	return e
}

// Outcome is the terminal result of Process.
type Outcome struct {
	State models.ItemState
	Path  string
	Size  int64
	Err   error
}

// job is the mutable state of one item while it is processed.
type job struct {
	plan         Plan
	log          logging.Logger
	downloaded   int64
	total        int64
	attemptStart int64
	started      time.Time
	lastPersist  time.Time
}

func (j *job) url() string { return j.plan.Item.URL }

// Process runs the item through the state machine and returns its outcome.
func (e *Engine) Process(ctx context.Context, plan Plan) Outcome {
	j := &job{plan: plan, log: e.log.With("url", plan.Item.URL)}

	if e.ctl.Cancelled() {
		return Outcome{State: models.StateCancelled, Err: common.ErrCancelled}
	}
	if err := e.ctl.Wait(ctx); err != nil {
		return Outcome{State: models.StateCancelled, Err: common.ErrCancelled}
	}

	if path, size, ok := e.store.LookupCompleted(j.url()); ok {
		j.log.Info(ctx, "Already downloaded, skipping", "path", path)
		if _, stale := e.store.Partial(j.url()); stale {
			if err := e.store.RemovePartial(ctx, j.url()); err != nil {
				j.log.Warn(ctx, "Failed to drop stale partial record", "error", err)
			}
		}
		return Outcome{State: models.StateSkipped, Path: path, Size: size}
	}

	if err := filex.EnsureDir(filepath.Dir(plan.TempPath)); err != nil {
		j.log.Error(ctx, "Cannot create destination folder", "error", err)
		return Outcome{State: models.StateFailed, Err: err}
	}

	if err := e.restore(ctx, j); err != nil {
		j.log.Error(ctx, "Cannot restore partial state", "error", err)
		return Outcome{State: models.StateFailed, Err: err}
	}

	if j.total > 0 && j.downloaded == j.total {
		j.log.Info(ctx, "Temp file already complete", "size", j.downloaded)
		return e.finalize(ctx, j)
	}

	j.log.Info(ctx, "Starting download", "path", plan.FinalPath)

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if e.ctl.Cancelled() {
			return e.cancel(ctx, j)
		}

		err := e.attempt(ctx, j)
		if err == nil {
			return e.finalize(ctx, j)
		}
		if errors.Is(err, common.ErrCancelled) || e.ctl.Cancelled() || ctx.Err() != nil {
			return e.cancel(ctx, j)
		}

		lastErr = err
		j.log.Warn(ctx, "Download attempt failed",
			"attempt", attempt+1, "of", e.maxRetries+1, "downloaded", j.downloaded, "error", err)

		if attempt < e.maxRetries {
			if err := e.ctl.Sleep(ctx, e.retryInterval); err != nil {
				return e.cancel(ctx, j)
			}
		}
	}

	j.log.Error(ctx, "Download failed", "attempts", e.maxRetries+1, "error", lastErr)
	if err := e.persist(context.WithoutCancel(ctx), j); err != nil {
		j.log.Warn(ctx, "Failed to save partial record", "error", err)
	}
	e.report(j, "failed")
	return Outcome{State: models.StateFailed, Err: lastErr}
}

// restore adopts a stored temp file, moving it if the derived temp path
// changed, and records the starting point.
func (e *Engine) restore(ctx context.Context, j *job) error {
	tmp := j.plan.TempPath
	if rec, ok := e.store.Partial(j.url()); ok {
		if rec.TempPath != tmp {
			moved, err := filex.MoveIfAbsent(rec.TempPath, tmp)
			if err != nil {
				j.log.Warn(ctx, "Could not move previous temp file", "from", rec.TempPath, "error", err)
			} else if moved {
				j.log.Info(ctx, "Moved previous temp file", "from", rec.TempPath, "to", tmp)
			}
		}
		j.total = rec.TotalOrZero()
	}

	size, ok, err := filex.Size(tmp)
	if err != nil {
		return err
	}
	if ok && size > 0 {
		j.log.Info(ctx, "Found existing partial file", "bytes", size, "total", j.total)
	}
	// The file on disk wins over the stored byte count.
	j.downloaded = size
	if j.total > 0 && j.downloaded > j.total {
		j.log.Warn(ctx, "Temp file larger than declared size, starting over", "bytes", size, "total", j.total)
		if err := filex.RemoveIfExists(tmp); err != nil {
			return err
		}
		j.downloaded, j.total = 0, 0
	}
	return e.persist(ctx, j)
}

// attempt performs one download attempt, including ranged continuation
// requests when the server closes the stream early.
func (e *Engine) attempt(ctx context.Context, j *job) error {
	size, _, err := filex.Size(j.plan.TempPath)
	if err != nil {
		return err
	}
	j.downloaded = size
	resumeFrom := size

	headers := e.headers.Clone()
	status := "downloading"
	if resumeFrom > 0 {
		headers.Set("Range", fmt.Sprintf("bytes=%d-", resumeFrom))
		status = "resuming"
		j.log.Info(ctx, "Attempting resume", "from", resumeFrom)
	}

	resp, err := e.fetcher.Fetch(ctx, j.url(), headers, e.maxRetries)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	ranged := resp.Header.Get("Content-Range") != ""
	if resumeFrom > 0 && resp.StatusCode == http.StatusOK && !ranged {
		j.log.Info(ctx, "Range header ignored, restarting from the beginning")
		resumeFrom = 0
		j.downloaded = 0
	}

	j.attemptStart = j.downloaded
	j.started = time.Now()
	e.updateTotal(j, resp)

	if err := e.persist(ctx, j); err != nil {
		return err
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if resumeFrom == 0 {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(j.plan.TempPath, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open temp file: %w", err)
	}
	defer f.Close()

	e.report(j, status)
	if err := e.stream(ctx, j, f, resp.Body); err != nil {
		return err
	}

	for j.total > 0 && j.downloaded < j.total {
		if err := e.ctl.Wait(ctx); err != nil {
			return common.ErrCancelled
		}

		before := j.downloaded
		h := e.headers.Clone()
		h.Set("Range", fmt.Sprintf("bytes=%d-", j.downloaded))
		j.log.Info(ctx, "Stream ended early, resuming", "at", j.downloaded, "total", j.total)
		e.report(j, "resuming")

		part, err := e.fetcher.Fetch(ctx, j.url(), h, e.maxRetries)
		if err != nil {
			if errors.Is(err, common.ErrCancelled) {
				return err
			}
			return fmt.Errorf("%w: %w", common.ErrResumeFailed, err)
		}

		if part.StatusCode == http.StatusOK && part.Header.Get("Content-Range") == "" {
			j.log.Info(ctx, "Range header ignored on continuation, restarting from the beginning")
			if err := f.Truncate(0); err != nil {
				_ = part.Body.Close()
				return fmt.Errorf("truncate temp file: %w", err)
			}
			j.downloaded = 0
			j.attemptStart = 0
		}

		err = e.stream(ctx, j, f, part.Body)
		_ = part.Body.Close()
		if err != nil {
			return err
		}
		if j.downloaded == before {
			return fmt.Errorf("%w: no data at byte %d", common.ErrResumeFailed, before)
		}
	}

	if j.total > 0 && j.downloaded != j.total {
		return fmt.Errorf("%w: expected %d, got %d", common.ErrSizeMismatch, j.total, j.downloaded)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	return f.Close()
}

// updateTotal derives the declared size from Content-Range, or from
// Content-Length plus the bytes already on disk.
func (e *Engine) updateTotal(j *job, resp *http.Response) {
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		if n, ok := netx.ParseContentRange(cr); ok {
			j.total = n
		}
		return
	}
	n, ok := netx.ParseContentLength(resp)
	if !ok || n == 0 {
		return
	}
	if j.downloaded > 0 {
		j.total = max(j.total, j.downloaded+n)
	} else {
		j.total = n
	}
}

// stream copies body to w in chunks, checking cancel and pause between
// chunks and persisting progress at most once per partial interval.
func (e *Engine) stream(ctx context.Context, j *job, w io.Writer, body io.Reader) error {
	buf := make([]byte, e.chunkSize)
	for {
		if e.ctl.Cancelled() {
			return common.ErrCancelled
		}
		if err := e.ctl.Wait(ctx); err != nil {
			return common.ErrCancelled
		}

		n, rerr := io.ReadFull(body, buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return fmt.Errorf("write temp file: %w", err)
			}
			j.downloaded += int64(n)

			if time.Since(j.lastPersist) >= e.partialInterval {
				if err := e.persist(ctx, j); err != nil {
					return err
				}
			}
			e.report(j, "downloading")
		}

		switch {
		case rerr == nil:
		case errors.Is(rerr, io.EOF), errors.Is(rerr, io.ErrUnexpectedEOF):
			return nil
		case e.ctl.Cancelled():
			return common.ErrCancelled
		default:
			return fmt.Errorf("read body: %w", rerr)
		}
	}
}

func (e *Engine) persist(ctx context.Context, j *job) error {
	rec := models.PartialRecord{
		URL:        j.url(),
		TempPath:   j.plan.TempPath,
		Downloaded: j.downloaded,
		UserID:     j.plan.Item.UserID,
		PostID:     j.plan.Item.PostID,
		UpdatedAt:  time.Now(),
	}
	if j.total > 0 {
		total := j.total
		rec.Total = &total
	}
	if err := e.store.UpsertPartial(ctx, rec); err != nil {
		return fmt.Errorf("save partial record: %w", err)
	}
	j.lastPersist = time.Now()
	return nil
}

func (e *Engine) report(j *job, status string) {
	speed, eta := speedAndETA(j.downloaded, j.attemptStart, j.total, time.Since(j.started))
	e.onProgress(Progress{
		ItemID:     j.url(),
		TempPath:   j.plan.TempPath,
		Downloaded: j.downloaded,
		Total:      j.total,
		Speed:      speed,
		ETA:        eta,
		Status:     status,
	})
}

// finalize moves the temp file over the final path and records completion.
func (e *Engine) finalize(ctx context.Context, j *job) Outcome {
	ctx = context.WithoutCancel(ctx)

	if err := filex.ReplaceFile(j.plan.TempPath, j.plan.FinalPath); err != nil {
		j.log.Error(ctx, "Cannot move finished file into place", "error", err)
		_ = e.persist(ctx, j)
		return Outcome{State: models.StateFailed, Err: err}
	}

	rec := models.CompletedRecord{
		URL:         j.url(),
		Path:        j.plan.FinalPath,
		Size:        j.downloaded,
		UserID:      j.plan.Item.UserID,
		PostID:      j.plan.Item.PostID,
		CompletedAt: time.Now(),
	}
	if err := e.store.Complete(ctx, rec); err != nil {
		j.log.Error(ctx, "Cannot record completed download", "error", err)
		return Outcome{State: models.StateFailed, Path: rec.Path, Size: rec.Size, Err: err}
	}

	j.log.Info(ctx, "Download success", "path", rec.Path, "size", rec.Size)
	e.report(j, "completed")
	return Outcome{State: models.StateCompleted, Path: rec.Path, Size: rec.Size}
}

// cancel removes the temp file and the partial record.
func (e *Engine) cancel(ctx context.Context, j *job) Outcome {
	ctx = context.WithoutCancel(ctx)

	if err := filex.RemoveIfExists(j.plan.TempPath); err != nil {
		j.log.Warn(ctx, "Cannot remove temp file", "error", err)
	}
	if err := e.store.RemovePartial(ctx, j.url()); err != nil {
		j.log.Warn(ctx, "Cannot remove partial record", "error", err)
	}
	j.log.Info(ctx, "Download cancelled")
	e.report(j, "cancelled")
	return Outcome{State: models.StateCancelled, Err: common.ErrCancelled}
}
