// Package orchestrator runs batches of media items through the transfer
// engine on a bounded worker pool and aggregates their outcomes.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmitrijs2005/mediafetch/internal/common"
	"github.com/dmitrijs2005/mediafetch/internal/control"
	"github.com/dmitrijs2005/mediafetch/internal/logging"
	"github.com/dmitrijs2005/mediafetch/internal/models"
	"github.com/dmitrijs2005/mediafetch/internal/throttle"
	"github.com/dmitrijs2005/mediafetch/internal/transfer"
	"github.com/google/uuid"
)

// Mode is the dispatch mode.
type Mode string

const (
	// ModeMulti runs up to Workers items at once.
	ModeMulti Mode = "multi"
	// ModeQueue runs items one at a time.
	ModeQueue Mode = "queue"
)

func (m Mode) Valid() bool {
	return m == ModeMulti || m == ModeQueue
}

// Processor runs one planned item to a terminal state.
type Processor interface {
	Process(ctx context.Context, plan transfer.Plan) transfer.Outcome
}

// SummaryStore persists run summaries.
type SummaryStore interface {
	SaveRunSummary(ctx context.Context, sum models.RunSummary) error
}

// Archiver copies a finished file somewhere else. rel is the path
// relative to the download root.
type Archiver interface {
	Archive(ctx context.Context, path, rel string) error
}

type Options struct {
	Processor Processor
	Store     SummaryStore
	Control   *control.Control
	Throttler *throttle.Throttler
	Archiver  Archiver
	Logger    logging.Logger

	Root   string
	Layout transfer.Layout
	Naming transfer.NamingMode
	Filter MediaFilter

	Mode    Mode
	Workers int

	// OnComplete is called with (completed, total) after every successful item.
	OnComplete func(completed, total int)
	// OnFinished is called once a run has reached its end.
	OnFinished func(models.RunSummary)
}

type Orchestrator struct {
	proc     Processor
	store    SummaryStore
	ctl      *control.Control
	thr      *throttle.Throttler
	archiver Archiver
	log      logging.Logger

	root   string
	layout transfer.Layout
	naming transfer.NamingMode
	filter MediaFilter

	onComplete func(completed, total int)
	onFinished func(models.RunSummary)

	// runMu is held for the whole of a run and by pool rebuilds.
	runMu sync.Mutex

	mu       sync.Mutex
	pool     *pool
	mode     Mode
	workers  int
	closed   bool
	running  bool
	session  models.RunSummary
	stopOnce sync.Once
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Processor == nil {
		return nil, fmt.Errorf("%w: processor is required", common.ErrInvalidConfig)
	}
	if opts.Mode == "" {
		opts.Mode = ModeMulti
	}
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("%w: unknown mode %q", common.ErrInvalidConfig, opts.Mode)
	}
	if opts.Layout == "" {
		opts.Layout = transfer.LayoutDefault
	}

	o := &Orchestrator{
		proc:       opts.Processor,
		store:      opts.Store,
		ctl:        opts.Control,
		thr:        opts.Throttler,
		archiver:   opts.Archiver,
		log:        opts.Logger,
		root:       opts.Root,
		layout:     opts.Layout,
		naming:     opts.Naming,
		filter:     opts.Filter,
		onComplete: opts.OnComplete,
		onFinished: opts.OnFinished,
	}
	if o.ctl == nil {
		o.ctl = control.New()
	}
	if o.log == nil {
		o.log = logging.Discard()
	}
	if o.onComplete == nil {
		o.onComplete = func(int, int) {}
	}
	if o.onFinished == nil {
		o.onFinished = func(models.RunSummary) {}
	}

	o.mode, o.workers = opts.Mode, effectiveWorkers(opts.Mode, opts.Workers)
	o.pool = newPool(o.workers, o.proc)
	return o, nil
}

func effectiveWorkers(mode Mode, workers int) int {
	if mode == ModeQueue || workers < 1 {
		return 1
	}
	return workers
}

// Mode returns the current dispatch mode and worker count.
func (o *Orchestrator) Mode() (Mode, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mode, o.workers
}

// SetMode tears down the pool and starts a new one with the given mode.
// It waits for a running batch to finish first.
func (o *Orchestrator) SetMode(mode Mode, workers int) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", common.ErrInvalidConfig, mode)
	}

	o.runMu.Lock()
	defer o.runMu.Unlock()

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return common.ErrShutdown
	}
	old := o.pool
	o.mode, o.workers = mode, effectiveWorkers(mode, workers)
	o.pool = newPool(o.workers, o.proc)
	n := o.workers
	o.mu.Unlock()

	old.stop()
	if o.thr != nil {
		o.thr.Reset(n)
	}
	o.log.Info(context.Background(), "Updated download mode", "mode", string(mode), "workers", n)
	return nil
}

// SubmitRun plans items, runs them on the pool and blocks until every
// item has reached a terminal state. Items excluded by the media filter
// are not counted.
func (o *Orchestrator) SubmitRun(ctx context.Context, items []models.MediaItem) (models.RunSummary, error) {
	if !o.runMu.TryLock() {
		return models.RunSummary{}, common.ErrRunInProgress
	}
	defer o.runMu.Unlock()

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return models.RunSummary{}, common.ErrShutdown
	}
	p := o.pool
	o.mu.Unlock()

	if o.ctl.Cancelled() {
		return models.RunSummary{}, common.ErrCancelled
	}

	items = o.filter.Apply(items)
	run := &run{
		o:       o,
		summary: models.RunSummary{RunID: uuid.NewString(), StartedAt: time.Now(), Total: len(items)},
	}
	o.setSession(run.summary, true)
	o.log.Info(ctx, "Starting run", "run_id", run.summary.RunID, "items", len(items))

	planner := transfer.NewPlanner(o.root, o.layout, o.naming)
	var wg sync.WaitGroup

	for i, it := range items {
		plan, fresh := planner.Plan(it)
		if !fresh {
			o.log.Info(ctx, "Duplicate item in run, skipping", "url", it.URL)
			run.record(ctx, plan, transfer.Outcome{State: models.StateSkipped, Path: plan.FinalPath})
			continue
		}

		wg.Add(1)
		t := task{ctx: ctx, plan: plan, done: func(out transfer.Outcome) {
			defer wg.Done()
			run.record(ctx, plan, out)
		}}
		select {
		case p.tasks <- t:
			continue
		case <-ctx.Done():
			wg.Done()
		}

		// The caller gave up: everything not yet dispatched ends as cancelled.
		run.record(ctx, plan, transfer.Outcome{State: models.StateCancelled, Err: ctx.Err()})
		for _, rest := range items[i+1:] {
			rp, fresh := planner.Plan(rest)
			state := models.StateCancelled
			if !fresh {
				state = models.StateSkipped
			}
			run.record(ctx, rp, transfer.Outcome{State: state, Err: ctx.Err()})
		}
		break
	}
	wg.Wait()

	sum := run.finish()
	o.setSession(sum, false)

	if o.store != nil {
		if err := o.store.SaveRunSummary(context.WithoutCancel(ctx), sum); err != nil {
			o.log.Warn(ctx, "Failed to save run summary", "error", err)
		}
	}
	o.log.Info(ctx, "Run finished", "run_id", sum.RunID, "completed", sum.Completed,
		"skipped", len(sum.Skipped), "failed", len(sum.Failed), "cancelled", len(sum.Cancelled))
	o.onFinished(sum)
	return sum, nil
}

// Session returns a copy of the current or last run's counters and
// whether a run is in progress.
func (o *Orchestrator) Session() (models.RunSummary, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.Clone(), o.running
}

func (o *Orchestrator) setSession(sum models.RunSummary, running bool) {
	o.mu.Lock()
	o.session, o.running = sum.Clone(), running
	o.mu.Unlock()
}

func (o *Orchestrator) RequestPause() {
	if o.ctl.Pause() {
		o.log.Info(context.Background(), "Download paused")
	}
}

func (o *Orchestrator) RequestResume() {
	if o.ctl.Resume() {
		o.log.Info(context.Background(), "Download resumed")
	}
}

// RequestCancel cancels the engine. Running items clean up and stop;
// queued items end as cancelled without touching the network.
func (o *Orchestrator) RequestCancel() {
	if o.ctl.Cancelled() {
		return
	}
	o.ctl.Resume()
	o.ctl.Cancel()
	o.log.Info(context.Background(), "Download cancellation requested")
}

// Shutdown waits for the running batch and the pool to drain. Later calls
// return immediately; later runs fail with common.ErrShutdown.
func (o *Orchestrator) Shutdown() {
	o.stopOnce.Do(func() {
		o.mu.Lock()
		o.closed = true
		o.mu.Unlock()

		o.ctl.Resume()

		o.runMu.Lock()
		defer o.runMu.Unlock()
		o.pool.stop()
		o.log.Info(context.Background(), "All downloads completed or cancelled")
	})
}

// run accumulates the outcomes of one batch.
type run struct {
	o  *Orchestrator
	mu sync.Mutex

	summary models.RunSummary
}

func (r *run) record(ctx context.Context, plan transfer.Plan, out transfer.Outcome) {
	r.mu.Lock()
	switch out.State {
	case models.StateCompleted:
		r.summary.Completed++
	case models.StateSkipped:
		r.summary.Skipped = append(r.summary.Skipped, plan.Item.URL)
	case models.StateCancelled:
		r.summary.Cancelled = append(r.summary.Cancelled, plan.Item.URL)
	default:
		r.summary.Failed = append(r.summary.Failed, plan.Item.URL)
	}
	completed, total := r.summary.Completed, r.summary.Total
	snapshot := r.summary.Clone()
	r.mu.Unlock()

	r.o.setSession(snapshot, true)

	if out.State != models.StateCompleted {
		return
	}
	r.o.onComplete(completed, total)
	r.o.archive(ctx, out.Path)
}

func (r *run) finish() models.RunSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.FinishedAt = time.Now()
	return r.summary.Clone()
}

func (o *Orchestrator) archive(ctx context.Context, path string) {
	if o.archiver == nil {
		return
	}
	rel, err := filepath.Rel(o.root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	if err := o.archiver.Archive(context.WithoutCancel(ctx), path, rel); err != nil {
		o.log.Warn(ctx, "Archive upload failed", "path", path, "error", err)
	}
}
