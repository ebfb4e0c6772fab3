package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/dmitrijs2005/mediafetch/internal/archive"
	"github.com/dmitrijs2005/mediafetch/internal/common"
	"github.com/dmitrijs2005/mediafetch/internal/config"
	"github.com/dmitrijs2005/mediafetch/internal/control"
	"github.com/dmitrijs2005/mediafetch/internal/fetch"
	"github.com/dmitrijs2005/mediafetch/internal/filex"
	"github.com/dmitrijs2005/mediafetch/internal/listing"
	"github.com/dmitrijs2005/mediafetch/internal/logging"
	"github.com/dmitrijs2005/mediafetch/internal/models"
	"github.com/dmitrijs2005/mediafetch/internal/netx"
	"github.com/dmitrijs2005/mediafetch/internal/orchestrator"
	"github.com/dmitrijs2005/mediafetch/internal/store"
	"github.com/dmitrijs2005/mediafetch/internal/throttle"
	"github.com/dmitrijs2005/mediafetch/internal/transfer"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	store    *store.Store
	throttle *throttle.Throttler
	archiver orchestrator.Archiver
	view     *progressView
	out      io.Writer
	reader   *bufio.Reader

	mu   sync.Mutex
	ctl  *control.Control
	orch *orchestrator.Orchestrator
	runs sync.WaitGroup
}

func NewApp(c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	view := newProgressView(os.Stdout)

	var logger logging.Logger
	if view.tty {
		logger = logging.NewFuncLogger(view.log, level)
	} else {
		logger = logging.NewTextLogger(os.Stderr, level)
	}

	ctx := context.Background()

	if err := filex.EnsureDir(c.StateDir); err != nil {
		return nil, fmt.Errorf("state dir: %w", err)
	}
	st, err := store.Open(ctx, filepath.Join(c.StateDir, store.DatabaseFile), logger)
	if err != nil {
		logger.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	a := &App{
		config:   c,
		logger:   logger,
		store:    st,
		throttle: throttle.New(workersFor(c), c.RateLimitInterval),
		view:     view,
		out:      os.Stdout,
		reader:   bufio.NewReader(os.Stdin),
	}

	if c.S3.Enabled() {
		arch, err := archive.New(ctx, c.S3, logger.With("component", "archive"))
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		a.archiver = arch
	}

	if err := a.rebuild(); err != nil {
		_ = st.Close()
		return nil, err
	}
	return a, nil
}

func workersFor(c *config.Config) int {
	if c.Mode == string(orchestrator.ModeQueue) {
		return 1
	}
	return c.Workers
}

// rebuild creates a fresh control, fetcher, engine and orchestrator. A
// cancelled control stays cancelled, so a new run after a cancel needs one.
func (a *App) rebuild() error {
	c := a.config
	ctl := control.New()

	fetcher := fetch.New(fetch.Options{
		Client:        netx.NewClient(c.StreamReadTimeout),
		Throttler:     a.throttle,
		Control:       ctl,
		RetryInterval: c.RetryInterval,
		ReadTimeout:   c.StreamReadTimeout,
		Logger:        a.logger.With("component", "fetch"),
		OnStatus:      a.view.status,
	})

	headers := transfer.DefaultHeaders(c.Referer)
	headers.Set("User-Agent", c.UserAgent)

	engine := transfer.NewEngine(transfer.Options{
		Store:           a.store,
		Fetcher:         fetcher,
		Control:         ctl,
		Logger:          a.logger.With("component", "transfer"),
		Headers:         headers,
		MaxRetries:      c.MaxRetries,
		RetryInterval:   c.RetryInterval,
		PartialInterval: c.PartialUpdateInterval,
		OnProgress:      a.view.progress,
	})

	orch, err := orchestrator.New(orchestrator.Options{
		Processor: engine,
		Store:     a.store,
		Control:   ctl,
		Throttler: a.throttle,
		Archiver:  a.archiver,
		Logger:    a.logger.With("component", "orchestrator"),
		Root:      c.DownloadDir,
		Layout:    transfer.Layout(c.FolderLayout),
		Naming:    transfer.NamingMode(c.FileNamingMode),
		Filter: orchestrator.MediaFilter{
			Images:   c.DownloadImages,
			Videos:   c.DownloadVideos,
			Archives: c.DownloadCompressed,
		},
		Mode:       orchestrator.Mode(c.Mode),
		Workers:    c.Workers,
		OnComplete: a.view.complete,
	})
	if err != nil {
		return err
	}

	a.mu.Lock()
	old := a.orch
	a.ctl, a.orch = ctl, orch
	a.mu.Unlock()

	if old != nil {
		old.Shutdown()
	}
	return nil
}

func (a *App) current() (*control.Control, *orchestrator.Orchestrator) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ctl, a.orch
}

// Run downloads the listing named in the config, or starts the
// interactive prompt when there is none.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := a.initSignalHandler(cancel)
	defer stop()

	if a.config.ItemsFile != "" {
		go a.watchCommands(ctx)
		sum, err := a.runFile(ctx, a.config.ItemsFile)
		if err != nil {
			return err
		}
		printSummary(a.out, sum)
		return nil
	}

	a.Root(ctx)
	return nil
}

// RunFile loads a listing and runs it to the end.
func (a *App) runFile(ctx context.Context, path string) (models.RunSummary, error) {
	items, err := listing.Load(path, listing.Options{Site: a.config.Site})
	if err != nil {
		return models.RunSummary{}, fmt.Errorf("load listing %s: %w", path, err)
	}

	ctl, _ := a.current()
	if ctl.Cancelled() {
		if err := a.rebuild(); err != nil {
			return models.RunSummary{}, err
		}
	}
	_, orch := a.current()

	a.logger.Info(ctx, "Starting download process", "listing", path, "items", len(items))
	a.view.start(len(orchestrator.MediaFilter{
		Images:   a.config.DownloadImages,
		Videos:   a.config.DownloadVideos,
		Archives: a.config.DownloadCompressed,
	}.Apply(items)))
	defer a.view.finish()

	return orch.SubmitRun(ctx, items)
}

func (a *App) pause() {
	_, orch := a.current()
	orch.RequestPause()
}

func (a *App) resume() {
	_, orch := a.current()
	orch.RequestResume()
}

func (a *App) cancel() {
	_, orch := a.current()
	orch.RequestCancel()
}

func (a *App) session() (models.RunSummary, bool) {
	_, orch := a.current()
	return orch.Session()
}

func (a *App) setMode(mode string, workers int) error {
	_, orch := a.current()
	if err := orch.SetMode(orchestrator.Mode(mode), workers); err != nil {
		return err
	}
	a.config.Mode, a.config.Workers = mode, workers
	return nil
}

func (a *App) lastRun(ctx context.Context) (*models.RunSummary, error) {
	return a.store.LastRunSummary(ctx)
}

func (a *App) clearHistory(ctx context.Context) error {
	return a.store.Clear(ctx)
}

func (a *App) close() {
	a.cancel()
	a.runs.Wait()
	_, orch := a.current()
	orch.Shutdown()
	if err := a.store.Close(); err != nil {
		a.logger.Warn(context.Background(), "closing database", "error", err)
	}
}
