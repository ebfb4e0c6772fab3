package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/mediafetch/internal/common"
)

func (a *App) getStatus() string {
	ctl, _ := a.current()
	sum, running := a.session()
	switch {
	case running && ctl.Paused():
		return fmt.Sprintf(" (paused %d/%d)", sum.Completed, sum.Total)
	case running:
		return fmt.Sprintf(" (running %d/%d)", sum.Completed, sum.Total)
	default:
		return ""
	}
}

// Root runs the interactive prompt until exit, EOF or ctx is done.
func (a *App) Root(ctx context.Context) {
	a.logger.Info(ctx, "Welcome to mediafetch (type 'help' for commands)")

	done := make(chan struct{})
	go func() {
		defer close(done)
		runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

// watchCommands accepts run-control commands on a terminal while a
// listing given on the command line downloads.
func (a *App) watchCommands(ctx context.Context) {
	if !isTerminal(int(os.Stdin.Fd())) {
		return
	}
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

func (a *App) startRun(ctx context.Context, path string) error {
	if _, running := a.session(); running {
		return common.ErrRunInProgress
	}

	a.runs.Add(1)
	go func() {
		defer a.runs.Done()
		sum, err := a.runFile(ctx, path)
		if err != nil {
			printlnFn("Run failed:", err)
			return
		}
		printSummary(a.out, sum)
	}()
	return nil
}
