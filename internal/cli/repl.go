package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/mediafetch/internal/common"
	"github.com/dmitrijs2005/mediafetch/internal/models"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	startRun(ctx context.Context, path string) error
	pause()
	resume()
	cancel()
	session() (models.RunSummary, bool)
	setMode(mode string, workers int) error
	lastRun(ctx context.Context) (*models.RunSummary, error)
	clearHistory(ctx context.Context) error
}

// runREPL reads commands from scanner and dispatches them to a until EOF
// or "exit".
//
//	help                  show available commands
//	run <listing.json>    start downloading a listing in the background
//	pause | resume        pause or resume the current run
//	cancel                cancel the current run
//	status                show counters of the current or last run
//	last                  show the last persisted run summary
//	mode <multi|queue> [workers]
//	                      switch dispatch mode (waits for a running batch)
//	clear                 forget completed downloads and run history (asks to confirm)
//	exit | quit           cancel and leave
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("mf%s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			printlnFn("Available commands: run <file>, pause, resume, cancel, status, last, mode <multi|queue> [workers], clear, exit")

		case "run":
			if len(args) != 1 {
				printlnFn("Usage: run <listing.json>")
				continue
			}
			if err := a.startRun(ctx, args[0]); err != nil {
				printlnFn("Cannot start run:", err)
			}

		case "p", "pause":
			a.pause()

		case "r", "resume":
			a.resume()

		case "c", "cancel":
			a.cancel()

		case "s", "status":
			sum, running := a.session()
			printlnFn(formatSession(sum, running))

		case "last":
			sum, err := a.lastRun(ctx)
			if errors.Is(err, common.ErrorNotFound) {
				printlnFn("No runs recorded yet")
				continue
			}
			if err != nil {
				printlnFn("Error:", err)
				continue
			}
			printlnFn(formatSession(*sum, false))

		case "mode":
			if len(args) == 0 {
				printlnFn("Usage: mode <multi|queue> [workers]")
				continue
			}
			workers := 1
			if len(args) > 1 {
				n, err := strconv.Atoi(args[1])
				if err != nil || n < 1 {
					printlnFn("Workers must be a positive number")
					continue
				}
				workers = n
			}
			if err := a.setMode(args[0], workers); err != nil {
				printlnFn("Error:", err)
				continue
			}
			printlnFn(fmt.Sprintf("Mode set to %s with %d workers", args[0], workers))

		case "clear":
			printlnFn("Type 'yes' to forget all completed downloads")
			if !scanner.Scan() {
				return
			}
			if strings.TrimSpace(scanner.Text()) != "yes" {
				printlnFn("Cancelled")
				continue
			}
			if err := a.clearHistory(ctx); err != nil {
				printlnFn("Error:", err)
				continue
			}
			printlnFn("Download history cleared")

		case "exit", "quit":
			a.cancel()
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

func formatSession(sum models.RunSummary, running bool) string {
	if sum.RunID == "" {
		return "No run yet"
	}
	state := "finished"
	if running {
		state = "running"
	}
	return fmt.Sprintf("run %s (%s): %d/%d completed, %d skipped, %d failed, %d cancelled",
		sum.RunID, state, sum.Completed, sum.Total, len(sum.Skipped), len(sum.Failed), len(sum.Cancelled))
}
