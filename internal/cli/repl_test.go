package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dmitrijs2005/mediafetch/internal/common"
	"github.com/dmitrijs2005/mediafetch/internal/models"
	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	calls   []string
	running bool
	last    *models.RunSummary
	modeErr error
}

func (f *fakeExec) startRun(_ context.Context, path string) error {
	f.calls = append(f.calls, "run "+path)
	if f.running {
		return common.ErrRunInProgress
	}
	f.running = true
	return nil
}
func (f *fakeExec) pause()  { f.calls = append(f.calls, "pause") }
func (f *fakeExec) resume() { f.calls = append(f.calls, "resume") }
func (f *fakeExec) cancel() { f.calls = append(f.calls, "cancel") }
func (f *fakeExec) session() (models.RunSummary, bool) {
	f.calls = append(f.calls, "status")
	return models.RunSummary{RunID: "r1", Total: 3, Completed: 1}, f.running
}
func (f *fakeExec) setMode(mode string, workers int) error {
	f.calls = append(f.calls, fmt.Sprintf("mode %s %d", mode, workers))
	return f.modeErr
}
func (f *fakeExec) lastRun(context.Context) (*models.RunSummary, error) {
	f.calls = append(f.calls, "last")
	if f.last == nil {
		return nil, fmt.Errorf("wrapped: %w", common.ErrorNotFound)
	}
	return f.last, nil
}
func (f *fakeExec) clearHistory(context.Context) error {
	f.calls = append(f.calls, "clear")
	return nil
}

func captureOutput(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	origPrint := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSpace(fmt.Sprintln(a...)))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = origPrint })
	return &lines
}

func run(exec execIface, input ...string) {
	sc := bufio.NewScanner(strings.NewReader(strings.Join(input, "\n")))
	runREPL(context.Background(), exec, func() string { return "" }, sc)
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	out := captureOutput(t)
	exec := &fakeExec{}

	run(exec,
		"help",
		"",
		"run posts.json",
		"run again.json",
		"p",
		"resume",
		"status",
		"mode queue",
		"mode multi 4",
		"mode multi zero",
		"last",
		"clear",
		"no",
		"clear",
		"yes",
		"foobar",
		"run",
		"exit",
		"pause",
	)

	assert.Equal(t, []string{
		"run posts.json", "run again.json", "pause", "resume", "status",
		"mode queue 1", "mode multi 4", "last", "clear", "cancel",
	}, exec.calls)

	joined := strings.Join(*out, "\n")
	assert.Contains(t, joined, "Available commands:")
	assert.Contains(t, joined, "Cannot start run: "+common.ErrRunInProgress.Error())
	assert.Contains(t, joined, "run r1 (running): 1/3 completed")
	assert.Contains(t, joined, "Workers must be a positive number")
	assert.Contains(t, joined, "No runs recorded yet")
	assert.Contains(t, joined, "Download history cleared")
	assert.Contains(t, joined, "Unknown command: foobar")
	assert.Contains(t, joined, "Usage: run <listing.json>")
	assert.Equal(t, "Bye!", (*out)[len(*out)-1])
}

func TestRunREPL_ModeErrorAndLastRun(t *testing.T) {
	out := captureOutput(t)
	exec := &fakeExec{
		modeErr: errors.New("bad mode"),
		last:    &models.RunSummary{RunID: "prev", Total: 2, Completed: 2},
	}

	run(exec, "mode turbo", "last")

	joined := strings.Join(*out, "\n")
	assert.Contains(t, joined, "Error: bad mode")
	assert.Contains(t, joined, "run prev (finished): 2/2 completed")
}

func TestRunREPL_EOFDuringClearConfirmation(t *testing.T) {
	captureOutput(t)
	exec := &fakeExec{}

	run(exec, "clear")
	assert.Empty(t, exec.calls)
}

func TestFormatSession_NoRun(t *testing.T) {
	assert.Equal(t, "No run yet", formatSession(models.RunSummary{}, false))
}
