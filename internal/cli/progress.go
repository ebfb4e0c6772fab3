package cli

import (
	"fmt"
	"io"
	"os"
	"path"
	"sync"
	"time"

	"github.com/dmitrijs2005/mediafetch/internal/transfer"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// Test seams for terminal detection.
var (
	isTerminal   = term.IsTerminal
	terminalSize = term.GetSize
)

const describeEvery = 200 * time.Millisecond

// progressView renders run progress: a bar on a terminal, plain lines
// otherwise. Callbacks arrive from worker goroutines.
type progressView struct {
	w    io.Writer
	logW io.Writer
	fd   int
	tty  bool

	mu       sync.Mutex
	bar      *progressbar.ProgressBar
	lastDesc time.Time
}

func newProgressView(f *os.File) *progressView {
	fd := int(f.Fd())
	return &progressView{w: f, logW: os.Stderr, fd: fd, tty: isTerminal(fd)}
}

// log prints a log line, clearing the bar first so the two do not mix.
// The bar redraws on its next update.
func (v *progressView) log(line string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.bar != nil {
		_ = v.bar.Clear()
	}
	fmt.Fprintln(v.logW, line)
}

func (v *progressView) start(total int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.tty {
		fmt.Fprintf(v.w, "Downloading %d items\n", total)
		return
	}

	width := 40
	if cols, _, err := terminalSize(v.fd); err == nil && cols > 80 {
		width = cols - 60
	}
	v.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(v.w),
		progressbar.OptionSetDescription("Downloading"),
		progressbar.OptionSetWidth(width),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func (v *progressView) progress(p transfer.Progress) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.bar == nil || time.Since(v.lastDesc) < describeEvery {
		return
	}
	v.lastDesc = time.Now()
	v.bar.Describe(fmt.Sprintf("%s %5.1f%% %s/s", shortName(p.ItemID), p.Percent(), humanBytes(p.Speed)))
}

func (v *progressView) status(itemURL, s string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.bar != nil {
		v.lastDesc = time.Now()
		v.bar.Describe(fmt.Sprintf("%s: %s", shortName(itemURL), s))
		return
	}
	fmt.Fprintf(v.w, "%s: %s\n", shortName(itemURL), s)
}

func (v *progressView) complete(done, total int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.bar != nil {
		_ = v.bar.Set(done)
		return
	}
	fmt.Fprintf(v.w, "Completed %d/%d\n", done, total)
}

func (v *progressView) finish() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.bar == nil {
		return
	}
	_ = v.bar.Finish()
	fmt.Fprintln(v.w)
	v.bar = nil
}

func shortName(rawURL string) string {
	name := path.Base(rawURL)
	if len(name) > 32 {
		name = name[:29] + "..."
	}
	return name
}

func humanBytes(n float64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%.0f B", n)
	}
	div, exp := float64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", n/div, "KMGTPE"[exp])
}
