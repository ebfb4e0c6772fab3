package transfer

import (
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/dmitrijs2005/mediafetch/internal/common"
	"github.com/dmitrijs2005/mediafetch/internal/models"
)

// Plan is the resolved destination of one item.
type Plan struct {
	Item      models.MediaItem
	Index     int
	FinalPath string
	TempPath  string
}

// Planner assigns attachment indexes and file paths for one run. Paths are
// unique within the run: when a derived name is already taken by another
// URL, a longer URL hash is appended until it is free.
type Planner struct {
	root   string
	layout Layout
	mode   NamingMode

	mu      sync.Mutex
	counter map[string]int
	claimed map[string]string
	planned map[string]Plan
}

func NewPlanner(root string, layout Layout, mode NamingMode) *Planner {
	return &Planner{
		root:    root,
		layout:  layout,
		mode:    mode,
		counter: make(map[string]int),
		claimed: make(map[string]string),
		planned: make(map[string]Plan),
	}
}

// Plan resolves it. The second result is false when the URL was already
// planned in this run; the earlier plan is returned.
func (p *Planner) Plan(it models.MediaItem) (Plan, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if prev, ok := p.planned[it.URL]; ok {
		return prev, false
	}

	index := it.AttachmentIndex
	if index <= 0 {
		index = 1
		if it.PostID != "" {
			p.counter[it.PostID]++
			index = p.counter[it.PostID]
		}
	}

	dir := filepath.Clean(Folder(p.root, it, p.layout))
	name := FileName(it, index, p.mode)
	final := filepath.Join(dir, name)

	if !p.free(final, it.URL) {
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		for n, try := 4, 0; ; try++ {
			suffix := ShortHash(it.URL, n)
			if try > 3 {
				suffix += "_" + strconv.Itoa(try)
			}
			final = filepath.Join(dir, stem+"_"+suffix+ext)
			if p.free(final, it.URL) {
				break
			}
			if n < 32 {
				n *= 2
			}
		}
	}

	plan := Plan{Item: it, Index: index, FinalPath: final, TempPath: final + common.TempSuffix}
	p.claimed[key(plan.FinalPath)] = it.URL
	p.claimed[key(plan.TempPath)] = it.URL
	p.planned[it.URL] = plan
	return plan, true
}

func (p *Planner) free(final, url string) bool {
	for _, path := range []string{final, final + common.TempSuffix} {
		if owner, ok := p.claimed[key(path)]; ok && owner != url {
			return false
		}
	}
	return true
}

// key folds case so names differing only in case count as one on
// case-insensitive filesystems.
func key(path string) string {
	return strings.ToLower(path)
}
