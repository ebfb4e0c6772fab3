package orchestrator

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/mediafetch/internal/transfer"
)

type task struct {
	ctx  context.Context
	plan transfer.Plan
	done func(transfer.Outcome)
}

// pool is a fixed set of workers reading tasks from one channel.
type pool struct {
	size  int
	tasks chan task
	wg    sync.WaitGroup
}

func newPool(size int, proc Processor) *pool {
	p := &pool{size: size, tasks: make(chan task)}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.run(proc)
	}
	return p
}

func (p *pool) run(proc Processor) {
	defer p.wg.Done()
	for t := range p.tasks {
		t.done(proc.Process(t.ctx, t.plan))
	}
}

// stop closes the queue and waits for in-flight tasks.
func (p *pool) stop() {
	close(p.tasks)
	p.wg.Wait()
}
