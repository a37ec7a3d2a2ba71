package browser

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Tab retirement thresholds. A tab crossing any of them is closed on release
// and recreated on the next acquire.
const (
	tabMaxErrScore = 3.0
	tabMaxUses     = 50
	tabMaxAge      = 50 * time.Minute
)

// tabHealth tracks how a tab has fared since it was created.
type tabHealth struct {
	errScore float64
	uses     int
	created  time.Time
}

// record applies one render outcome: success decreases the error score
// (min 0), failure increases it.
func (h *tabHealth) record(success bool) {
	h.uses++
	if success {
		h.errScore = math.Max(0, h.errScore-0.5)
	} else {
		h.errScore += 1.0
	}
}

func (h *tabHealth) shouldRetire(now time.Time) bool {
	return h.errScore >= tabMaxErrScore ||
		h.uses >= tabMaxUses ||
		now.Sub(h.created) >= tabMaxAge
}

// tabPool is a bounded pool of lazily created tabs. A nil slot means the
// tab has not been created yet (or was retired) and is created on demand.
type tabPool[T any] struct {
	slots    chan *T
	active   atomic.Int32
	closeTab func(*T)

	mu     sync.Mutex
	health map[*T]*tabHealth
	now    func() time.Time
}

func newTabPool[T any](size int, closeTab func(*T)) *tabPool[T] {
	if size < 1 {
		size = 1
	}
	p := &tabPool[T]{
		slots:    make(chan *T, size),
		closeTab: closeTab,
		health:   make(map[*T]*tabHealth),
		now:      time.Now,
	}
	for i := 0; i < size; i++ {
		p.slots <- nil
	}
	return p
}

// acquire borrows a tab, creating one if the slot is empty. It blocks until
// a slot is free or ctx is done. A failed create gives the slot back.
func (p *tabPool[T]) acquire(ctx context.Context, create func() (*T, error)) (*T, error) {
	var tab *T
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case tab = <-p.slots:
	}

	if tab == nil {
		created, err := create()
		if err != nil {
			p.slots <- nil
			return nil, err
		}
		tab = created
		p.mu.Lock()
		p.health[tab] = &tabHealth{created: p.now()}
		p.mu.Unlock()
	}
	p.active.Add(1)
	return tab, nil
}

// release returns a tab after a render. Unhealthy tabs are closed and their
// slot freed.
func (p *tabPool[T]) release(tab *T, success bool) {
	p.mu.Lock()
	h, ok := p.health[tab]
	retire := true
	if ok {
		h.record(success)
		retire = h.shouldRetire(p.now())
	}
	p.mu.Unlock()

	if retire {
		slog.Debug("retiring tab", "uses", usesOf(h), "success", success)
		p.discard(tab)
		return
	}
	p.active.Add(-1)
	p.slots <- tab
}

// discard closes a borrowed tab and frees its slot.
func (p *tabPool[T]) discard(tab *T) {
	p.mu.Lock()
	delete(p.health, tab)
	p.mu.Unlock()

	if tab != nil {
		p.closeTab(tab)
	}
	p.active.Add(-1)
	p.slots <- nil
}

func usesOf(h *tabHealth) int {
	if h == nil {
		return 0
	}
	return h.uses
}

// size is the pool capacity.
func (p *tabPool[T]) size() int {
	return cap(p.slots)
}

// inUse is the number of tabs currently borrowed.
func (p *tabPool[T]) inUse() int {
	return int(p.active.Load())
}

// drain takes every slot back and closes the tabs in it. Slots still
// borrowed when timeout elapses are abandoned; the browser shutdown that
// follows tears them down anyway.
func (p *tabPool[T]) drain(timeout time.Duration) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for i := 0; i < p.size(); i++ {
		select {
		case tab := <-p.slots:
			if tab != nil {
				p.closeTab(tab)
			}
		case <-deadline.C:
			slog.Warn("tab pool drain timed out", "abandoned", p.size()-i)
			return
		}
	}
}
