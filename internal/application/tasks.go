package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"easyquery/internal/domain"
)

// Tasks runs each user action in its own goroutine with its own cancellable
// context. Actions are not ordered against each other; whichever finishes
// last is rendered last.
type Tasks struct {
	parent context.Context
	render func(domain.View)
	logger *slog.Logger

	mu      sync.Mutex
	wg      sync.WaitGroup
	nextID  int
	cancels map[int]context.CancelFunc
}

func NewTasks(ctx context.Context, render func(domain.View), logger *slog.Logger) *Tasks {
	return &Tasks{
		parent:  ctx,
		render:  render,
		logger:  logger,
		cancels: make(map[int]context.CancelFunc),
	}
}

func (t *Tasks) Go(name string, fn func(ctx context.Context) domain.View) {
	ctx, cancel := context.WithCancel(t.parent)

	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.cancels[id] = cancel
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer t.forget(id)

		start := time.Now()
		view := fn(ctx)

		if ctx.Err() != nil {
			t.logger.Debug("task canceled", "task", name, "id", id)
		} else {
			t.logger.Debug("task finished", "task", name, "id", id, "duration", time.Since(start))
		}

		if !view.Empty() {
			t.render(view)
		}
	}()
}

func (t *Tasks) forget(id int) {
	t.mu.Lock()
	cancel := t.cancels[id]
	delete(t.cancels, id)
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// CancelAll cancels every in-flight task and reports how many there were.
func (t *Tasks) CancelAll() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, cancel := range t.cancels {
		cancel()
	}
	return len(t.cancels)
}

func (t *Tasks) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.cancels)
}

func (t *Tasks) Wait() {
	t.wg.Wait()
}
