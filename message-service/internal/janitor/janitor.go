// Package janitor runs periodic housekeeping in the background.
package janitor

import (
	"context"
	"time"

	pkglog "github.com/weiawesome/wes-io-live/pkg/log"
)

const defaultInterval = 30 * time.Second

// Task is one unit of housekeeping. It returns how many entries it removed.
type Task struct {
	Name string
	Run  func(ctx context.Context) int
}

// Janitor runs its tasks on every tick until stopped.
type Janitor struct {
	tasks    []Task
	interval time.Duration
	quit     chan struct{}
	doneCh   chan struct{}
}

// New creates a Janitor. A non-positive interval falls back to 30s.
func New(interval time.Duration, tasks ...Task) *Janitor {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Janitor{
		tasks:    tasks,
		interval: interval,
		quit:     make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the janitor in a background goroutine.
func (j *Janitor) Start(ctx context.Context) {
	go j.run(ctx)
}

// Stop signals the janitor to stop and returns immediately.
// Call Done() to wait for it to exit.
func (j *Janitor) Stop() {
	close(j.quit)
}

// Done returns a channel that is closed when the janitor has fully stopped.
func (j *Janitor) Done() <-chan struct{} {
	return j.doneCh
}

func (j *Janitor) run(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.quit:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	l := pkglog.L()
	for _, task := range j.tasks {
		if removed := task.Run(ctx); removed > 0 {
			l.Debug().Str("task", task.Name).Int("removed", removed).Msg("janitor: sweep complete")
		}
	}
}
