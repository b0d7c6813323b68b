package main

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// hardwareUpdater is polled by the Runner.
type hardwareUpdater interface {
	UpdateHardwareState() error
}

// Runner invokes UpdateHardwareState on a fixed interval.  Calls never
// overlap: the next tick is only handled after the previous poll returned.
type Runner struct {
	board    hardwareUpdater
	interval time.Duration
	failures atomic.Uint64
}

// NewRunner returns a runner polling board every interval.
func NewRunner(board hardwareUpdater, interval time.Duration) *Runner {
	return &Runner{board: board, interval: interval}
}

// Run polls until ctx is cancelled.  A failed poll is logged and counted and
// the loop carries on with the next tick.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.board.UpdateHardwareState(); err != nil {
				n := r.failures.Add(1)
				// Avoid flooding the log while a sensor stays unreachable.
				if n == 1 || n%100 == 0 {
					slog.Warn("poll failed", "err", err, "failures", n)
				}
			}
		}
	}
}

// Failures returns the number of polls that returned an error.
func (r *Runner) Failures() uint64 {
	return r.failures.Load()
}
