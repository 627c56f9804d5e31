// Package sweeper runs periodic background passes over aged records. Each
// sweep loop is an independently cancellable task owned by the process
// supervisor: it is injected with a clock and the function to run, fires the
// function once per interval, and survives both errors and panics — a bad
// iteration only delays work by one interval, it never kills the loop.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// Func is one sweep pass. It must honor ctx cancellation.
type Func func(ctx context.Context) error

// Run drives fn on the given interval until ctx is cancelled. The first pass
// runs after one full interval, not immediately. Run blocks; callers start
// it on its own goroutine.
func Run(ctx context.Context, name string, interval time.Duration, clk clock.Clock, log zerolog.Logger, fn Func) {
	if clk == nil {
		clk = clock.New()
	}
	ticker := clk.Ticker(interval)
	defer ticker.Stop()

	log.Info().Str("sweep", name).Dur("interval", interval).Msg("sweep loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("sweep", name).Msg("sweep loop stopped")
			return
		case <-ticker.C:
			runOnce(ctx, name, log, fn)
		}
	}
}

// runOnce executes a single pass, converting panics into logged errors.
func runOnce(ctx context.Context, name string, log zerolog.Logger, fn Func) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("sweep", name).Err(fmt.Errorf("panic: %v", r)).Msg("sweep iteration panicked")
		}
	}()

	if err := fn(ctx); err != nil {
		log.Error().Str("sweep", name).Err(err).Msg("sweep iteration failed")
	}
}
