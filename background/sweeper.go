// Package background contains tasks that run beside the HTTP server,
// independently of any request-response cycle.
// In Nest.js, this could be analogous to using `@nestjs/schedule` for an interval job.
package background

import (
	// `sync` provides the `WaitGroup` the caller uses to wait for a clean stop.
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSweepInterval is how often expired rate limit windows are evicted.
const DefaultSweepInterval = time.Minute

// Sweeper evicts state that expired before now and reports how much it removed.
// ratelimit.MemoryStore satisfies it.
type Sweeper interface {
	Sweep(now time.Time) int
}

// StartSweeper runs target.Sweep on every tick of interval until stopChan is closed.
// The returned WaitGroup is done once the goroutine has exited, so shutdown can
// wait for an in-flight sweep to finish.
//
// ELI5: This is a janitor with an alarm clock. Every time the alarm rings the janitor
// throws away the slips that have expired, and when the building closes (`stopChan`)
// the janitor finishes the current round and goes home.
func StartSweeper(target Sweeper, interval time.Duration, logger zerolog.Logger, stopChan <-chan struct{}) *sync.WaitGroup {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	logger = logger.With().Str("component", "sweeper").Logger()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer logger.Info().Msg("sweeper stopped")

		// `defer ticker.Stop()` frees the ticker's resources when the goroutine exits.
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		logger.Info().Dur("interval", interval).Msg("sweeper started")
		for {
			select {
			case now := <-ticker.C:
				if removed := target.Sweep(now); removed > 0 {
					logger.Debug().Int("removed", removed).Msg("expired entries evicted")
				}
			case <-stopChan:
				return
			}
		}
	}()
	return &wg
}
