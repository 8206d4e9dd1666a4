package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrAllFeedsStopped is returned by [Supervisor.Run] when every watched feed
// has failed fatally. As long as at least one feed is still polling the
// supervisor keeps running.
var ErrAllFeedsStopped = errors.New("all feeds stopped")

// Supervisor owns the lifecycle of a set of pollers.
//
// Feeds are seeded sequentially before any polling starts, so that startup
// cost lands predictably on the shared budget, then each feed runs in its
// own goroutine. A fatal failure stops only its own feed; the rest keep
// polling undisturbed.
type Supervisor struct {
	pollers []*Poller
	logger  *slog.Logger
}

// NewSupervisor creates a [Supervisor] over the given pollers.
func NewSupervisor(pollers []*Poller, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{pollers: pollers, logger: logger}
}

// Run seeds every feed and then polls them concurrently until the context is
// cancelled or every feed has died.
//
// Cancellation is a clean shutdown and returns nil, even if some feeds had
// already failed. When every feed fails fatally (at seed time or later) Run
// returns an error wrapping [ErrAllFeedsStopped].
func (s *Supervisor) Run(ctx context.Context) error {
	if len(s.pollers) == 0 {
		return fmt.Errorf("%w: no feeds configured", ErrAllFeedsStopped)
	}

	live := make([]*Poller, 0, len(s.pollers))
	for _, p := range s.pollers {
		if ctx.Err() != nil {
			return nil
		}
		if err := p.Seed(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error("feed failed to start", "feed", p.Source().String(), "error", err)
			continue
		}
		live = append(live, p)
	}

	if len(live) == 0 {
		return fmt.Errorf("%w: every feed failed to start", ErrAllFeedsStopped)
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fatal int
	)
	for _, p := range live {
		wg.Add(1)
		go func(p *Poller) {
			defer wg.Done()
			if err := p.Run(ctx); err != nil {
				s.logger.Error("feed stopped", "feed", p.Source().String(), "error", err)
				mu.Lock()
				fatal++
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil
	}
	if fatal == len(live) {
		// seed failures plus the live feeds that went fatal account for
		// every configured feed at this point
		return fmt.Errorf("%w: all %d feeds failed", ErrAllFeedsStopped, len(s.pollers))
	}
	return nil
}
