package feed

import (
	"sync"
	"time"
)

// Budget tracks the request allowance reported by the remote service.
//
// The remote rate limit is per-credential, not per-feed, so a single Budget
// is shared by every [Poller] in the process. Each fetch overwrites the
// tracked state with whatever the latest response reported; last-writer-wins
// is acceptable because the server is the single source of truth and its
// responses are monotonically informative.
//
// Budget also owns the delay policy derived from that state: [Budget.PacingDelay]
// for the steady-state interval between polls, and [Budget.LimitedDelay] for
// the backoff after the service refused a request.
//
// All methods are safe for concurrent use.
type Budget struct {
	mu        sync.Mutex
	remaining int
	reset     time.Time
	known     bool

	floor    int
	maxDelay time.Duration

	// now is overridable for tests.
	now func() time.Time
}

// NewBudget creates a [Budget].
//
// Parameters:
//   - floor: when the reported remaining count drops to this value or below,
//     pacing delays are stretched toward the window reset
//   - maxDelay: upper bound on any delay the budget recommends
//
// The budget starts in an "unknown" state: until the first [Budget.Observe]
// call, pacing delays pass through unchanged.
func NewBudget(floor int, maxDelay time.Duration) *Budget {
	return &Budget{
		floor:    floor,
		maxDelay: maxDelay,
		now:      time.Now,
	}
}

// Observe records the rate-limit state reported by a response.
//
// Called after every fetch that carried rate-limit metadata, success or
// failure. Negative remaining counts are clamped to zero; the budget is
// never negative. A zero reset time means the server did not report one.
func (b *Budget) Observe(remaining int, reset time.Time) {
	if remaining < 0 {
		remaining = 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.remaining = remaining
	b.reset = reset
	b.known = true
}

// Remaining returns the last observed remaining-request count.
//
// The second return value is false if no response has reported rate-limit
// metadata yet.
func (b *Budget) Remaining() (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining, b.known
}

// Exhausted reports whether the last observed remaining count was zero.
func (b *Budget) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.known && b.remaining == 0
}

// PacingDelay returns the delay before the next poll of a feed whose last
// fetch completed normally.
//
// While the budget is above the configured floor (or unknown), the base
// interval passes through unchanged: new data never shortens the interval,
// and an idle poll never lengthens it. At or below the floor, the delay is
// stretched to the reported window reset so the remaining allowance is not
// burned before the window turns over. The result is never below base and
// never above the configured maximum.
func (b *Budget) PacingDelay(base time.Duration) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.known || b.remaining > b.floor {
		return base
	}

	return b.clamp(b.untilReset(), base)
}

// LimitedDelay returns the wait after a fetch the service refused outright.
//
// When the server reported a reset time, the delay runs until that reset.
// Without a reset time, the delay doubles from base on every successive
// attempt (attempt counts from zero), so repeated refusals produce a
// non-decreasing sequence of waits up to the configured maximum.
func (b *Budget) LimitedDelay(base time.Duration, attempt int) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if until := b.untilReset(); until > 0 {
		return b.clamp(until, base)
	}

	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= b.maxDelay {
			return b.maxDelay
		}
	}
	return b.clamp(d, base)
}

// untilReset returns the time left in the reported window, or 0 when no
// reset time is known. Caller must hold b.mu.
func (b *Budget) untilReset() time.Duration {
	if !b.known || b.reset.IsZero() {
		return 0
	}
	return b.reset.Sub(b.now())
}

// clamp bounds d to [min, b.maxDelay]. Caller must hold b.mu.
func (b *Budget) clamp(d, min time.Duration) time.Duration {
	if d < min {
		return min
	}
	if b.maxDelay > 0 && d > b.maxDelay {
		return b.maxDelay
	}
	return d
}
