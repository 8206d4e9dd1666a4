package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the lifecycle state of a [Poller].
//
// A poller cycles Idle -> Polling -> Idle for as long as it lives and only
// leaves the cycle for Stopped, reached on a fatal error or cancellation.
type State string

const (
	// StateIdle means the poller is waiting out its pacing delay.
	StateIdle State = "idle"

	// StatePolling means a fetch (or emission) is in flight.
	StatePolling State = "polling"

	// StateStopped is terminal: fatal error or external cancellation.
	StateStopped State = "stopped"
)

// Status is a snapshot of one feed's progress, published after every poll.
type Status struct {
	// Source is the owner/name of the feed.
	Source string `json:"source"`

	// State is the poller's lifecycle state.
	State State `json:"state"`

	// LastPollAt is when the most recent poll completed.
	LastPollAt time.Time `json:"last_poll_at"`

	// ItemsDelivered counts items accepted by the sink since start.
	ItemsDelivered int64 `json:"items_delivered"`

	// LastEventID is the newest committed item identifier.
	LastEventID string `json:"last_event_id"`

	// Remaining is the shared budget's last observed remaining count,
	// or -1 when unknown.
	Remaining int `json:"remaining"`

	// LastError holds the most recent poll failure, empty when the last
	// poll succeeded.
	LastError string `json:"last_error,omitempty"`
}

// defaults applied by NewPoller when the config leaves fields zero.
const (
	// DefaultInterval is the base delay between polls. The public events
	// API asks clients for at most one poll per minute per feed.
	DefaultInterval = 60 * time.Second

	// DefaultMaxRetries bounds consecutive transient failures (including
	// sink failures) before a feed is declared dead.
	DefaultMaxRetries = 3
)

// PollerConfig carries the collaborators and knobs for one [Poller].
type PollerConfig struct {
	// Source identifies the watched feed. Required.
	Source Source

	// Fetcher performs the conditional fetches. Required.
	Fetcher Fetcher

	// Budget is the process-wide rate budget. Required.
	Budget *Budget

	// Sink consumes delivered items and notices. Required.
	Sink Sink

	// Logger receives per-poll events. Defaults to slog.Default().
	Logger *slog.Logger

	// BaseInterval is the pacing delay between polls when the source does
	// not carry its own. Defaults to [DefaultInterval].
	BaseInterval time.Duration

	// MaxRetries bounds consecutive transient failures before the feed
	// escalates to fatal. Defaults to [DefaultMaxRetries].
	MaxRetries int

	// OnStatus, when set, receives a [Status] snapshot after every poll.
	OnStatus func(Status)
}

// Poller drives the poll -> emit -> commit loop for a single feed.
//
// Within one feed the sequence is strictly sequential: a fetch never
// overlaps the previous fetch's emission, and the cursor is only advanced
// after the sink accepted every emitted item. That ordering means a crash
// between emission and commit re-delivers the boundary item rather than
// silently dropping anything; the boundary item itself is deduplicated on
// the way out, so at most one duplicate can ever reach the sink.
//
// A Poller is not safe for concurrent use: Seed and Run must be called from
// a single goroutine. The read accessors are safe to call from other
// goroutines.
type Poller struct {
	source   Source
	fetcher  Fetcher
	budget   *Budget
	sink     Sink
	logger   *slog.Logger
	interval time.Duration
	retries  int
	onStatus func(Status)

	mu        sync.Mutex
	cursor    Cursor
	state     State
	delivered int64
	lastErr   string
	lastPoll  time.Time
}

// NewPoller creates a [Poller] from cfg, applying defaults for the logger,
// interval and retry bound.
func NewPoller(cfg PollerConfig) *Poller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Source.Interval
	if interval == 0 {
		interval = cfg.BaseInterval
	}
	if interval == 0 {
		interval = DefaultInterval
	}

	retries := cfg.MaxRetries
	if retries == 0 {
		retries = DefaultMaxRetries
	}

	return &Poller{
		source:   cfg.Source,
		fetcher:  cfg.Fetcher,
		budget:   cfg.Budget,
		sink:     cfg.Sink,
		logger:   logger.With("feed", cfg.Source.String()),
		interval: interval,
		retries:  retries,
		onStatus: cfg.OnStatus,
		state:    StateIdle,
	}
}

// Source returns the feed this poller watches.
func (p *Poller) Source() Source {
	return p.source
}

// State returns the poller's current lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Cursor returns the last committed cursor.
func (p *Poller) Cursor() Cursor {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Delivered returns the number of items the sink has accepted.
func (p *Poller) Delivered() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.delivered
}

// Seed performs the initial fetch that establishes the starting cursor.
//
// A freshly attached watch must not flood the sink with the feed's entire
// backlog, so whatever the first successful fetch returns seeds the cursor
// silently: zero items are emitted, however many the page carried. Only
// polls after seeding emit.
//
// Transient failures are retried up to the configured bound; rate-limited
// responses wait out the budget's backoff without counting as retries.
// A fatal error (or exhausted retries) is returned to the caller and the
// poller transitions to [StateStopped].
func (p *Poller) Seed(ctx context.Context) error {
	var limited, transient int
	for {
		if err := ctx.Err(); err != nil {
			p.setState(StateStopped)
			return err
		}

		p.setState(StatePolling)
		page, err := p.fetcher.Fetch(ctx, p.source, Cursor{})
		p.markPoll(err)

		var delay time.Duration
		switch {
		case err == nil:
			if !page.Unchanged {
				p.commit(page.Cursor)
			}
			p.setState(StateIdle)
			p.logger.Debug("seeded", "backlog", len(page.Items), "cursor", p.Cursor().LastID)
			p.sink.Notify(ctx, p.notice(NoticeSeeded, len(page.Items)))
			p.publish()
			return nil

		case IsFatal(err):
			p.setState(StateStopped)
			p.publish()
			return fmt.Errorf("seed %s: %w", p.source, err)

		case IsRateLimited(err):
			delay = p.budget.LimitedDelay(p.interval, limited)
			limited++
			p.logger.Debug("seed rate limited", "delay", delay.String())

		default:
			transient++
			if transient > p.retries {
				p.setState(StateStopped)
				p.publish()
				return fmt.Errorf("seed %s: giving up after %d attempts: %w", p.source, transient, err)
			}
			delay = retryDelay(p.interval, transient)
			p.logger.Debug("seed failed, retrying", "error", err, "delay", delay.String())
		}

		p.setState(StateIdle)
		p.publish()
		if err := sleepCtx(ctx, delay); err != nil {
			p.setState(StateStopped)
			return err
		}
	}
}

// Run executes the polling loop until the context is cancelled or the feed
// fails fatally. Cancellation is a clean exit (nil); a fatal error is
// returned so the supervisor can account for the dead feed while siblings
// keep running.
//
// The loop never terminates voluntarily on idle or new-data polls.
// Cancellation is observed before every fetch and during every delay;
// in-flight fetches complete rather than being cut off, so emission and
// cursor-commit are never split by shutdown.
func (p *Poller) Run(ctx context.Context) error {
	var limited, transient int
	for {
		if ctx.Err() != nil {
			p.setState(StateStopped)
			p.publish()
			return nil
		}

		p.setState(StatePolling)
		page, err := p.fetcher.Fetch(ctx, p.source, p.Cursor())
		p.markPoll(err)

		var delay time.Duration
		switch {
		case err == nil && page.Unchanged:
			limited, transient = 0, 0
			if !page.Cursor.Zero() {
				p.commit(page.Cursor) // refreshed validator, same boundary
			}
			p.sink.Notify(ctx, p.notice(NoticeIdle, 0))
			delay = p.budget.PacingDelay(p.interval)

		case err == nil:
			emitted, derr := p.emit(ctx, page)
			if derr != nil {
				// sink failure: the cursor must not move, or the
				// unaccepted items would be lost for good
				p.markPoll(derr)
				transient++
				if transient > p.retries {
					p.setState(StateStopped)
					p.publish()
					return fmt.Errorf("feed %s: sink rejected items %d times: %w", p.source, transient, derr)
				}
				delay = retryDelay(p.interval, transient)
				p.logger.Warn("emission failed, will re-poll", "error", derr, "delay", delay.String())
			} else {
				limited, transient = 0, 0
				p.commit(page.Cursor)
				p.sink.Notify(ctx, p.notice(NoticeNewItems, emitted))
				p.logger.Debug("delivered", "items", emitted, "cursor", page.Cursor.LastID)
				delay = p.budget.PacingDelay(p.interval)
			}

		case IsFatal(err):
			p.setState(StateStopped)
			p.publish()
			return fmt.Errorf("feed %s: %w", p.source, err)

		case IsRateLimited(err):
			delay = p.budget.LimitedDelay(p.interval, limited)
			limited++
			p.logger.Info("rate limited", "delay", delay.String())

		default: // transient
			transient++
			if transient > p.retries {
				p.setState(StateStopped)
				p.publish()
				return fmt.Errorf("feed %s: giving up after %d transient failures: %w", p.source, transient, err)
			}
			delay = retryDelay(p.interval, transient)
			p.logger.Warn("poll failed, retrying", "error", err, "delay", delay.String())
		}

		p.setState(StateIdle)
		p.publish()
		if err := sleepCtx(ctx, delay); err != nil {
			p.setState(StateStopped)
			p.publish()
			return nil
		}
	}
}

// emit delivers a page's items to the sink in order.
//
// The item matching the committed boundary is dropped (the one duplicate a
// server race may redeliver), and filtered items are skipped without
// affecting commit. Returns how many items the sink accepted and the first
// delivery error, if any.
func (p *Poller) emit(ctx context.Context, page Page) (int, error) {
	boundary := p.Cursor().LastID
	emitted := 0
	for _, item := range page.Items {
		if item.ID == boundary {
			continue
		}
		if p.source.Filter != nil && !p.source.Filter(item) {
			continue
		}
		if err := p.sink.Deliver(ctx, p.source.String(), item); err != nil {
			return emitted, fmt.Errorf("deliver item %s: %w", item.ID, err)
		}
		emitted++
		p.mu.Lock()
		p.delivered++
		p.mu.Unlock()
	}
	return emitted, nil
}

// commit adopts a new cursor. Only called after the sink accepted every
// emitted item of the page the cursor came from.
func (p *Poller) commit(cursor Cursor) {
	p.mu.Lock()
	p.cursor = cursor
	p.mu.Unlock()
}

func (p *Poller) setState(state State) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}

// markPoll records the outcome of the poll that just finished.
func (p *Poller) markPoll(err error) {
	p.mu.Lock()
	p.lastPoll = time.Now()
	if err != nil {
		p.lastErr = err.Error()
	} else {
		p.lastErr = ""
	}
	p.mu.Unlock()
}

func (p *Poller) notice(kind NoticeKind, count int) Notice {
	return Notice{
		Source:    p.source.String(),
		Kind:      kind,
		NewItems:  count,
		Remaining: p.remaining(),
		At:        time.Now(),
	}
}

func (p *Poller) remaining() int {
	if p.budget == nil {
		return -1
	}
	remaining, known := p.budget.Remaining()
	if !known {
		return -1
	}
	return remaining
}

// publish pushes a status snapshot to the configured hook.
func (p *Poller) publish() {
	if p.onStatus == nil {
		return
	}

	p.mu.Lock()
	status := Status{
		Source:         p.source.String(),
		State:          p.state,
		LastPollAt:     p.lastPoll,
		ItemsDelivered: p.delivered,
		LastEventID:    p.cursor.LastID,
		Remaining:      -1,
		LastError:      p.lastErr,
	}
	p.mu.Unlock()

	status.Remaining = p.remaining()
	p.onStatus(status)
}

// retryDelay is the short exponential wait between transient retries:
// one second doubling per attempt, never longer than the pacing interval.
func retryDelay(interval time.Duration, attempt int) time.Duration {
	d := time.Second
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= interval {
			break
		}
	}
	if d > interval {
		d = interval
	}
	return d
}

// sleepCtx waits out d or returns early with the context's error.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
