package repowatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/repowatch/internal/feed"
	"github.com/jpalmerr/repowatch/internal/journal"
)

// sinkAdapter bridges the public [Sink] onto the engine's sink contract,
// adding panic recovery and optional journal recording.
type sinkAdapter struct {
	sink    Sink
	journal *journal.Journal
	logger  *slog.Logger
}

// Deliver hands the item to the user sink, then records it in the journal.
// Journal writes are best-effort; a failed write is logged but does not
// fail the delivery.
func (a *sinkAdapter) Deliver(ctx context.Context, source string, item feed.Item) error {
	public := feedItemToPublic(item)
	if err := a.deliverSafe(ctx, source, public); err != nil {
		return err
	}

	if a.journal != nil {
		err := a.journal.Record(ctx, journal.Entry{
			Source:      source,
			EventID:     item.ID,
			Type:        item.Type,
			Actor:       item.Actor,
			Repo:        item.Repo,
			CreatedAt:   item.CreatedAt,
			DeliveredAt: time.Now(),
		})
		if err != nil {
			a.logger.Warn("journal write failed", "feed", source, "item", item.ID, "error", err)
		}
	}

	return nil
}

// deliverSafe calls the user sink with panic recovery.
// If the sink panics, it logs the full context with a correlation ID and
// returns an error, so the feed's position does not advance past the item.
func (a *sinkAdapter) deliverSafe(ctx context.Context, source string, item Item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			a.logger.Error("sink panicked",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"feed", source,
				"item", item.ID,
			)
			err = fmt.Errorf("sink panic (correlation_id: %s)", correlationID)
		}
	}()
	return a.sink.Deliver(ctx, source, item)
}

// Notify forwards the heartbeat to the user sink with panic recovery.
func (a *sinkAdapter) Notify(ctx context.Context, notice feed.Notice) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("sink notify panicked", "panic", r, "feed", notice.Source)
		}
	}()
	a.sink.Notify(ctx, Notice{
		Source:    notice.Source,
		Kind:      NoticeKind(notice.Kind),
		NewItems:  notice.NewItems,
		Remaining: notice.Remaining,
		At:        notice.At,
	})
}
