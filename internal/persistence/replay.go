package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"CTFIndexer/internal/observability"
)

// Replayer streams the event log back through a caller-supplied apply
// function. The event log is the source of truth: a restart rebuilds the
// in-memory snapshot by replaying every row in sequence order, which must
// land on the same chain tip the log recorded.
type Replayer struct {
	writer    *EventLogWriter
	batchSize int
}

func NewReplayer(db *sql.DB, batchSize int) *Replayer {
	return &Replayer{
		writer:    NewEventLogWriter(db),
		batchSize: batchSize,
	}
}

// Replay applies every event row from fromSequence onward. apply receives
// the stored event type and the original wire payload.
func (r *Replayer) Replay(ctx context.Context, fromSequence int64, apply func(eventType string, payload []byte) error) (int64, error) {
	logger := observability.NewLogger("replay")
	next := fromSequence
	var replayed int64

	for {
		rows, err := r.writer.LoadEventsFrom(ctx, next, r.batchSize)
		if err != nil {
			return replayed, fmt.Errorf("load events from %d: %w", next, err)
		}
		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			if err := apply(row.EventType, row.Payload); err != nil {
				return replayed, fmt.Errorf("replay seq %d (%s %s): %w", row.Sequence, row.EventType, row.EventID, err)
			}
			replayed++
		}

		next = rows[len(rows)-1].Sequence + 1
		if replayed%100_000 < int64(len(rows)) {
			logger.Info().Int64("replayed", replayed).Int64("next", next).Msg("replay progress")
		}
	}

	return replayed, nil
}

// VerifyChainTip compares a rebuilt chain tip against the one stored with
// the last event row. A mismatch means the snapshot diverged from the log.
func VerifyChainTip(stored []byte, rebuilt [32]byte) error {
	if len(stored) != len(rebuilt) {
		return fmt.Errorf("stored chain tip has %d bytes, want %d", len(stored), len(rebuilt))
	}
	for i, b := range stored {
		if rebuilt[i] != b {
			return fmt.Errorf("chain tip mismatch after replay: stored %x, rebuilt %x", stored, rebuilt[:])
		}
	}
	return nil
}
