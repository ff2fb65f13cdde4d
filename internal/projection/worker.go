package projection

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"CTFIndexer/internal/core"
	"CTFIndexer/internal/entity"
	"CTFIndexer/internal/observability"
)

// ProjectionWorker applies entity mutations to the Postgres read model.
// The projection channel is non-blocking with drop on the core side: if
// this worker falls behind, dropped outputs are recovered by rebuilding
// from the event log.
type ProjectionWorker struct {
	db        *sql.DB
	inputChan <-chan core.Output
	metrics   *observability.Metrics
	lastSeq   int64
}

func NewProjectionWorker(db *sql.DB, inputChan <-chan core.Output, metrics *observability.Metrics) *ProjectionWorker {
	return &ProjectionWorker{
		db:        db,
		inputChan: inputChan,
		metrics:   metrics,
	}
}

// Run starts the projection worker loop.
func (pw *ProjectionWorker) Run(ctx context.Context) error {
	logger := observability.NewLogger("projection")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				return nil
			}

			if err := pw.Apply(ctx, output); err != nil {
				// Continue: projections are eventually consistent and can
				// be rebuilt from the event log
				logger.Warn().Int64("sequence", output.Sequence).Err(err).Msg("projection update failed")
				continue
			}

			pw.lastSeq = output.Sequence
			if pw.metrics != nil {
				pw.metrics.ProjectionLastSeq.Set(float64(output.Sequence))
			}
		}
	}
}

// Apply writes one output's mutations in a single transaction and advances
// the watermark. Exposed for the synchronous projection rebuild path.
func (pw *ProjectionWorker) Apply(ctx context.Context, output core.Output) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, m := range output.Mutations {
		start := time.Now()
		if err := pw.applyMutation(ctx, tx, m.Entity); err != nil {
			return fmt.Errorf("%s %s: %w", m.Kind, m.ID, err)
		}
		if pw.metrics != nil {
			pw.metrics.ProjectionUpserts.WithLabelValues(string(m.Kind)).Inc()
			pw.metrics.ProjectionUpdateDur.WithLabelValues(string(m.Kind)).Observe(time.Since(start).Seconds())
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, output.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

func (pw *ProjectionWorker) applyMutation(ctx context.Context, tx *sql.Tx, e entity.Entity) error {
	switch v := e.(type) {
	case *entity.Market:
		return upsertMarket(ctx, tx, v)
	case *entity.User:
		return upsertUser(ctx, tx, v)
	case *entity.Position:
		return upsertPosition(ctx, tx, v)
	case *entity.TokenMapping:
		return upsertToken(ctx, tx, v)
	case *entity.MarketParticipation:
		return upsertParticipation(ctx, tx, v)
	case *entity.GlobalStats:
		return upsertGlobalStats(ctx, tx, v)
	case *entity.DailyStats:
		return upsertDailyStats(ctx, tx, v)
	case *entity.Trade:
		return upsertTrade(ctx, tx, v)
	case *entity.Split:
		return upsertSplit(ctx, tx, v)
	case *entity.Merge:
		return upsertMerge(ctx, tx, v)
	case *entity.Redemption:
		return upsertRedemption(ctx, tx, v)
	default:
		return fmt.Errorf("unknown entity type %T", e)
	}
}

// Watermark returns the last projected sequence recorded in Postgres.
func Watermark(ctx context.Context, db *sql.DB) (int64, error) {
	var seq sql.NullInt64
	err := db.QueryRowContext(ctx, `
		SELECT last_sequence FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	return seq.Int64, nil
}

// TruncateAll clears every projection table ahead of a rebuild. The rebuild
// itself replays the event log through the core, which re-emits every
// mutation into a fresh worker.
func TruncateAll(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`TRUNCATE projections.markets`,
		`TRUNCATE projections.users`,
		`TRUNCATE projections.positions`,
		`TRUNCATE projections.token_registry`,
		`TRUNCATE projections.market_participations`,
		`TRUNCATE projections.global_stats`,
		`TRUNCATE projections.daily_stats`,
		`TRUNCATE projections.trades`,
		`TRUNCATE projections.splits`,
		`TRUNCATE projections.merges`,
		`TRUNCATE projections.redemptions`,
		`DELETE FROM projections.watermark WHERE worker_id = 'main'`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}
	return nil
}
