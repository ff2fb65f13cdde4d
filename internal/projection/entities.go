package projection

import (
	"context"
	"database/sql"
	"math/big"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"CTFIndexer/internal/entity"
)

// Upsert statements per entity kind. Projections are eventually consistent
// read models; every write is an idempotent upsert keyed by the entity id,
// so replaying a mutation is harmless.

func bigText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func decText(v *apd.Decimal) string {
	if v == nil {
		return "0"
	}
	var r apd.Decimal
	r.Reduce(v)
	return r.Text('f')
}

func bigSliceText(vs []*big.Int) string {
	if len(vs) == 0 {
		return ""
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = bigText(v)
	}
	return strings.Join(parts, ",")
}

func upsertMarket(ctx context.Context, tx *sql.Tx, m *entity.Market) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.markets
			(id, question_id, oracle, outcome_slot_count, creation_timestamp, creation_block,
			 creation_tx_hash, resolved, resolution_timestamp, resolution_block,
			 payout_numerators, winning_outcome, trade_count, total_volume, unique_traders)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			question_id = $2, oracle = $3, outcome_slot_count = $4,
			creation_timestamp = $5, creation_block = $6, creation_tx_hash = $7,
			resolved = $8, resolution_timestamp = $9, resolution_block = $10,
			payout_numerators = $11, winning_outcome = $12,
			trade_count = $13, total_volume = $14, unique_traders = $15
	`, m.ID, m.QuestionID, m.Oracle, m.OutcomeSlotCount, m.CreationTimestamp, m.CreationBlock,
		m.CreationTxHash, m.Resolved, m.ResolutionTimestamp, m.ResolutionBlock,
		bigSliceText(m.PayoutNumerators), m.WinningOutcome, m.TradeCount,
		bigText(m.TotalVolume), m.UniqueTraders)
	return err
}

func upsertUser(ctx context.Context, tx *sql.Tx, u *entity.User) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.users
			(id, trade_count, total_volume, total_fees_paid, markets_traded,
			 first_trade_timestamp, first_trade_block, last_trade_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			trade_count = $2, total_volume = $3, total_fees_paid = $4,
			markets_traded = $5, first_trade_timestamp = $6,
			first_trade_block = $7, last_trade_timestamp = $8
	`, u.ID, u.TradeCount, bigText(u.TotalVolume), bigText(u.TotalFeesPaid),
		u.MarketsTraded, u.FirstTradeTimestamp, u.FirstTradeBlock, u.LastTradeTimestamp)
	return err
}

func upsertPosition(ctx context.Context, tx *sql.Tx, p *entity.Position) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.positions
			(id, user_address, market, token_id, outcome_index, balance,
			 total_bought, total_sold, avg_buy_price, avg_sell_price,
			 realized_pnl, trade_count, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			outcome_index = $5, balance = $6, total_bought = $7, total_sold = $8,
			avg_buy_price = $9, avg_sell_price = $10, realized_pnl = $11,
			trade_count = $12, last_updated = $13
	`, p.ID, p.User, p.Market, p.TokenID, p.OutcomeIndex, bigText(p.Balance),
		bigText(p.TotalBought), bigText(p.TotalSold), decText(p.AvgBuyPrice),
		decText(p.AvgSellPrice), decText(p.RealizedPnL), p.TradeCount, p.LastUpdated)
	return err
}

func upsertToken(ctx context.Context, tx *sql.Tx, t *entity.TokenMapping) error {
	// Registry rows are write-once; a conflicting insert keeps the first row.
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.token_registry
			(id, token_id, market, outcome_index, index_set, collateral,
			 first_seen_tx_hash, first_seen_block, first_seen_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, t.ID, t.TokenID, t.Market, t.OutcomeIndex, bigText(t.IndexSet), t.Collateral,
		t.FirstSeenTxHash, t.FirstSeenBlock, t.FirstSeenTimestamp)
	return err
}

func upsertParticipation(ctx context.Context, tx *sql.Tx, p *entity.MarketParticipation) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.market_participations
			(id, user_address, market, trade_count, volume,
			 first_trade_timestamp, last_trade_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			trade_count = $4, volume = $5,
			first_trade_timestamp = $6, last_trade_timestamp = $7
	`, p.ID, p.User, p.Market, p.TradeCount, bigText(p.Volume),
		p.FirstTradeTimestamp, p.LastTradeTimestamp)
	return err
}

func upsertGlobalStats(ctx context.Context, tx *sql.Tx, g *entity.GlobalStats) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.global_stats
			(id, total_markets, resolved_markets, total_trades, total_volume,
			 total_fees, total_users, last_updated_block, last_updated_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			total_markets = $2, resolved_markets = $3, total_trades = $4,
			total_volume = $5, total_fees = $6, total_users = $7,
			last_updated_block = $8, last_updated_timestamp = $9
	`, g.ID, g.TotalMarkets, g.ResolvedMarkets, g.TotalTrades, bigText(g.TotalVolume),
		bigText(g.TotalFees), g.TotalUsers, g.LastUpdatedBlock, g.LastUpdatedTimestamp)
	return err
}

func upsertDailyStats(ctx context.Context, tx *sql.Tx, d *entity.DailyStats) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.daily_stats
			(id, day_timestamp, new_markets, resolved_markets, trade_count,
			 volume, fees, new_users, active_users)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			new_markets = $3, resolved_markets = $4, trade_count = $5,
			volume = $6, fees = $7, new_users = $8, active_users = $9
	`, d.ID, d.DayTimestamp, d.NewMarkets, d.ResolvedMarkets, d.TradeCount,
		bigText(d.Volume), bigText(d.Fees), d.NewUsers, d.ActiveUsers)
	return err
}

func upsertTrade(ctx context.Context, tx *sql.Tx, t *entity.Trade) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.trades
			(id, market, trader, counterparty, token_id, outcome_index, side,
			 amount, price, cost, fee, event_timestamp, block_number, tx_hash,
			 log_index, exchange)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO NOTHING
	`, t.ID, t.Market, t.Trader, t.Counterparty, t.TokenID, t.OutcomeIndex, string(t.Side),
		bigText(t.Amount), decText(t.Price), bigText(t.Cost), bigText(t.Fee),
		t.Timestamp, t.BlockNumber, t.TransactionHash, t.LogIndex, t.Exchange)
	return err
}

func upsertSplit(ctx context.Context, tx *sql.Tx, s *entity.Split) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.splits
			(id, stakeholder, market, amount, event_timestamp, block_number, tx_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, s.ID, s.Stakeholder, s.Market, bigText(s.Amount), s.Timestamp, s.BlockNumber, s.TransactionHash)
	return err
}

func upsertMerge(ctx context.Context, tx *sql.Tx, m *entity.Merge) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.merges
			(id, stakeholder, market, amount, event_timestamp, block_number, tx_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, m.ID, m.Stakeholder, m.Market, bigText(m.Amount), m.Timestamp, m.BlockNumber, m.TransactionHash)
	return err
}

func upsertRedemption(ctx context.Context, tx *sql.Tx, r *entity.Redemption) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.redemptions
			(id, redeemer, market, index_sets, payout, event_timestamp, block_number, tx_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, r.ID, r.Redeemer, r.Market, bigSliceText(r.IndexSets), bigText(r.Payout),
		r.Timestamp, r.BlockNumber, r.TransactionHash)
	return err
}
