package query

import (
	"context"
	"database/sql"
	"fmt"
)

// QueryService provides read-only access to the projection tables. All
// responses include as_of_sequence for freshness semantics; the projection
// lags the core by whatever sits in the projection channel.
type QueryService struct {
	db *sql.DB
}

func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

// GetGlobalStats returns the singleton running-totals row.
func (qs *QueryService) GetGlobalStats(ctx context.Context) (*GlobalStatsResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	g := &GlobalStatsResponse{AsOfSequence: asOfSeq, TotalVolume: "0", TotalFees: "0"}
	err = qs.db.QueryRowContext(ctx, `
		SELECT total_markets, resolved_markets, total_trades, total_volume,
		       total_fees, total_users, last_updated_block, last_updated_timestamp
		FROM projections.global_stats
		WHERE id = 'global'
	`).Scan(&g.TotalMarkets, &g.ResolvedMarkets, &g.TotalTrades, &g.TotalVolume,
		&g.TotalFees, &g.TotalUsers, &g.LastUpdatedBlock, &g.LastUpdatedTimestamp)
	if err == sql.ErrNoRows {
		return g, nil
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// GetMarket returns one market by condition id.
func (qs *QueryService) GetMarket(ctx context.Context, id string) (*MarketResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	m := &MarketResponse{AsOfSequence: asOfSeq}
	err = qs.db.QueryRowContext(ctx, `
		SELECT id, question_id, oracle, outcome_slot_count, creation_timestamp,
		       creation_block, resolved, resolution_timestamp, payout_numerators,
		       winning_outcome, trade_count, total_volume, unique_traders
		FROM projections.markets
		WHERE id = $1
	`, id).Scan(&m.ID, &m.QuestionID, &m.Oracle, &m.OutcomeSlotCount, &m.CreationTimestamp,
		&m.CreationBlock, &m.Resolved, &m.ResolutionTimestamp, &m.PayoutNumerators,
		&m.WinningOutcome, &m.TradeCount, &m.TotalVolume, &m.UniqueTraders)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListMarkets returns markets ordered by creation, newest first, with
// keyset pagination on (creation_timestamp, id).
func (qs *QueryService) ListMarkets(ctx context.Context, limit int, beforeTimestamp *int64, resolvedOnly bool) ([]MarketResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, question_id, oracle, outcome_slot_count, creation_timestamp,
		       creation_block, resolved, resolution_timestamp, payout_numerators,
		       winning_outcome, trade_count, total_volume, unique_traders
		FROM projections.markets
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	if resolvedOnly {
		query += " AND resolved = TRUE"
	}
	if beforeTimestamp != nil {
		query += fmt.Sprintf(" AND creation_timestamp < $%d", argIdx)
		args = append(args, *beforeTimestamp)
		argIdx++
	}

	query += " ORDER BY creation_timestamp DESC, id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markets []MarketResponse
	for rows.Next() {
		m := MarketResponse{AsOfSequence: asOfSeq}
		if err := rows.Scan(
			&m.ID, &m.QuestionID, &m.Oracle, &m.OutcomeSlotCount, &m.CreationTimestamp,
			&m.CreationBlock, &m.Resolved, &m.ResolutionTimestamp, &m.PayoutNumerators,
			&m.WinningOutcome, &m.TradeCount, &m.TotalVolume, &m.UniqueTraders,
		); err != nil {
			return nil, err
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// GetUser returns one trader by address.
func (qs *QueryService) GetUser(ctx context.Context, address string) (*UserResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	u := &UserResponse{AsOfSequence: asOfSeq}
	err = qs.db.QueryRowContext(ctx, `
		SELECT id, trade_count, total_volume, total_fees_paid, markets_traded,
		       first_trade_timestamp, last_trade_timestamp
		FROM projections.users
		WHERE id = $1
	`, address).Scan(&u.Address, &u.TradeCount, &u.TotalVolume, &u.TotalFeesPaid,
		&u.MarketsTraded, &u.FirstTradeTimestamp, &u.LastTradeTimestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// ListUsers returns traders ordered by lifetime volume, largest first.
func (qs *QueryService) ListUsers(ctx context.Context, limit int) ([]UserResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT id, trade_count, total_volume, total_fees_paid, markets_traded,
		       first_trade_timestamp, last_trade_timestamp
		FROM projections.users
		ORDER BY total_volume::NUMERIC DESC, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []UserResponse
	for rows.Next() {
		u := UserResponse{AsOfSequence: asOfSeq}
		if err := rows.Scan(
			&u.Address, &u.TradeCount, &u.TotalVolume, &u.TotalFeesPaid,
			&u.MarketsTraded, &u.FirstTradeTimestamp, &u.LastTradeTimestamp,
		); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetUserPositions returns a user's positions with nonzero activity,
// largest balance first.
func (qs *QueryService) GetUserPositions(ctx context.Context, address string) ([]PositionResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT user_address, market, token_id, outcome_index, balance,
		       total_bought, total_sold, avg_buy_price, avg_sell_price,
		       realized_pnl, trade_count, last_updated
		FROM projections.positions
		WHERE user_address = $1
		ORDER BY balance::NUMERIC DESC, market
	`, address)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []PositionResponse
	for rows.Next() {
		p := PositionResponse{AsOfSequence: asOfSeq}
		if err := rows.Scan(
			&p.User, &p.Market, &p.TokenID, &p.OutcomeIndex, &p.Balance,
			&p.TotalBought, &p.TotalSold, &p.AvgBuyPrice, &p.AvgSellPrice,
			&p.RealizedPnL, &p.TradeCount, &p.LastUpdated,
		); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// ListTrades returns trades newest first, optionally filtered by market or
// trader, with keyset pagination on timestamp.
func (qs *QueryService) ListTrades(ctx context.Context, market, trader string, limit int, beforeTimestamp *int64) ([]TradeResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, market, trader, counterparty, token_id, outcome_index, side,
		       amount, price, cost, fee, event_timestamp, block_number, tx_hash, exchange
		FROM projections.trades
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	if market != "" {
		query += fmt.Sprintf(" AND market = $%d", argIdx)
		args = append(args, market)
		argIdx++
	}
	if trader != "" {
		query += fmt.Sprintf(" AND (trader = $%d OR counterparty = $%d)", argIdx, argIdx)
		args = append(args, trader)
		argIdx++
	}
	if beforeTimestamp != nil {
		query += fmt.Sprintf(" AND event_timestamp < $%d", argIdx)
		args = append(args, *beforeTimestamp)
		argIdx++
	}

	query += " ORDER BY event_timestamp DESC, id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []TradeResponse
	for rows.Next() {
		t := TradeResponse{AsOfSequence: asOfSeq}
		if err := rows.Scan(
			&t.ID, &t.Market, &t.Trader, &t.Counterparty, &t.TokenID, &t.OutcomeIndex,
			&t.Side, &t.Amount, &t.Price, &t.Cost, &t.Fee, &t.Timestamp,
			&t.BlockNumber, &t.TxHash, &t.Exchange,
		); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// GetMarketParticipants returns the traders of one market by volume.
func (qs *QueryService) GetMarketParticipants(ctx context.Context, market string, limit int) ([]ParticipationResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT user_address, market, trade_count, volume,
		       first_trade_timestamp, last_trade_timestamp
		FROM projections.market_participations
		WHERE market = $1
		ORDER BY volume::NUMERIC DESC
		LIMIT $2
	`, market, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parts []ParticipationResponse
	for rows.Next() {
		p := ParticipationResponse{AsOfSequence: asOfSeq}
		if err := rows.Scan(
			&p.User, &p.Market, &p.TradeCount, &p.Volume,
			&p.FirstTradeTimestamp, &p.LastTradeTimestamp,
		); err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}

// GetToken returns one token registry entry.
func (qs *QueryService) GetToken(ctx context.Context, tokenID string) (*TokenResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	t := &TokenResponse{AsOfSequence: asOfSeq}
	err = qs.db.QueryRowContext(ctx, `
		SELECT token_id, market, outcome_index, index_set, collateral
		FROM projections.token_registry
		WHERE id = $1
	`, tokenID).Scan(&t.TokenID, &t.Market, &t.OutcomeIndex, &t.IndexSet, &t.Collateral)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetDailyStats returns day buckets within [fromTimestamp, toTimestamp],
// oldest first.
func (qs *QueryService) GetDailyStats(ctx context.Context, fromTimestamp, toTimestamp int64) ([]DailyStatsResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT day_timestamp, new_markets, resolved_markets, trade_count,
		       volume, fees, new_users, active_users
		FROM projections.daily_stats
		WHERE day_timestamp >= $1 AND day_timestamp <= $2
		ORDER BY day_timestamp ASC
	`, fromTimestamp, toTimestamp)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []DailyStatsResponse
	for rows.Next() {
		d := DailyStatsResponse{AsOfSequence: asOfSeq}
		if err := rows.Scan(
			&d.DayTimestamp, &d.NewMarkets, &d.ResolvedMarkets, &d.TradeCount,
			&d.Volume, &d.Fees, &d.NewUsers, &d.ActiveUsers,
		); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// --- Admin APIs ---

// VerifyIntegrity checks hash chain continuity in the event log and sanity
// of resolved markets in the projection.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM event_log.events e1
		LEFT JOIN event_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.sequence > 0 AND e1.prev_hash != COALESCE(e2.state_hash, e1.prev_hash)
		ORDER BY e1.sequence
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Resolved markets must carry a payout vector
	resRows, err := qs.db.QueryContext(ctx, `
		SELECT id FROM projections.markets
		WHERE resolved = TRUE AND payout_numerators = ''
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer resRows.Close()

	for resRows.Next() {
		var id string
		if err := resRows.Scan(&id); err != nil {
			return nil, err
		}
		report.ResolutionErrors = append(report.ResolutionErrors,
			fmt.Sprintf("market %s resolved without payout vector", id))
	}
	if err := resRows.Err(); err != nil {
		return nil, err
	}

	// Projection lag: event log head vs projection watermark
	var head sql.NullInt64
	if err := qs.db.QueryRowContext(ctx, `SELECT MAX(sequence) FROM event_log.events`).Scan(&head); err != nil {
		return nil, err
	}
	watermark, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}
	if head.Valid {
		report.ProjectionLagSeqs = head.Int64 - watermark
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && len(report.ResolutionErrors) == 0
	return report, nil
}

// --- helpers ---

func (qs *QueryService) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(last_sequence, 0) FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}
