package core

import (
	"math/big"

	"github.com/cockroachdb/apd/v3"

	"CTFIndexer/internal/entity"
	"CTFIndexer/internal/event"
	"CTFIndexer/internal/pricing"
)

// Handlers for order-book exchange events (both deployments).

// handleTokenRegistered maps token0 to outcome 0 and token1 to outcome 1
// of the condition, then ensures the market entity exists.
func (ix *Indexer) handleTokenRegistered(e *event.TokenRegistered) error {
	ix.registry.Register(e.Token0, e.ConditionID, 0, e.Meta)
	ix.registry.Register(e.Token1, e.ConditionID, 1, e.Meta)
	ix.getOrCreateMarket(e.ConditionID)

	if ix.metrics != nil {
		ix.metrics.TokensRegistered.WithLabelValues(e.Exchange.String()).Inc()
	}
	ix.logger.Info().
		Str("market", e.ConditionID).
		Str("token0", e.Token0).
		Str("token1", e.Token1).
		Str("exchange", e.Exchange.String()).
		Msg("tokens registered")
	return nil
}

// fill is an OrderFilled resolved against the registry: which asset id was
// the outcome token, and therefore which way the taker traded.
type fill struct {
	tokenID      string
	marketID     string
	outcomeIndex int
	side         entity.Side
	shareAmount  *big.Int
	usdcAmount   *big.Int
}

// resolveFill checks the maker asset first, then the taker asset. The
// maker holding the outcome token means the taker bought. Neither side
// registered means the fill cannot be attributed and is dropped.
func (ix *Indexer) resolveFill(e *event.OrderFilled) (fill, bool) {
	if tok, ok := ix.registry.Get(e.MakerAssetID); ok {
		return fill{
			tokenID:      e.MakerAssetID,
			marketID:     tok.Market,
			outcomeIndex: tok.OutcomeIndex,
			side:         entity.SideBuy,
			shareAmount:  e.MakerAmountFilled,
			usdcAmount:   e.TakerAmountFilled,
		}, true
	}
	if tok, ok := ix.registry.Get(e.TakerAssetID); ok {
		return fill{
			tokenID:      e.TakerAssetID,
			marketID:     tok.Market,
			outcomeIndex: tok.OutcomeIndex,
			side:         entity.SideSell,
			shareAmount:  e.TakerAmountFilled,
			usdcAmount:   e.MakerAmountFilled,
		}, true
	}
	return fill{}, false
}

func (ix *Indexer) handleOrderFilled(e *event.OrderFilled) error {
	f, ok := ix.resolveFill(e)
	if !ok {
		ix.logger.Warn().
			Str("maker_asset", e.MakerAssetID).
			Str("taker_asset", e.TakerAssetID).
			Msg("order filled with unregistered tokens")
		if ix.metrics != nil {
			ix.metrics.FillsDropped.Inc()
		}
		return nil
	}

	price := pricing.CalculatePrice(f.usdcAmount, f.shareAmount)
	ix.recordTrade(e, f, price)

	negRisk := e.Exchange == event.ExchangeNegRisk

	// User aggregates. The taker pays the fee; the maker's volume still
	// counts. The newer deployment additionally feeds the daily new-user
	// and active-user counters.
	userTs := int64(0)
	if negRisk {
		userTs = e.Timestamp
	}

	takerUser := ix.getOrCreateUser(e.Taker, userTs)
	if negRisk {
		ix.trackDailyActiveUser(takerUser, e.Timestamp)
	}
	ix.applyUserFill(takerUser, f.usdcAmount, e.Fee, e.Meta)

	makerUser := ix.getOrCreateUser(e.Maker, userTs)
	if negRisk {
		ix.trackDailyActiveUser(makerUser, e.Timestamp)
	}
	ix.applyUserFill(makerUser, f.usdcAmount, nil, e.Meta)

	// Per-market participation for both parties
	market, marketExists := ix.store.Market(f.marketID)
	if marketExists {
		ix.applyParticipationFill(takerUser, market, f.usdcAmount, e.Timestamp)
		ix.applyParticipationFill(makerUser, market, f.usdcAmount, e.Timestamp)

		market.TradeCount++
		market.TotalVolume = new(big.Int).Add(market.TotalVolume, f.usdcAmount)
		ix.store.PutMarket(market)
	}

	global := ix.getOrCreateGlobalStats()
	global.TotalTrades++
	global.TotalVolume = new(big.Int).Add(global.TotalVolume, f.usdcAmount)
	global.TotalFees = new(big.Int).Add(global.TotalFees, e.Fee)
	global.LastUpdatedBlock = e.BlockNumber
	global.LastUpdatedTimestamp = e.Timestamp
	ix.store.PutGlobalStats(global)

	day := ix.getOrCreateDailyStats(e.Timestamp)
	day.TradeCount++
	day.Volume = new(big.Int).Add(day.Volume, f.usdcAmount)
	day.Fees = new(big.Int).Add(day.Fees, e.Fee)
	ix.store.PutDailyStats(day)

	// Cost-basis tracking arrived with the newer deployment; legacy fills
	// never touch positions.
	if negRisk {
		ix.applyPositionFill(e.Taker, f, price, f.side, e.Timestamp)
		ix.applyPositionFill(e.Maker, f, price, opposite(f.side), e.Timestamp)
	}

	if ix.metrics != nil {
		ix.metrics.TradesRecorded.WithLabelValues(e.Exchange.String(), string(f.side)).Inc()
	}
	ix.logger.Info().
		Str("trader", e.Taker).
		Str("side", string(f.side)).
		Str("amount", f.shareAmount.String()).
		Str("price", price.Text('f')).
		Str("market", f.marketID).
		Str("exchange", e.Exchange.String()).
		Msg("trade")
	return nil
}

func (ix *Indexer) recordTrade(e *event.OrderFilled, f fill, price *apd.Decimal) {
	ix.store.PutTrade(&entity.Trade{
		ID:              e.EventID(),
		Market:          f.marketID,
		Trader:          e.Taker,
		Counterparty:    e.Maker,
		TokenID:         f.tokenID,
		OutcomeIndex:    f.outcomeIndex,
		Side:            f.side,
		Amount:          f.shareAmount,
		Price:           price,
		Cost:            f.usdcAmount,
		Fee:             e.Fee,
		Timestamp:       e.Timestamp,
		BlockNumber:     e.BlockNumber,
		TransactionHash: e.TransactionHash,
		LogIndex:        e.LogIndex,
		Exchange:        e.Exchange.String(),
	})
}

// applyUserFill applies one fill's aggregates to a user. fee is nil for
// the maker; only the taker pays.
func (ix *Indexer) applyUserFill(u *entity.User, usdcAmount, fee *big.Int, meta event.Meta) {
	u.TradeCount++
	u.TotalVolume = new(big.Int).Add(u.TotalVolume, usdcAmount)
	if fee != nil {
		u.TotalFeesPaid = new(big.Int).Add(u.TotalFeesPaid, fee)
	}
	if u.FirstTradeTimestamp == 0 {
		u.FirstTradeTimestamp = meta.Timestamp
		u.FirstTradeBlock = meta.BlockNumber
	}
	u.LastTradeTimestamp = meta.Timestamp
	ix.store.PutUser(u)
}

func (ix *Indexer) applyParticipationFill(u *entity.User, m *entity.Market, usdcAmount *big.Int, timestamp int64) {
	p := ix.getOrCreateParticipation(u, m, timestamp)
	p.TradeCount++
	p.Volume = new(big.Int).Add(p.Volume, usdcAmount)
	p.LastTradeTimestamp = timestamp
	ix.store.PutParticipation(p)
}

// applyPositionFill updates one party's cost basis. Buys fold into the buy
// VWAP; sells fold into the sell VWAP and realize PnL against the current
// average buy price (average-cost, not lot-tracking).
func (ix *Indexer) applyPositionFill(address string, f fill, price *apd.Decimal, side entity.Side, timestamp int64) {
	pos := ix.getOrCreatePosition(address, f.marketID, f.tokenID)
	pos.OutcomeIndex = f.outcomeIndex
	pos.TradeCount++
	pos.LastUpdated = timestamp

	if side == entity.SideBuy {
		pos.AvgBuyPrice = pricing.CalculateVWAP(pos.AvgBuyPrice, pos.TotalBought, price, f.shareAmount)
		pos.TotalBought = new(big.Int).Add(pos.TotalBought, f.shareAmount)
	} else {
		pos.AvgSellPrice = pricing.CalculateVWAP(pos.AvgSellPrice, pos.TotalSold, price, f.shareAmount)
		pos.TotalSold = new(big.Int).Add(pos.TotalSold, f.shareAmount)
		pnl := pricing.CalculateRealizedPnL(price, pos.AvgBuyPrice, f.shareAmount)
		var sum apd.Decimal
		if _, err := pricing.Ctx.Add(&sum, pos.RealizedPnL, pnl); err == nil {
			pos.RealizedPnL = &sum
		}
	}
	ix.store.PutPosition(pos)
}

func opposite(s entity.Side) entity.Side {
	if s == entity.SideBuy {
		return entity.SideSell
	}
	return entity.SideBuy
}

// handleQuestionPrepared is context only; the market itself is born from
// the condition preparation on the conditional tokens contract.
func (ix *Indexer) handleQuestionPrepared(e *event.QuestionPrepared) error {
	ix.logger.Info().
		Str("market", e.MarketID).
		Str("question", e.QuestionID).
		Int("index", e.Index).
		Msg("question prepared")
	return nil
}

// handlePositionsConverted ensures the user exists and logs. The balance
// effects arrive through the transfer events.
func (ix *Indexer) handlePositionsConverted(e *event.PositionsConverted) error {
	ix.getOrCreateUser(e.Stakeholder, 0)
	ix.logger.Info().
		Str("stakeholder", e.Stakeholder).
		Str("market", e.MarketID).
		Str("amount", e.Amount.String()).
		Msg("positions converted")
	return nil
}
