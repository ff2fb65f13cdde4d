package core

import (
	"math/big"

	"CTFIndexer/internal/entity"
	"CTFIndexer/internal/event"
)

// Handlers for conditional-tokens contract events.

// handleConditionPreparation creates the market. An existing entity under
// the same condition id (a placeholder from an early resolution or split)
// is overwritten with a fresh one; preparation is the authoritative birth.
func (ix *Indexer) handleConditionPreparation(e *event.ConditionPreparation) error {
	market := entity.NewMarket(e.ConditionID)
	market.QuestionID = e.QuestionID
	market.Oracle = e.Oracle
	market.OutcomeSlotCount = e.OutcomeSlotCount
	market.CreationTimestamp = e.Timestamp
	market.CreationBlock = e.BlockNumber
	market.CreationTxHash = e.TransactionHash
	ix.store.PutMarket(market)

	global := ix.getOrCreateGlobalStats()
	global.TotalMarkets++
	global.LastUpdatedBlock = e.BlockNumber
	global.LastUpdatedTimestamp = e.Timestamp
	ix.store.PutGlobalStats(global)

	day := ix.getOrCreateDailyStats(e.Timestamp)
	day.NewMarkets++
	ix.store.PutDailyStats(day)

	if ix.metrics != nil {
		ix.metrics.MarketsPrepared.Inc()
	}
	ix.logger.Info().
		Str("market", e.ConditionID).
		Int("outcomes", e.OutcomeSlotCount).
		Msg("market created")
	return nil
}

// handleConditionResolution stores the payout vector and derives the
// winning outcome as the lowest index holding the strictly largest payout.
// All-zero payouts leave the outcome undetermined.
func (ix *Indexer) handleConditionResolution(e *event.ConditionResolution) error {
	market, ok := ix.store.Market(e.ConditionID)
	if !ok {
		// Resolution before preparation should not happen on a healthy
		// stream, but a market is still materialized so the record lands.
		ix.logger.Warn().Str("market", e.ConditionID).Msg("resolution for unknown market")
		market = ix.getOrCreateMarket(e.ConditionID)
	}

	market.Resolved = true
	market.ResolutionTimestamp = e.Timestamp
	market.ResolutionBlock = e.BlockNumber
	market.PayoutNumerators = append([]*big.Int(nil), e.PayoutNumerators...)

	winning := -1
	maxPayout := new(big.Int)
	for i, p := range e.PayoutNumerators {
		if p.Cmp(maxPayout) > 0 {
			maxPayout = p
			winning = i
		}
	}
	if winning >= 0 {
		market.WinningOutcome = winning
	}
	ix.store.PutMarket(market)

	global := ix.getOrCreateGlobalStats()
	global.ResolvedMarkets++
	global.LastUpdatedBlock = e.BlockNumber
	global.LastUpdatedTimestamp = e.Timestamp
	ix.store.PutGlobalStats(global)

	day := ix.getOrCreateDailyStats(e.Timestamp)
	day.ResolvedMarkets++
	ix.store.PutDailyStats(day)

	if ix.metrics != nil {
		ix.metrics.MarketsResolved.Inc()
	}
	ix.logger.Info().
		Str("market", e.ConditionID).
		Int("winning_outcome", winning).
		Msg("market resolved")
	return nil
}

// handlePositionSplit records the mint of a full outcome set. The user is
// ensured first; a split against an unknown market is skipped because the
// record could not reference anything.
func (ix *Indexer) handlePositionSplit(e *event.PositionSplit) error {
	ix.getOrCreateUser(e.Stakeholder, 0)

	if _, ok := ix.store.Market(e.ConditionID); !ok {
		ix.logger.Warn().Str("market", e.ConditionID).Msg("split for unknown market")
		return nil
	}

	ix.store.PutSplit(&entity.Split{
		ID:              e.EventID(),
		Stakeholder:     e.Stakeholder,
		Market:          e.ConditionID,
		Amount:          e.Amount,
		Timestamp:       e.Timestamp,
		BlockNumber:     e.BlockNumber,
		TransactionHash: e.TransactionHash,
	})
	return nil
}

// handlePositionsMerge records the burn of a full outcome set back into
// collateral. Unlike splits, no market existence check is made.
func (ix *Indexer) handlePositionsMerge(e *event.PositionsMerge) error {
	ix.getOrCreateUser(e.Stakeholder, 0)

	ix.store.PutMerge(&entity.Merge{
		ID:              e.EventID(),
		Stakeholder:     e.Stakeholder,
		Market:          e.ConditionID,
		Amount:          e.Amount,
		Timestamp:       e.Timestamp,
		BlockNumber:     e.BlockNumber,
		TransactionHash: e.TransactionHash,
	})
	return nil
}

// handlePayoutRedemption records a post-resolution payout claim.
func (ix *Indexer) handlePayoutRedemption(e *event.PayoutRedemption) error {
	ix.getOrCreateUser(e.Redeemer, 0)

	ix.store.PutRedemption(&entity.Redemption{
		ID:              e.EventID(),
		Redeemer:        e.Redeemer,
		Market:          e.ConditionID,
		IndexSets:       append([]*big.Int(nil), e.IndexSets...),
		Payout:          e.Payout,
		Timestamp:       e.Timestamp,
		BlockNumber:     e.BlockNumber,
		TransactionHash: e.TransactionHash,
	})
	return nil
}

// handleTransferSingle applies one balance movement. Transfers are the
// source of truth for position balances; fills and splits only annotate.
func (ix *Indexer) handleTransferSingle(e *event.TransferSingle) error {
	ix.applyTransfer(e.From, e.To, e.TokenID, e.Value, e.Timestamp, true)
	return nil
}

// handleTransferBatch applies each parallel (id, value) pair.
func (ix *Indexer) handleTransferBatch(e *event.TransferBatch) error {
	for i, tokenID := range e.TokenIDs {
		var value *big.Int
		if i < len(e.Values) {
			value = e.Values[i]
		}
		ix.applyTransfer(e.From, e.To, tokenID, value, e.Timestamp, false)
	}
	return nil
}

// applyTransfer moves value between two positions. Tokens without a
// registry mapping are skipped outright: their market is unknown, and any
// value moved before registration is lost to the ledger (counted, not
// repaired). ensureUsers distinguishes the single path, which creates the
// user entities, from the batch path, which does not.
func (ix *Indexer) applyTransfer(from, to, tokenID string, value *big.Int, timestamp int64, ensureUsers bool) {
	marketID, ok := ix.registry.MarketForToken(tokenID)
	if !ok {
		ix.logger.Debug().Str("token", tokenID).Msg("transfer for unregistered token")
		if ix.metrics != nil {
			ix.metrics.UnregisteredTransfers.Inc()
		}
		return
	}
	if value == nil {
		value = new(big.Int)
	}

	mint := from == entity.ZeroAddress
	burn := to == entity.ZeroAddress

	if !mint {
		if ensureUsers {
			ix.getOrCreateUser(from, 0)
		}
		pos := ix.getOrCreatePosition(from, marketID, tokenID)
		pos.Balance = new(big.Int).Sub(pos.Balance, value)
		pos.LastUpdated = timestamp
		ix.registry.RefreshPositionOutcome(pos)
		ix.store.PutPosition(pos)
	}

	if !burn {
		if ensureUsers {
			ix.getOrCreateUser(to, 0)
		}
		pos := ix.getOrCreatePosition(to, marketID, tokenID)
		pos.Balance = new(big.Int).Add(pos.Balance, value)
		pos.LastUpdated = timestamp
		ix.registry.RefreshPositionOutcome(pos)
		ix.store.PutPosition(pos)
	}

	if mint {
		ix.supply.RecordMint(tokenID, value)
	}
	if burn {
		ix.supply.RecordBurn(tokenID, value)
	}
}
