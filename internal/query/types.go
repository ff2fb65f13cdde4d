package query

// API response types. On-chain quantities are serialized as decimal
// strings: USDC amounts exceed float precision and token balances exceed
// int64. Every response carries as_of_sequence so clients can reason about
// projection freshness.

// MarketResponse represents a market for API queries.
type MarketResponse struct {
	ID                  string `json:"id"`
	QuestionID          string `json:"question_id,omitempty"`
	Oracle              string `json:"oracle,omitempty"`
	OutcomeSlotCount    int    `json:"outcome_slot_count"`
	CreationTimestamp   int64  `json:"creation_timestamp"`
	CreationBlock       int64  `json:"creation_block"`
	Resolved            bool   `json:"resolved"`
	ResolutionTimestamp int64  `json:"resolution_timestamp,omitempty"`
	PayoutNumerators    string `json:"payout_numerators,omitempty"`
	WinningOutcome      int    `json:"winning_outcome"`
	TradeCount          int64  `json:"trade_count"`
	TotalVolume         string `json:"total_volume"`
	UniqueTraders       int64  `json:"unique_traders"`
	AsOfSequence        int64  `json:"as_of_sequence"`
}

// UserResponse represents a trader for API queries.
type UserResponse struct {
	Address             string `json:"address"`
	TradeCount          int64  `json:"trade_count"`
	TotalVolume         string `json:"total_volume"`
	TotalFeesPaid       string `json:"total_fees_paid"`
	MarketsTraded       int64  `json:"markets_traded"`
	FirstTradeTimestamp int64  `json:"first_trade_timestamp"`
	LastTradeTimestamp  int64  `json:"last_trade_timestamp"`
	AsOfSequence        int64  `json:"as_of_sequence"`
}

// PositionResponse represents one (user, market, token) holding.
type PositionResponse struct {
	User         string `json:"user"`
	Market       string `json:"market"`
	TokenID      string `json:"token_id"`
	OutcomeIndex int    `json:"outcome_index"`
	Balance      string `json:"balance"`
	TotalBought  string `json:"total_bought"`
	TotalSold    string `json:"total_sold"`
	AvgBuyPrice  string `json:"avg_buy_price"`
	AvgSellPrice string `json:"avg_sell_price"`
	RealizedPnL  string `json:"realized_pnl"`
	TradeCount   int64  `json:"trade_count"`
	LastUpdated  int64  `json:"last_updated"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// TradeResponse represents an order fill for API queries.
type TradeResponse struct {
	ID           string `json:"id"`
	Market       string `json:"market"`
	Trader       string `json:"trader"`
	Counterparty string `json:"counterparty"`
	TokenID      string `json:"token_id"`
	OutcomeIndex int    `json:"outcome_index"`
	Side         string `json:"side"`
	Amount       string `json:"amount"`
	Price        string `json:"price"`
	Cost         string `json:"cost"`
	Fee          string `json:"fee"`
	Timestamp    int64  `json:"timestamp"`
	BlockNumber  int64  `json:"block_number"`
	TxHash       string `json:"tx_hash"`
	Exchange     string `json:"exchange"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// ParticipationResponse represents a (user, market) trading relationship.
type ParticipationResponse struct {
	User                string `json:"user"`
	Market              string `json:"market"`
	TradeCount          int64  `json:"trade_count"`
	Volume              string `json:"volume"`
	FirstTradeTimestamp int64  `json:"first_trade_timestamp"`
	LastTradeTimestamp  int64  `json:"last_trade_timestamp"`
	AsOfSequence        int64  `json:"as_of_sequence"`
}

// TokenResponse represents a token registry entry.
type TokenResponse struct {
	TokenID      string `json:"token_id"`
	Market       string `json:"market"`
	OutcomeIndex int    `json:"outcome_index"`
	IndexSet     string `json:"index_set"`
	Collateral   string `json:"collateral"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// GlobalStatsResponse is the singleton running-totals row.
type GlobalStatsResponse struct {
	TotalMarkets         int64  `json:"total_markets"`
	ResolvedMarkets      int64  `json:"resolved_markets"`
	TotalTrades          int64  `json:"total_trades"`
	TotalVolume          string `json:"total_volume"`
	TotalFees            string `json:"total_fees"`
	TotalUsers           int64  `json:"total_users"`
	LastUpdatedBlock     int64  `json:"last_updated_block"`
	LastUpdatedTimestamp int64  `json:"last_updated_timestamp"`
	AsOfSequence         int64  `json:"as_of_sequence"`
}

// DailyStatsResponse is one UTC day bucket.
type DailyStatsResponse struct {
	DayTimestamp    int64  `json:"day_timestamp"`
	NewMarkets      int64  `json:"new_markets"`
	ResolvedMarkets int64  `json:"resolved_markets"`
	TradeCount      int64  `json:"trade_count"`
	Volume          string `json:"volume"`
	Fees            string `json:"fees"`
	NewUsers        int64  `json:"new_users"`
	ActiveUsers     int64  `json:"active_users"`
	AsOfSequence    int64  `json:"as_of_sequence"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy         bool    `json:"is_healthy"`
	HashChainBreaks   []int64 `json:"hash_chain_breaks,omitempty"`
	ResolutionErrors  []string `json:"resolution_errors,omitempty"`
	ProjectionLagSeqs int64   `json:"projection_lag_sequences"`
}
