package entity

import (
	"math/big"

	"github.com/cockroachdb/apd/v3"
)

// Kind discriminates entity types in mutations and projections.
type Kind string

const (
	KindMarket        Kind = "market"
	KindUser          Kind = "user"
	KindPosition      Kind = "position"
	KindToken         Kind = "token"
	KindParticipation Kind = "participation"
	KindGlobalStats   Kind = "global_stats"
	KindDailyStats    Kind = "daily_stats"
	KindTrade         Kind = "trade"
	KindSplit         Kind = "split"
	KindMerge         Kind = "merge"
	KindRedemption    Kind = "redemption"
)

// Entity is implemented by every persisted record.
type Entity interface {
	EntityKind() Kind
	EntityID() string

	// Fingerprint returns a canonical string of all fields, fed into the
	// state hash. Same field values must always produce the same bytes.
	Fingerprint() string
}

// Market is a condition: a binary or multi-outcome prediction question.
// ID is the condition id (hex).
type Market struct {
	ID                  string
	QuestionID          string
	Oracle              string
	OutcomeSlotCount    int
	CreationTimestamp   int64
	CreationBlock       int64
	CreationTxHash      string
	Resolved            bool
	ResolutionTimestamp int64
	ResolutionBlock     int64
	PayoutNumerators    []*big.Int // nil until resolved
	WinningOutcome      int        // -1 until derived from payouts
	TradeCount          int64
	TotalVolume         *big.Int
	UniqueTraders       int64
}

// NewMarket returns a market with zeroed aggregates and empty metadata.
func NewMarket(id string) *Market {
	return &Market{
		ID:             id,
		WinningOutcome: -1,
		TotalVolume:    new(big.Int),
	}
}

// User is an address that appeared in any event. ID is the address (hex).
type User struct {
	ID                  string
	TradeCount          int64
	TotalVolume         *big.Int
	TotalFeesPaid       *big.Int
	MarketsTraded       int64
	FirstTradeTimestamp int64 // 0 = never traded
	FirstTradeBlock     int64
	LastTradeTimestamp  int64
}

func NewUser(id string) *User {
	return &User{
		ID:            id,
		TotalVolume:   new(big.Int),
		TotalFeesPaid: new(big.Int),
	}
}

// Position tracks one (user, market, token) balance and cost basis.
// ID is "user-market-tokenId". Balance is signed and never clamped.
type Position struct {
	ID           string
	User         string
	Market       string
	TokenID      string
	OutcomeIndex int
	Balance      *big.Int
	TotalBought  *big.Int
	TotalSold    *big.Int
	AvgBuyPrice  *apd.Decimal
	AvgSellPrice *apd.Decimal
	RealizedPnL  *apd.Decimal
	TradeCount   int64
	LastUpdated  int64
}

// PositionID builds the canonical position key.
func PositionID(user, market, tokenID string) string {
	return user + "-" + market + "-" + tokenID
}

func NewPosition(user, market, tokenID string) *Position {
	return &Position{
		ID:           PositionID(user, market, tokenID),
		User:         user,
		Market:       market,
		TokenID:      tokenID,
		Balance:      new(big.Int),
		TotalBought:  new(big.Int),
		TotalSold:    new(big.Int),
		AvgBuyPrice:  new(apd.Decimal),
		AvgSellPrice: new(apd.Decimal),
		RealizedPnL:  new(apd.Decimal),
	}
}

// TokenMapping is the write-once token registry row: outcome token id to
// (market, outcome index, index set). ID is the token id (hex).
type TokenMapping struct {
	ID                 string
	TokenID            string
	Market             string
	OutcomeIndex       int
	IndexSet           *big.Int
	Collateral         string
	FirstSeenTxHash    string
	FirstSeenBlock     int64
	FirstSeenTimestamp int64
}

// MarketParticipation exists once per (user, market) pair that has traded.
// ID is "user-market".
type MarketParticipation struct {
	ID                  string
	User                string
	Market              string
	TradeCount          int64
	Volume              *big.Int
	FirstTradeTimestamp int64
	LastTradeTimestamp  int64
}

// ParticipationID builds the canonical participation key.
func ParticipationID(user, market string) string {
	return user + "-" + market
}

// GlobalStats is the singleton running-total row.
type GlobalStats struct {
	ID                   string
	TotalMarkets         int64
	ResolvedMarkets      int64
	TotalTrades          int64
	TotalVolume          *big.Int
	TotalFees            *big.Int
	TotalUsers           int64
	LastUpdatedBlock     int64
	LastUpdatedTimestamp int64
}

func NewGlobalStats() *GlobalStats {
	return &GlobalStats{
		ID:          GlobalStatsID,
		TotalVolume: new(big.Int),
		TotalFees:   new(big.Int),
	}
}

// DailyStats aggregates one UTC day bucket. ID is the bucket start
// timestamp rendered as a decimal string.
type DailyStats struct {
	ID              string
	DayTimestamp    int64
	NewMarkets      int64
	ResolvedMarkets int64
	TradeCount      int64
	Volume          *big.Int
	Fees            *big.Int
	NewUsers        int64
	ActiveUsers     int64
}

// Trade is an immutable order-fill record. ID is "txHash-logIndex".
type Trade struct {
	ID              string
	Market          string
	Trader          string
	Counterparty    string
	TokenID         string
	OutcomeIndex    int
	Side            Side
	Amount          *big.Int // outcome-token shares
	Price           *apd.Decimal
	Cost            *big.Int // collateral (USDC)
	Fee             *big.Int
	Timestamp       int64
	BlockNumber     int64
	TransactionHash string
	LogIndex        int64
	Exchange        string
}

// Split is an immutable position-split (mint) record.
type Split struct {
	ID              string
	Stakeholder     string
	Market          string
	Amount          *big.Int
	Timestamp       int64
	BlockNumber     int64
	TransactionHash string
}

// Merge is an immutable positions-merge (burn) record.
type Merge struct {
	ID              string
	Stakeholder     string
	Market          string
	Amount          *big.Int
	Timestamp       int64
	BlockNumber     int64
	TransactionHash string
}

// Redemption is an immutable payout-redemption record.
type Redemption struct {
	ID              string
	Redeemer        string
	Market          string
	IndexSets       []*big.Int
	Payout          *big.Int
	Timestamp       int64
	BlockNumber     int64
	TransactionHash string
}

func (m *Market) EntityKind() Kind              { return KindMarket }
func (m *Market) EntityID() string              { return m.ID }
func (u *User) EntityKind() Kind                { return KindUser }
func (u *User) EntityID() string                { return u.ID }
func (p *Position) EntityKind() Kind            { return KindPosition }
func (p *Position) EntityID() string            { return p.ID }
func (t *TokenMapping) EntityKind() Kind        { return KindToken }
func (t *TokenMapping) EntityID() string        { return t.ID }
func (mp *MarketParticipation) EntityKind() Kind { return KindParticipation }
func (mp *MarketParticipation) EntityID() string { return mp.ID }
func (g *GlobalStats) EntityKind() Kind         { return KindGlobalStats }
func (g *GlobalStats) EntityID() string         { return g.ID }
func (d *DailyStats) EntityKind() Kind          { return KindDailyStats }
func (d *DailyStats) EntityID() string          { return d.ID }
func (t *Trade) EntityKind() Kind               { return KindTrade }
func (t *Trade) EntityID() string               { return t.ID }
func (s *Split) EntityKind() Kind               { return KindSplit }
func (s *Split) EntityID() string               { return s.ID }
func (m *Merge) EntityKind() Kind               { return KindMerge }
func (m *Merge) EntityID() string               { return m.ID }
func (r *Redemption) EntityKind() Kind          { return KindRedemption }
func (r *Redemption) EntityID() string          { return r.ID }
