package entity

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// Fingerprints are pipe-joined field renderings in declaration order. They
// are the only representation fed into the state hash, so every field of a
// mutable entity must appear here and render identically for equal values.

func bigStr(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func decStr(v *apd.Decimal) string {
	if v == nil {
		return "0"
	}
	// apd renders equal values with equal exponents only after reduction.
	var r apd.Decimal
	r.Reduce(v)
	return r.Text('f')
}

func boolStr(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func bigSliceStr(vs []*big.Int) string {
	if len(vs) == 0 {
		return ""
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = bigStr(v)
	}
	return strings.Join(parts, ",")
}

func join(kind Kind, fields ...string) string {
	return string(kind) + "|" + strings.Join(fields, "|")
}

func (m *Market) Fingerprint() string {
	return join(KindMarket,
		m.ID,
		m.QuestionID,
		m.Oracle,
		strconv.Itoa(m.OutcomeSlotCount),
		strconv.FormatInt(m.CreationTimestamp, 10),
		strconv.FormatInt(m.CreationBlock, 10),
		m.CreationTxHash,
		boolStr(m.Resolved),
		strconv.FormatInt(m.ResolutionTimestamp, 10),
		strconv.FormatInt(m.ResolutionBlock, 10),
		bigSliceStr(m.PayoutNumerators),
		strconv.Itoa(m.WinningOutcome),
		strconv.FormatInt(m.TradeCount, 10),
		bigStr(m.TotalVolume),
		strconv.FormatInt(m.UniqueTraders, 10),
	)
}

func (u *User) Fingerprint() string {
	return join(KindUser,
		u.ID,
		strconv.FormatInt(u.TradeCount, 10),
		bigStr(u.TotalVolume),
		bigStr(u.TotalFeesPaid),
		strconv.FormatInt(u.MarketsTraded, 10),
		strconv.FormatInt(u.FirstTradeTimestamp, 10),
		strconv.FormatInt(u.FirstTradeBlock, 10),
		strconv.FormatInt(u.LastTradeTimestamp, 10),
	)
}

func (p *Position) Fingerprint() string {
	return join(KindPosition,
		p.ID,
		p.User,
		p.Market,
		p.TokenID,
		strconv.Itoa(p.OutcomeIndex),
		bigStr(p.Balance),
		bigStr(p.TotalBought),
		bigStr(p.TotalSold),
		decStr(p.AvgBuyPrice),
		decStr(p.AvgSellPrice),
		decStr(p.RealizedPnL),
		strconv.FormatInt(p.TradeCount, 10),
		strconv.FormatInt(p.LastUpdated, 10),
	)
}

func (t *TokenMapping) Fingerprint() string {
	return join(KindToken,
		t.ID,
		t.TokenID,
		t.Market,
		strconv.Itoa(t.OutcomeIndex),
		bigStr(t.IndexSet),
		t.Collateral,
		t.FirstSeenTxHash,
		strconv.FormatInt(t.FirstSeenBlock, 10),
		strconv.FormatInt(t.FirstSeenTimestamp, 10),
	)
}

func (mp *MarketParticipation) Fingerprint() string {
	return join(KindParticipation,
		mp.ID,
		mp.User,
		mp.Market,
		strconv.FormatInt(mp.TradeCount, 10),
		bigStr(mp.Volume),
		strconv.FormatInt(mp.FirstTradeTimestamp, 10),
		strconv.FormatInt(mp.LastTradeTimestamp, 10),
	)
}

func (g *GlobalStats) Fingerprint() string {
	return join(KindGlobalStats,
		g.ID,
		strconv.FormatInt(g.TotalMarkets, 10),
		strconv.FormatInt(g.ResolvedMarkets, 10),
		strconv.FormatInt(g.TotalTrades, 10),
		bigStr(g.TotalVolume),
		bigStr(g.TotalFees),
		strconv.FormatInt(g.TotalUsers, 10),
		strconv.FormatInt(g.LastUpdatedBlock, 10),
		strconv.FormatInt(g.LastUpdatedTimestamp, 10),
	)
}

func (d *DailyStats) Fingerprint() string {
	return join(KindDailyStats,
		d.ID,
		strconv.FormatInt(d.DayTimestamp, 10),
		strconv.FormatInt(d.NewMarkets, 10),
		strconv.FormatInt(d.ResolvedMarkets, 10),
		strconv.FormatInt(d.TradeCount, 10),
		bigStr(d.Volume),
		bigStr(d.Fees),
		strconv.FormatInt(d.NewUsers, 10),
		strconv.FormatInt(d.ActiveUsers, 10),
	)
}

func (t *Trade) Fingerprint() string {
	return join(KindTrade,
		t.ID,
		t.Market,
		t.Trader,
		t.Counterparty,
		t.TokenID,
		strconv.Itoa(t.OutcomeIndex),
		string(t.Side),
		bigStr(t.Amount),
		decStr(t.Price),
		bigStr(t.Cost),
		bigStr(t.Fee),
		strconv.FormatInt(t.Timestamp, 10),
		strconv.FormatInt(t.BlockNumber, 10),
		t.TransactionHash,
		strconv.FormatInt(t.LogIndex, 10),
		t.Exchange,
	)
}

func (s *Split) Fingerprint() string {
	return join(KindSplit,
		s.ID, s.Stakeholder, s.Market, bigStr(s.Amount),
		strconv.FormatInt(s.Timestamp, 10),
		strconv.FormatInt(s.BlockNumber, 10),
		s.TransactionHash,
	)
}

func (m *Merge) Fingerprint() string {
	return join(KindMerge,
		m.ID, m.Stakeholder, m.Market, bigStr(m.Amount),
		strconv.FormatInt(m.Timestamp, 10),
		strconv.FormatInt(m.BlockNumber, 10),
		m.TransactionHash,
	)
}

func (r *Redemption) Fingerprint() string {
	return join(KindRedemption,
		r.ID, r.Redeemer, r.Market, bigSliceStr(r.IndexSets), bigStr(r.Payout),
		strconv.FormatInt(r.Timestamp, 10),
		strconv.FormatInt(r.BlockNumber, 10),
		r.TransactionHash,
	)
}
