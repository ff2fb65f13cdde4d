package core

import (
	"strconv"

	"CTFIndexer/internal/entity"
)

// Lazy getOrCreate accessors. Creation side effects (counter bumps) live
// here so every handler that touches an entity pays them exactly once.

func (ix *Indexer) getOrCreateMarket(conditionID string) *entity.Market {
	if m, ok := ix.store.Market(conditionID); ok {
		return m
	}
	m := entity.NewMarket(conditionID)
	ix.store.PutMarket(m)
	return m
}

// getOrCreateUser ensures the user exists. A fresh user always bumps the
// global user total; the day's newUsers is only bumped when the caller
// supplies a block timestamp (handlers without daily accounting pass 0).
func (ix *Indexer) getOrCreateUser(address string, timestamp int64) *entity.User {
	if u, ok := ix.store.User(address); ok {
		return u
	}
	u := entity.NewUser(address)
	ix.store.PutUser(u)

	global := ix.getOrCreateGlobalStats()
	global.TotalUsers++
	ix.store.PutGlobalStats(global)

	if timestamp > 0 {
		day := ix.getOrCreateDailyStats(timestamp)
		day.NewUsers++
		ix.store.PutDailyStats(day)
	}
	return u
}

func (ix *Indexer) getOrCreateGlobalStats() *entity.GlobalStats {
	if g, ok := ix.store.GlobalStats(); ok {
		return g
	}
	g := entity.NewGlobalStats()
	ix.store.PutGlobalStats(g)
	return g
}

func (ix *Indexer) getOrCreateDailyStats(timestamp int64) *entity.DailyStats {
	bucket := entity.DayBucket(timestamp)
	id := strconv.FormatInt(bucket, 10)
	if d, ok := ix.store.DailyStats(id); ok {
		return d
	}
	d := &entity.DailyStats{
		ID:           id,
		DayTimestamp: bucket,
		Volume:       newBig(),
		Fees:         newBig(),
	}
	ix.store.PutDailyStats(d)
	return d
}

// getOrCreateParticipation creates the (user, market) participation row on
// first trade, bumping the market's unique trader count and the user's
// markets-traded count exactly once.
func (ix *Indexer) getOrCreateParticipation(user *entity.User, market *entity.Market, timestamp int64) *entity.MarketParticipation {
	id := entity.ParticipationID(user.ID, market.ID)
	if p, ok := ix.store.Participation(id); ok {
		return p
	}
	p := &entity.MarketParticipation{
		ID:                  id,
		User:                user.ID,
		Market:              market.ID,
		Volume:              newBig(),
		FirstTradeTimestamp: timestamp,
	}
	ix.store.PutParticipation(p)

	market.UniqueTraders++
	ix.store.PutMarket(market)
	user.MarketsTraded++
	ix.store.PutUser(user)
	return p
}

func (ix *Indexer) getOrCreatePosition(userID, marketID, tokenID string) *entity.Position {
	id := entity.PositionID(userID, marketID, tokenID)
	if p, ok := ix.store.Position(id); ok {
		return p
	}
	p := entity.NewPosition(userID, marketID, tokenID)
	ix.store.PutPosition(p)
	return p
}

// trackDailyActiveUser bumps the day's active user count the first time a
// user trades inside a day bucket. Any bucket change counts, including a
// trade landing in an earlier bucket than the last one seen. Must run
// BEFORE the caller overwrites user.LastTradeTimestamp, since the previous
// value is the dedup signal.
func (ix *Indexer) trackDailyActiveUser(user *entity.User, timestamp int64) {
	if user.LastTradeTimestamp == 0 ||
		entity.DayBucket(user.LastTradeTimestamp) != entity.DayBucket(timestamp) {
		day := ix.getOrCreateDailyStats(timestamp)
		day.ActiveUsers++
		ix.store.PutDailyStats(day)
	}
}
