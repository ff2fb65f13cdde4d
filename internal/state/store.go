// Package state holds the in-memory entity snapshot the reducer mutates.
// The store is not goroutine-safe; only the single core loop touches it.
package state

import (
	"CTFIndexer/internal/entity"
)

// Mutation is one dirty entity drained from the store after an event.
type Mutation struct {
	Kind   entity.Kind
	ID     string
	Entity entity.Entity
}

type dirtyKey struct {
	kind entity.Kind
	id   string
}

// Store keeps every live entity keyed by id, with read-your-writes
// semantics and dirty tracking. Put marks the entity for the next Flush;
// loading an entity and mutating it without Put does NOT mark it, the
// same way the original mappings only persisted on an explicit save.
type Store struct {
	markets        map[string]*entity.Market
	users          map[string]*entity.User
	positions      map[string]*entity.Position
	tokens         map[string]*entity.TokenMapping
	participations map[string]*entity.MarketParticipation
	globalStats    *entity.GlobalStats
	dailyStats     map[string]*entity.DailyStats
	trades         map[string]*entity.Trade
	splits         map[string]*entity.Split
	merges         map[string]*entity.Merge
	redemptions    map[string]*entity.Redemption

	dirty      map[dirtyKey]entity.Entity
	dirtyOrder []dirtyKey
}

func NewStore() *Store {
	return &Store{
		markets:        make(map[string]*entity.Market),
		users:          make(map[string]*entity.User),
		positions:      make(map[string]*entity.Position),
		tokens:         make(map[string]*entity.TokenMapping),
		participations: make(map[string]*entity.MarketParticipation),
		dailyStats:     make(map[string]*entity.DailyStats),
		trades:         make(map[string]*entity.Trade),
		splits:         make(map[string]*entity.Split),
		merges:         make(map[string]*entity.Merge),
		redemptions:    make(map[string]*entity.Redemption),
		dirty:          make(map[dirtyKey]entity.Entity),
	}
}

func (s *Store) markDirty(e entity.Entity) {
	k := dirtyKey{kind: e.EntityKind(), id: e.EntityID()}
	if _, seen := s.dirty[k]; !seen {
		s.dirtyOrder = append(s.dirtyOrder, k)
	}
	s.dirty[k] = e
}

// Flush drains the dirty set in first-touch order. Called once per event.
func (s *Store) Flush() []Mutation {
	if len(s.dirtyOrder) == 0 {
		return nil
	}
	out := make([]Mutation, 0, len(s.dirtyOrder))
	for _, k := range s.dirtyOrder {
		out = append(out, Mutation{Kind: k.kind, ID: k.id, Entity: s.dirty[k]})
	}
	s.dirty = make(map[dirtyKey]entity.Entity)
	s.dirtyOrder = s.dirtyOrder[:0]
	return out
}

// DirtyCount reports pending mutations without draining them.
func (s *Store) DirtyCount() int {
	return len(s.dirtyOrder)
}

func (s *Store) Market(id string) (*entity.Market, bool) {
	m, ok := s.markets[id]
	return m, ok
}

func (s *Store) PutMarket(m *entity.Market) {
	s.markets[m.ID] = m
	s.markDirty(m)
}

func (s *Store) User(id string) (*entity.User, bool) {
	u, ok := s.users[id]
	return u, ok
}

func (s *Store) PutUser(u *entity.User) {
	s.users[u.ID] = u
	s.markDirty(u)
}

func (s *Store) Position(id string) (*entity.Position, bool) {
	p, ok := s.positions[id]
	return p, ok
}

func (s *Store) PutPosition(p *entity.Position) {
	s.positions[p.ID] = p
	s.markDirty(p)
}

func (s *Store) Token(id string) (*entity.TokenMapping, bool) {
	tok, ok := s.tokens[id]
	return tok, ok
}

func (s *Store) PutToken(tok *entity.TokenMapping) {
	s.tokens[tok.ID] = tok
	s.markDirty(tok)
}

func (s *Store) Participation(id string) (*entity.MarketParticipation, bool) {
	p, ok := s.participations[id]
	return p, ok
}

func (s *Store) PutParticipation(p *entity.MarketParticipation) {
	s.participations[p.ID] = p
	s.markDirty(p)
}

func (s *Store) GlobalStats() (*entity.GlobalStats, bool) {
	if s.globalStats == nil {
		return nil, false
	}
	return s.globalStats, true
}

func (s *Store) PutGlobalStats(g *entity.GlobalStats) {
	s.globalStats = g
	s.markDirty(g)
}

func (s *Store) DailyStats(id string) (*entity.DailyStats, bool) {
	d, ok := s.dailyStats[id]
	return d, ok
}

func (s *Store) PutDailyStats(d *entity.DailyStats) {
	s.dailyStats[d.ID] = d
	s.markDirty(d)
}

func (s *Store) Trade(id string) (*entity.Trade, bool) {
	t, ok := s.trades[id]
	return t, ok
}

func (s *Store) PutTrade(t *entity.Trade) {
	s.trades[t.ID] = t
	s.markDirty(t)
}

func (s *Store) Split(id string) (*entity.Split, bool) {
	sp, ok := s.splits[id]
	return sp, ok
}

func (s *Store) PutSplit(sp *entity.Split) {
	s.splits[sp.ID] = sp
	s.markDirty(sp)
}

func (s *Store) Merge(id string) (*entity.Merge, bool) {
	m, ok := s.merges[id]
	return m, ok
}

func (s *Store) PutMerge(m *entity.Merge) {
	s.merges[m.ID] = m
	s.markDirty(m)
}

func (s *Store) Redemption(id string) (*entity.Redemption, bool) {
	r, ok := s.redemptions[id]
	return r, ok
}

func (s *Store) PutRedemption(r *entity.Redemption) {
	s.redemptions[r.ID] = r
	s.markDirty(r)
}

// Counts used by the periodic invariant check and by tests.
func (s *Store) MarketCount() int   { return len(s.markets) }
func (s *Store) UserCount() int     { return len(s.users) }
func (s *Store) PositionCount() int { return len(s.positions) }
func (s *Store) TokenCount() int    { return len(s.tokens) }
func (s *Store) TradeCount() int    { return len(s.trades) }

// EachPosition iterates all positions. Order is unspecified; callers that
// need determinism must sort.
func (s *Store) EachPosition(fn func(*entity.Position)) {
	for _, p := range s.positions {
		fn(p)
	}
}
