// Package registry maps ERC-1155 outcome token ids to their condition and
// outcome index. The mapping is write-once: the first registration of a
// token id wins and later attempts are ignored, so replays cannot flip an
// established mapping.
package registry

import (
	"math/big"

	"CTFIndexer/internal/entity"
	"CTFIndexer/internal/event"
	"CTFIndexer/internal/state"
)

// Registry is a thin view over the store's token mappings.
type Registry struct {
	store *state.Store
}

func New(store *state.Store) *Registry {
	return &Registry{store: store}
}

// Register records tokenID -> (market, outcome). First registration wins;
// re-registering an already known token returns false and changes nothing.
func (r *Registry) Register(tokenID, market string, outcomeIndex int, meta event.Meta) bool {
	if tokenID == "" || tokenID == "0" {
		return false
	}
	if _, ok := r.store.Token(tokenID); ok {
		return false
	}
	r.store.PutToken(&entity.TokenMapping{
		ID:                 tokenID,
		TokenID:            tokenID,
		Market:             market,
		OutcomeIndex:       outcomeIndex,
		IndexSet:           new(big.Int).Lsh(big.NewInt(1), uint(outcomeIndex)),
		Collateral:         entity.USDCAddress,
		FirstSeenTxHash:    meta.TransactionHash,
		FirstSeenBlock:     meta.BlockNumber,
		FirstSeenTimestamp: meta.Timestamp,
	})
	return true
}

// Get returns the mapping for a token id, if registered.
func (r *Registry) Get(tokenID string) (*entity.TokenMapping, bool) {
	return r.store.Token(tokenID)
}

// IsRegistered reports whether a token id has a mapping.
func (r *Registry) IsRegistered(tokenID string) bool {
	_, ok := r.store.Token(tokenID)
	return ok
}

// MarketForToken returns the condition id a token belongs to.
func (r *Registry) MarketForToken(tokenID string) (string, bool) {
	tok, ok := r.store.Token(tokenID)
	if !ok {
		return "", false
	}
	return tok.Market, true
}

// OutcomeForToken returns the outcome index of a token.
func (r *Registry) OutcomeForToken(tokenID string) (int, bool) {
	tok, ok := r.store.Token(tokenID)
	if !ok {
		return 0, false
	}
	return tok.OutcomeIndex, true
}

// RefreshPositionOutcome re-reads the registry's outcome index onto a
// position. Called on every position touch so a position created before
// its token's registration heals once the mapping appears.
func (r *Registry) RefreshPositionOutcome(p *entity.Position) {
	if idx, ok := r.OutcomeForToken(p.TokenID); ok {
		p.OutcomeIndex = idx
	}
}
