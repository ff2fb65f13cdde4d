package state

import (
	"fmt"
	"math/big"

	"CTFIndexer/internal/entity"
)

// SupplyTracker maintains per-token minted and burned totals observed from
// zero-address transfers. Conservation: for every token, the sum of all
// position balances must equal minted - burned.
type SupplyTracker struct {
	minted map[string]*big.Int
	burned map[string]*big.Int
}

func NewSupplyTracker() *SupplyTracker {
	return &SupplyTracker{
		minted: make(map[string]*big.Int),
		burned: make(map[string]*big.Int),
	}
}

// RecordMint adds to the token's minted total.
func (st *SupplyTracker) RecordMint(tokenID string, amount *big.Int) {
	add(st.minted, tokenID, amount)
}

// RecordBurn adds to the token's burned total.
func (st *SupplyTracker) RecordBurn(tokenID string, amount *big.Int) {
	add(st.burned, tokenID, amount)
}

func add(m map[string]*big.Int, tokenID string, amount *big.Int) {
	if amount == nil {
		return
	}
	cur, ok := m[tokenID]
	if !ok {
		cur = new(big.Int)
		m[tokenID] = cur
	}
	cur.Add(cur, amount)
}

// NetSupply returns minted - burned for a token.
func (st *SupplyTracker) NetSupply(tokenID string) *big.Int {
	net := new(big.Int)
	if v, ok := st.minted[tokenID]; ok {
		net.Add(net, v)
	}
	if v, ok := st.burned[tokenID]; ok {
		net.Sub(net, v)
	}
	return net
}

// Validate checks balance conservation against the store: per token, the
// sum of position balances equals net supply. Tokens the tracker never
// saw minted or burned are skipped.
func (st *SupplyTracker) Validate(s *Store) error {
	sums := make(map[string]*big.Int)
	s.EachPosition(func(p *entity.Position) {
		add(sums, p.TokenID, p.Balance)
	})

	seen := make(map[string]struct{}, len(st.minted)+len(st.burned))
	for tok := range st.minted {
		seen[tok] = struct{}{}
	}
	for tok := range st.burned {
		seen[tok] = struct{}{}
	}

	for tok := range seen {
		net := st.NetSupply(tok)
		sum, ok := sums[tok]
		if !ok {
			sum = new(big.Int)
		}
		if net.Cmp(sum) != 0 {
			return fmt.Errorf("supply conservation violated for token %s: net supply %s, position sum %s",
				tok, net.String(), sum.String())
		}
	}
	return nil
}
