package event

import "math/big"

// Events emitted by the neg-risk adapter contract.

// QuestionPrepared announces a question inside a neg-risk multi-outcome
// group. Context only; no entity state derives from it.
type QuestionPrepared struct {
	Meta
	MarketID   string
	QuestionID string
	Index      int
}

// PositionsConverted converts no-positions across a neg-risk group. The
// balance effects arrive as separate transfer events.
type PositionsConverted struct {
	Meta
	Stakeholder string
	MarketID    string
	IndexSet    *big.Int
	Amount      *big.Int
}

func (e *QuestionPrepared) EventID() string   { return e.Meta.ID() }
func (e *QuestionPrepared) EventType() Type   { return TypeQuestionPrepared }
func (e *QuestionPrepared) EventMeta() Meta   { return e.Meta }
func (e *PositionsConverted) EventID() string { return e.Meta.ID() }
func (e *PositionsConverted) EventType() Type { return TypePositionsConverted }
func (e *PositionsConverted) EventMeta() Meta { return e.Meta }
