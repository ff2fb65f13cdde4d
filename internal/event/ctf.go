package event

import "math/big"

// Events emitted by the conditional tokens framework contract.

// ConditionPreparation announces a new condition (market).
type ConditionPreparation struct {
	Meta
	ConditionID      string
	Oracle           string
	QuestionID       string
	OutcomeSlotCount int
}

// ConditionResolution reports the oracle's payout vector for a condition.
type ConditionResolution struct {
	Meta
	ConditionID      string
	Oracle           string
	QuestionID       string
	OutcomeSlotCount int
	PayoutNumerators []*big.Int
}

// PositionSplit mints a full outcome-token set against collateral.
type PositionSplit struct {
	Meta
	Stakeholder string
	Collateral  string
	ConditionID string
	Partition   []*big.Int
	Amount      *big.Int
}

// PositionsMerge burns a full outcome-token set back into collateral.
type PositionsMerge struct {
	Meta
	Stakeholder string
	Collateral  string
	ConditionID string
	Partition   []*big.Int
	Amount      *big.Int
}

// PayoutRedemption exchanges winning outcome tokens for collateral after
// resolution.
type PayoutRedemption struct {
	Meta
	Redeemer    string
	Collateral  string
	ConditionID string
	IndexSets   []*big.Int
	Payout      *big.Int
}

// TransferSingle is the ERC-1155 single-token transfer. From/To equal to
// the zero address mean mint/burn respectively.
type TransferSingle struct {
	Meta
	Operator string
	From     string
	To       string
	TokenID  string
	Value    *big.Int
}

// TransferBatch is the ERC-1155 batch transfer. IDs and Values are
// parallel slices of equal length.
type TransferBatch struct {
	Meta
	Operator string
	From     string
	To       string
	TokenIDs []string
	Values   []*big.Int
}

func (e *ConditionPreparation) EventID() string  { return e.Meta.ID() }
func (e *ConditionPreparation) EventType() Type  { return TypeConditionPreparation }
func (e *ConditionPreparation) EventMeta() Meta  { return e.Meta }
func (e *ConditionResolution) EventID() string   { return e.Meta.ID() }
func (e *ConditionResolution) EventType() Type   { return TypeConditionResolution }
func (e *ConditionResolution) EventMeta() Meta   { return e.Meta }
func (e *PositionSplit) EventID() string         { return e.Meta.ID() }
func (e *PositionSplit) EventType() Type         { return TypePositionSplit }
func (e *PositionSplit) EventMeta() Meta         { return e.Meta }
func (e *PositionsMerge) EventID() string        { return e.Meta.ID() }
func (e *PositionsMerge) EventType() Type        { return TypePositionsMerge }
func (e *PositionsMerge) EventMeta() Meta        { return e.Meta }
func (e *PayoutRedemption) EventID() string      { return e.Meta.ID() }
func (e *PayoutRedemption) EventType() Type      { return TypePayoutRedemption }
func (e *PayoutRedemption) EventMeta() Meta      { return e.Meta }
func (e *TransferSingle) EventID() string        { return e.Meta.ID() }
func (e *TransferSingle) EventType() Type        { return TypeTransferSingle }
func (e *TransferSingle) EventMeta() Meta        { return e.Meta }
func (e *TransferBatch) EventID() string         { return e.Meta.ID() }
func (e *TransferBatch) EventType() Type         { return TypeTransferBatch }
func (e *TransferBatch) EventMeta() Meta         { return e.Meta }
