package event

import "strconv"

// Type discriminator for event payloads
type Type int32

const (
	TypeUnknown Type = iota
	TypeConditionPreparation
	TypeConditionResolution
	TypePositionSplit
	TypePositionsMerge
	TypePayoutRedemption
	TypeTransferSingle
	TypeTransferBatch
	TypeTokenRegistered
	TypeOrderFilled
	TypeQuestionPrepared
	TypePositionsConverted
)

// Meta carries the block provenance every on-chain event shares.
// Timestamp is the block timestamp in unix seconds, never wall-clock.
type Meta struct {
	BlockNumber     int64
	Timestamp       int64
	TransactionHash string
	LogIndex        int64
}

// ID returns the canonical "txHash-logIndex" event id, which doubles as
// the idempotency key and as the id of any record entity the event creates.
func (m Meta) ID() string {
	return m.TransactionHash + "-" + strconv.FormatInt(m.LogIndex, 10)
}

// Event is the interface all decoded chain events implement.
type Event interface {
	// EventID returns the stable "txHash-logIndex" dedup key.
	EventID() string

	// EventType returns the discriminator
	EventType() Type

	// EventMeta returns block provenance
	EventMeta() Meta
}

func (t Type) String() string {
	switch t {
	case TypeConditionPreparation:
		return "ConditionPreparation"
	case TypeConditionResolution:
		return "ConditionResolution"
	case TypePositionSplit:
		return "PositionSplit"
	case TypePositionsMerge:
		return "PositionsMerge"
	case TypePayoutRedemption:
		return "PayoutRedemption"
	case TypeTransferSingle:
		return "TransferSingle"
	case TypeTransferBatch:
		return "TransferBatch"
	case TypeTokenRegistered:
		return "TokenRegistered"
	case TypeOrderFilled:
		return "OrderFilled"
	case TypeQuestionPrepared:
		return "QuestionPrepared"
	case TypePositionsConverted:
		return "PositionsConverted"
	default:
		return "Unknown"
	}
}
