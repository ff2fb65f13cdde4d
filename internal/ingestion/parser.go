package ingestion

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"CTFIndexer/internal/event"
)

// ParseRawEvent converts a RawEvent (JSON bytes + event type string) into a
// typed event.Event. The ingestion shell validates, parses, and converts raw
// events before sending them to the deterministic core.
func ParseRawEvent(raw RawEvent, eventType string) (event.Event, error) {
	switch eventType {
	case "ConditionPreparation":
		return parseConditionPreparation(raw.Data)
	case "ConditionResolution":
		return parseConditionResolution(raw.Data)
	case "PositionSplit":
		return parsePositionSplit(raw.Data)
	case "PositionsMerge":
		return parsePositionsMerge(raw.Data)
	case "PayoutRedemption":
		return parsePayoutRedemption(raw.Data)
	case "TransferSingle":
		return parseTransferSingle(raw.Data)
	case "TransferBatch":
		return parseTransferBatch(raw.Data)
	case "TokenRegistered":
		return parseTokenRegistered(raw.Data)
	case "OrderFilled":
		return parseOrderFilled(raw.Data)
	case "QuestionPrepared":
		return parseQuestionPrepared(raw.Data)
	case "PositionsConverted":
		return parsePositionsConverted(raw.Data)
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}

// --- JSON wire formats ---
// These structs represent the JSON payloads received from NATS.
// Field names use snake_case to match upstream producers. On-chain
// quantities (token ids, amounts, payouts) arrive as decimal strings
// because they exceed int64.

type metaJSON struct {
	BlockNumber     int64  `json:"block_number"`
	Timestamp       int64  `json:"timestamp"`
	TransactionHash string `json:"tx_hash"`
	LogIndex        int64  `json:"log_index"`
}

func (j metaJSON) toMeta() (event.Meta, error) {
	if j.TransactionHash == "" {
		return event.Meta{}, fmt.Errorf("missing tx_hash")
	}
	if !strings.HasPrefix(j.TransactionHash, "0x") {
		return event.Meta{}, fmt.Errorf("tx_hash %q is not hex", j.TransactionHash)
	}
	if j.BlockNumber < 0 || j.LogIndex < 0 {
		return event.Meta{}, fmt.Errorf("negative block_number or log_index")
	}
	return event.Meta{
		BlockNumber:     j.BlockNumber,
		Timestamp:       j.Timestamp,
		TransactionHash: strings.ToLower(j.TransactionHash),
		LogIndex:        j.LogIndex,
	}, nil
}

// parseBigInt parses a non-negative decimal string. Empty is rejected;
// producers always serialize a value, even zero.
func parseBigInt(field, s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("missing %s", field)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("parse %s: %q is not a decimal integer", field, s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("parse %s: negative value %q", field, s)
	}
	return v, nil
}

func parseBigInts(field string, ss []string) ([]*big.Int, error) {
	out := make([]*big.Int, len(ss))
	for i, s := range ss {
		v, err := parseBigInt(fmt.Sprintf("%s[%d]", field, i), s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseAddress(field, s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("missing %s", field)
	}
	if !strings.HasPrefix(s, "0x") {
		return "", fmt.Errorf("%s %q is not hex", field, s)
	}
	return strings.ToLower(s), nil
}

func parseExchange(s string) (event.Exchange, error) {
	switch s {
	case "legacy":
		return event.ExchangeLegacy, nil
	case "negrisk":
		return event.ExchangeNegRisk, nil
	default:
		return 0, fmt.Errorf("unknown exchange %q", s)
	}
}

type conditionPreparationJSON struct {
	metaJSON
	ConditionID      string `json:"condition_id"`
	Oracle           string `json:"oracle"`
	QuestionID       string `json:"question_id"`
	OutcomeSlotCount int    `json:"outcome_slot_count"`
}

func parseConditionPreparation(data []byte) (*event.ConditionPreparation, error) {
	var j conditionPreparationJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ConditionPreparation: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, fmt.Errorf("parse ConditionPreparation: %w", err)
	}
	conditionID, err := parseAddress("condition_id", j.ConditionID)
	if err != nil {
		return nil, fmt.Errorf("parse ConditionPreparation: %w", err)
	}
	oracle, err := parseAddress("oracle", j.Oracle)
	if err != nil {
		return nil, fmt.Errorf("parse ConditionPreparation: %w", err)
	}
	if j.OutcomeSlotCount < 2 {
		return nil, fmt.Errorf("parse ConditionPreparation: outcome_slot_count %d below 2", j.OutcomeSlotCount)
	}
	return &event.ConditionPreparation{
		Meta:             meta,
		ConditionID:      conditionID,
		Oracle:           oracle,
		QuestionID:       j.QuestionID,
		OutcomeSlotCount: j.OutcomeSlotCount,
	}, nil
}

type conditionResolutionJSON struct {
	metaJSON
	ConditionID      string   `json:"condition_id"`
	PayoutNumerators []string `json:"payout_numerators"`
}

func parseConditionResolution(data []byte) (*event.ConditionResolution, error) {
	var j conditionResolutionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ConditionResolution: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, fmt.Errorf("parse ConditionResolution: %w", err)
	}
	conditionID, err := parseAddress("condition_id", j.ConditionID)
	if err != nil {
		return nil, fmt.Errorf("parse ConditionResolution: %w", err)
	}
	if len(j.PayoutNumerators) == 0 {
		return nil, fmt.Errorf("parse ConditionResolution: empty payout_numerators")
	}
	payouts, err := parseBigInts("payout_numerators", j.PayoutNumerators)
	if err != nil {
		return nil, fmt.Errorf("parse ConditionResolution: %w", err)
	}
	return &event.ConditionResolution{
		Meta:             meta,
		ConditionID:      conditionID,
		PayoutNumerators: payouts,
	}, nil
}

type positionSplitJSON struct {
	metaJSON
	Stakeholder string   `json:"stakeholder"`
	Collateral  string   `json:"collateral_token"`
	ConditionID string   `json:"condition_id"`
	Partition   []string `json:"partition"`
	Amount      string   `json:"amount"`
}

func parsePositionSplit(data []byte) (*event.PositionSplit, error) {
	var j positionSplitJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PositionSplit: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, fmt.Errorf("parse PositionSplit: %w", err)
	}
	stakeholder, err := parseAddress("stakeholder", j.Stakeholder)
	if err != nil {
		return nil, fmt.Errorf("parse PositionSplit: %w", err)
	}
	amount, err := parseBigInt("amount", j.Amount)
	if err != nil {
		return nil, fmt.Errorf("parse PositionSplit: %w", err)
	}
	partition, err := parseBigInts("partition", j.Partition)
	if err != nil {
		return nil, fmt.Errorf("parse PositionSplit: %w", err)
	}
	return &event.PositionSplit{
		Meta:        meta,
		Stakeholder: stakeholder,
		Collateral:  strings.ToLower(j.Collateral),
		ConditionID: strings.ToLower(j.ConditionID),
		Partition:   partition,
		Amount:      amount,
	}, nil
}

type positionsMergeJSON struct {
	metaJSON
	Stakeholder string   `json:"stakeholder"`
	Collateral  string   `json:"collateral_token"`
	ConditionID string   `json:"condition_id"`
	Partition   []string `json:"partition"`
	Amount      string   `json:"amount"`
}

func parsePositionsMerge(data []byte) (*event.PositionsMerge, error) {
	var j positionsMergeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PositionsMerge: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, fmt.Errorf("parse PositionsMerge: %w", err)
	}
	stakeholder, err := parseAddress("stakeholder", j.Stakeholder)
	if err != nil {
		return nil, fmt.Errorf("parse PositionsMerge: %w", err)
	}
	amount, err := parseBigInt("amount", j.Amount)
	if err != nil {
		return nil, fmt.Errorf("parse PositionsMerge: %w", err)
	}
	partition, err := parseBigInts("partition", j.Partition)
	if err != nil {
		return nil, fmt.Errorf("parse PositionsMerge: %w", err)
	}
	return &event.PositionsMerge{
		Meta:        meta,
		Stakeholder: stakeholder,
		Collateral:  strings.ToLower(j.Collateral),
		ConditionID: strings.ToLower(j.ConditionID),
		Partition:   partition,
		Amount:      amount,
	}, nil
}

type payoutRedemptionJSON struct {
	metaJSON
	Redeemer    string   `json:"redeemer"`
	Collateral  string   `json:"collateral_token"`
	ConditionID string   `json:"condition_id"`
	IndexSets   []string `json:"index_sets"`
	Payout      string   `json:"payout"`
}

func parsePayoutRedemption(data []byte) (*event.PayoutRedemption, error) {
	var j payoutRedemptionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PayoutRedemption: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, fmt.Errorf("parse PayoutRedemption: %w", err)
	}
	redeemer, err := parseAddress("redeemer", j.Redeemer)
	if err != nil {
		return nil, fmt.Errorf("parse PayoutRedemption: %w", err)
	}
	payout, err := parseBigInt("payout", j.Payout)
	if err != nil {
		return nil, fmt.Errorf("parse PayoutRedemption: %w", err)
	}
	indexSets, err := parseBigInts("index_sets", j.IndexSets)
	if err != nil {
		return nil, fmt.Errorf("parse PayoutRedemption: %w", err)
	}
	return &event.PayoutRedemption{
		Meta:        meta,
		Redeemer:    redeemer,
		Collateral:  strings.ToLower(j.Collateral),
		ConditionID: strings.ToLower(j.ConditionID),
		IndexSets:   indexSets,
		Payout:      payout,
	}, nil
}

type transferSingleJSON struct {
	metaJSON
	Operator string `json:"operator"`
	From     string `json:"from"`
	To       string `json:"to"`
	TokenID  string `json:"token_id"`
	Value    string `json:"value"`
}

func parseTransferSingle(data []byte) (*event.TransferSingle, error) {
	var j transferSingleJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse TransferSingle: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, fmt.Errorf("parse TransferSingle: %w", err)
	}
	from, err := parseAddress("from", j.From)
	if err != nil {
		return nil, fmt.Errorf("parse TransferSingle: %w", err)
	}
	to, err := parseAddress("to", j.To)
	if err != nil {
		return nil, fmt.Errorf("parse TransferSingle: %w", err)
	}
	value, err := parseBigInt("value", j.Value)
	if err != nil {
		return nil, fmt.Errorf("parse TransferSingle: %w", err)
	}
	return &event.TransferSingle{
		Meta:     meta,
		Operator: strings.ToLower(j.Operator),
		From:     from,
		To:       to,
		TokenID:  j.TokenID,
		Value:    value,
	}, nil
}

type transferBatchJSON struct {
	metaJSON
	Operator string   `json:"operator"`
	From     string   `json:"from"`
	To       string   `json:"to"`
	TokenIDs []string `json:"token_ids"`
	Values   []string `json:"values"`
}

func parseTransferBatch(data []byte) (*event.TransferBatch, error) {
	var j transferBatchJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse TransferBatch: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, fmt.Errorf("parse TransferBatch: %w", err)
	}
	from, err := parseAddress("from", j.From)
	if err != nil {
		return nil, fmt.Errorf("parse TransferBatch: %w", err)
	}
	to, err := parseAddress("to", j.To)
	if err != nil {
		return nil, fmt.Errorf("parse TransferBatch: %w", err)
	}
	if len(j.TokenIDs) != len(j.Values) {
		return nil, fmt.Errorf("parse TransferBatch: %d token_ids vs %d values", len(j.TokenIDs), len(j.Values))
	}
	values, err := parseBigInts("values", j.Values)
	if err != nil {
		return nil, fmt.Errorf("parse TransferBatch: %w", err)
	}
	return &event.TransferBatch{
		Meta:     meta,
		Operator: strings.ToLower(j.Operator),
		From:     from,
		To:       to,
		TokenIDs: j.TokenIDs,
		Values:   values,
	}, nil
}

type tokenRegisteredJSON struct {
	metaJSON
	Exchange    string `json:"exchange"`
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	ConditionID string `json:"condition_id"`
}

func parseTokenRegistered(data []byte) (*event.TokenRegistered, error) {
	var j tokenRegisteredJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse TokenRegistered: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, fmt.Errorf("parse TokenRegistered: %w", err)
	}
	exchange, err := parseExchange(j.Exchange)
	if err != nil {
		return nil, fmt.Errorf("parse TokenRegistered: %w", err)
	}
	conditionID, err := parseAddress("condition_id", j.ConditionID)
	if err != nil {
		return nil, fmt.Errorf("parse TokenRegistered: %w", err)
	}
	return &event.TokenRegistered{
		Meta:        meta,
		Exchange:    exchange,
		Token0:      j.Token0,
		Token1:      j.Token1,
		ConditionID: conditionID,
	}, nil
}

type orderFilledJSON struct {
	metaJSON
	Exchange          string `json:"exchange"`
	OrderHash         string `json:"order_hash"`
	Maker             string `json:"maker"`
	Taker             string `json:"taker"`
	MakerAssetID      string `json:"maker_asset_id"`
	TakerAssetID      string `json:"taker_asset_id"`
	MakerAmountFilled string `json:"maker_amount_filled"`
	TakerAmountFilled string `json:"taker_amount_filled"`
	Fee               string `json:"fee"`
}

func parseOrderFilled(data []byte) (*event.OrderFilled, error) {
	var j orderFilledJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse OrderFilled: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, fmt.Errorf("parse OrderFilled: %w", err)
	}
	exchange, err := parseExchange(j.Exchange)
	if err != nil {
		return nil, fmt.Errorf("parse OrderFilled: %w", err)
	}
	maker, err := parseAddress("maker", j.Maker)
	if err != nil {
		return nil, fmt.Errorf("parse OrderFilled: %w", err)
	}
	taker, err := parseAddress("taker", j.Taker)
	if err != nil {
		return nil, fmt.Errorf("parse OrderFilled: %w", err)
	}
	makerAmount, err := parseBigInt("maker_amount_filled", j.MakerAmountFilled)
	if err != nil {
		return nil, fmt.Errorf("parse OrderFilled: %w", err)
	}
	takerAmount, err := parseBigInt("taker_amount_filled", j.TakerAmountFilled)
	if err != nil {
		return nil, fmt.Errorf("parse OrderFilled: %w", err)
	}
	fee, err := parseBigInt("fee", j.Fee)
	if err != nil {
		return nil, fmt.Errorf("parse OrderFilled: %w", err)
	}
	return &event.OrderFilled{
		Meta:              meta,
		Exchange:          exchange,
		OrderHash:         strings.ToLower(j.OrderHash),
		Maker:             maker,
		Taker:             taker,
		MakerAssetID:      j.MakerAssetID,
		TakerAssetID:      j.TakerAssetID,
		MakerAmountFilled: makerAmount,
		TakerAmountFilled: takerAmount,
		Fee:               fee,
	}, nil
}

type questionPreparedJSON struct {
	metaJSON
	MarketID   string `json:"market_id"`
	QuestionID string `json:"question_id"`
	Index      int    `json:"index"`
}

func parseQuestionPrepared(data []byte) (*event.QuestionPrepared, error) {
	var j questionPreparedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse QuestionPrepared: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, fmt.Errorf("parse QuestionPrepared: %w", err)
	}
	return &event.QuestionPrepared{
		Meta:       meta,
		MarketID:   strings.ToLower(j.MarketID),
		QuestionID: j.QuestionID,
		Index:      j.Index,
	}, nil
}

type positionsConvertedJSON struct {
	metaJSON
	Stakeholder string `json:"stakeholder"`
	MarketID    string `json:"market_id"`
	IndexSet    string `json:"index_set"`
	Amount      string `json:"amount"`
}

func parsePositionsConverted(data []byte) (*event.PositionsConverted, error) {
	var j positionsConvertedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PositionsConverted: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, fmt.Errorf("parse PositionsConverted: %w", err)
	}
	stakeholder, err := parseAddress("stakeholder", j.Stakeholder)
	if err != nil {
		return nil, fmt.Errorf("parse PositionsConverted: %w", err)
	}
	indexSet, err := parseBigInt("index_set", j.IndexSet)
	if err != nil {
		return nil, fmt.Errorf("parse PositionsConverted: %w", err)
	}
	amount, err := parseBigInt("amount", j.Amount)
	if err != nil {
		return nil, fmt.Errorf("parse PositionsConverted: %w", err)
	}
	return &event.PositionsConverted{
		Meta:        meta,
		Stakeholder: stakeholder,
		MarketID:    strings.ToLower(j.MarketID),
		IndexSet:    indexSet,
		Amount:      amount,
	}, nil
}
