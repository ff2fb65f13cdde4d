package core

import (
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"CTFIndexer/internal/event"
	"CTFIndexer/internal/observability"
	"CTFIndexer/internal/registry"
	"CTFIndexer/internal/state"
)

// supplyCheckInterval is how often (in events) the balance-conservation
// invariant is re-verified across all positions.
const supplyCheckInterval = 1000

// Indexer is the single-threaded deterministic reducer. It owns the
// in-memory entity snapshot and is the only goroutine allowed to touch it.
type Indexer struct {
	sequence int64

	store    *state.Store
	registry *registry.Registry
	supply   *state.SupplyTracker
	hasher   *StateHasher

	idempotency *IdempotencyChecker
	ordering    *OrderingMonitor

	metrics *observability.Metrics
	logger  zerolog.Logger

	persistChan    chan<- Output
	projectionChan chan<- Output
}

// Output is one applied event plus everything downstream needs: the log
// envelope fields for the persistence worker and the drained entity
// mutations for the projection worker.
type Output struct {
	Sequence  int64
	EventType event.Type
	EventID   string
	Meta      event.Meta
	Payload   []byte
	StateHash [32]byte
	PrevHash  [32]byte
	Mutations []state.Mutation
}

func NewIndexer(
	startSequence int64,
	persistChan, projectionChan chan<- Output,
	dbChecker DBIdempotencyChecker,
	metrics *observability.Metrics,
) *Indexer {
	store := state.NewStore()
	return &Indexer{
		sequence:       startSequence,
		store:          store,
		registry:       registry.New(store),
		supply:         state.NewSupplyTracker(),
		hasher:         NewStateHasher(),
		idempotency:    NewIdempotencyChecker(1_000_000, dbChecker),
		ordering:       NewOrderingMonitor(),
		metrics:        metrics,
		logger:         observability.NewLogger("core"),
		persistChan:    persistChan,
		projectionChan: projectionChan,
	}
}

// ProcessEvent applies one event with no stored payload. Used by tests and
// callers that do not need the event log to carry the original wire bytes.
func (ix *Indexer) ProcessEvent(evt event.Event) error {
	return ix.ProcessEventWithPayload(evt, nil)
}

// ProcessEventWithPayload is the main processing pipeline. payload is the
// raw wire JSON, carried through to the event log so a replay can re-parse
// the exact bytes the producer sent.
func (ix *Indexer) ProcessEventWithPayload(evt event.Event, payload []byte) error {
	start := time.Now()
	eventType := evt.EventType().String()
	eventID := evt.EventID()
	meta := evt.EventMeta()

	// Step 1: idempotency (two-tier). Duplicates are skipped whole; no
	// aggregate may be applied twice.
	if ix.idempotency.IsDuplicate(eventType, eventID) {
		if ix.metrics != nil {
			ix.metrics.CoreEventsRejected.WithLabelValues(eventType, "duplicate").Inc()
		}
		return nil
	}

	// Step 2: ordering watermark. Regressions are tolerated (idempotency
	// already protects state) but counted.
	if !ix.ordering.Observe(meta.BlockNumber, meta.LogIndex) {
		ix.logger.Warn().
			Str("event_id", eventID).
			Int64("block", meta.BlockNumber).
			Int64("watermark", ix.ordering.LastBlock()).
			Msg("event behind stream watermark")
		if ix.metrics != nil {
			ix.metrics.OrderingRegressions.Inc()
		}
	}

	// Step 3: dispatch
	if err := ix.dispatchEvent(evt); err != nil {
		return fmt.Errorf("dispatch %s: %w", eventType, err)
	}

	// Step 4: drain the changeset and chain the state hash
	mutations := ix.store.Flush()
	prevHash := ix.hasher.GetPrevHash()
	stateHash := ix.hasher.ComputeHash(ix.sequence, computeStateDigest(mutations))

	// Step 5: periodic invariant check. A conservation failure means the
	// snapshot is corrupt; persisting it would poison every replica.
	if ix.sequence > 0 && ix.sequence%supplyCheckInterval == 0 {
		if err := ix.supply.Validate(ix.store); err != nil {
			panic(fmt.Sprintf("FATAL: %v (at seq %d)", err, ix.sequence))
		}
	}

	output := Output{
		Sequence:  ix.sequence,
		EventType: evt.EventType(),
		EventID:   eventID,
		Meta:      meta,
		Payload:   payload,
		StateHash: stateHash,
		PrevHash:  prevHash,
		Mutations: mutations,
	}

	// Step 6: emit. Persistence is a blocking send so no event is lost;
	// the projection channel drops on full and catches up from the log.
	ix.persistChan <- output
	select {
	case ix.projectionChan <- output:
	default:
		if ix.metrics != nil {
			ix.metrics.ProjectionDrops.Inc()
		}
	}

	// Step 7: mark processed
	ix.idempotency.MarkProcessed(eventType, eventID)
	ix.sequence++

	if ix.metrics != nil {
		ix.metrics.CoreEventsApplied.WithLabelValues(eventType).Inc()
		ix.metrics.CoreEventDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
		ix.metrics.CoreSequence.Set(float64(ix.sequence))
		ix.metrics.CoreLastBlock.Set(float64(ix.ordering.LastBlock()))
		ix.metrics.DedupLRUSize.Set(float64(ix.idempotency.lru.Size()))
	}

	return nil
}

func (ix *Indexer) dispatchEvent(evt event.Event) error {
	switch e := evt.(type) {
	case *event.ConditionPreparation:
		return ix.handleConditionPreparation(e)
	case *event.ConditionResolution:
		return ix.handleConditionResolution(e)
	case *event.PositionSplit:
		return ix.handlePositionSplit(e)
	case *event.PositionsMerge:
		return ix.handlePositionsMerge(e)
	case *event.PayoutRedemption:
		return ix.handlePayoutRedemption(e)
	case *event.TransferSingle:
		return ix.handleTransferSingle(e)
	case *event.TransferBatch:
		return ix.handleTransferBatch(e)
	case *event.TokenRegistered:
		return ix.handleTokenRegistered(e)
	case *event.OrderFilled:
		return ix.handleOrderFilled(e)
	case *event.QuestionPrepared:
		return ix.handleQuestionPrepared(e)
	case *event.PositionsConverted:
		return ix.handlePositionsConverted(e)
	default:
		return fmt.Errorf("unknown event type: %T", evt)
	}
}

// computeStateDigest renders the mutated entities' fingerprints in sorted
// (kind, id) order. Sorting decouples the digest from handler-internal
// touch order.
func computeStateDigest(mutations []state.Mutation) []byte {
	if len(mutations) == 0 {
		return nil
	}
	fps := make([]string, 0, len(mutations))
	for _, m := range mutations {
		fps = append(fps, m.Entity.Fingerprint())
	}
	sort.Strings(fps)

	digest := make([]byte, 0, len(fps)*64)
	for _, fp := range fps {
		digest = append(digest, byte(len(fp)>>8), byte(len(fp)))
		digest = append(digest, fp...)
	}
	return digest
}

// CheckInvariants runs the conservation check on demand (tests, shutdown).
func (ix *Indexer) CheckInvariants() error {
	return ix.supply.Validate(ix.store)
}

// Restore primes the sequence, hash chain and ordering watermark when
// resuming from a persisted checkpoint. The entity snapshot itself is
// rebuilt by replaying the event log through ProcessEvent.
func (ix *Indexer) Restore(sequence int64, stateHash [32]byte, lastBlock, lastLogIndex int64) {
	ix.sequence = sequence
	ix.hasher.SetPrevHash(stateHash)
	ix.ordering.Restore(lastBlock, lastLogIndex)
}

// WarmIdempotency loads recent composite keys into the LRU.
func (ix *Indexer) WarmIdempotency(keys []string) {
	ix.idempotency.Warm(keys)
}

// Sequence returns the next sequence number to assign.
func (ix *Indexer) Sequence() int64 {
	return ix.sequence
}

// StateHash returns the current chain tip.
func (ix *Indexer) StateHash() [32]byte {
	return ix.hasher.GetPrevHash()
}

// Store exposes the entity snapshot for tests and the on-demand checks.
func (ix *Indexer) Store() *state.Store {
	return ix.store
}

func newBig() *big.Int {
	return new(big.Int)
}
