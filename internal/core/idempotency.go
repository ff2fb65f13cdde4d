package core

import (
	"container/list"
	"fmt"
)

// IdempotencyChecker implements two-tier deduplication over the
// "eventType:txHash-logIndex" composite key. Tier 1 is an in-memory LRU
// covering the recent window; tier 2 is the event log in Postgres for
// keys that aged out of the LRU (deep replays).
type IdempotencyChecker struct {
	lru       *keyLRU
	dbChecker DBIdempotencyChecker

	// dedup tallies, read by the periodic stats log
	duplicatesLRU int64
	duplicatesDB  int64
	tier2Errors   int64
}

// DBIdempotencyChecker is the interface for the Postgres dedup lookup
type DBIdempotencyChecker interface {
	IsDuplicate(eventType string, eventID string) (bool, error)
}

func NewIdempotencyChecker(capacity int, dbChecker DBIdempotencyChecker) *IdempotencyChecker {
	return &IdempotencyChecker{
		lru:       newKeyLRU(capacity),
		dbChecker: dbChecker,
	}
}

// IsDuplicate checks if the event has already been applied (two-tier lookup)
func (ic *IdempotencyChecker) IsDuplicate(eventType string, eventID string) bool {
	compositeKey := fmt.Sprintf("%s:%s", eventType, eventID)

	// Tier 1: LRU check (hot path)
	if ic.lru.Contains(compositeKey) {
		ic.duplicatesLRU++
		return true
	}

	// Tier 2: Postgres check (cold path)
	if ic.dbChecker != nil {
		isDup, err := ic.dbChecker.IsDuplicate(eventType, eventID)
		if err != nil {
			// Conservative: a DB failure must not stall ingestion, assume new.
			// The event log's unique key absorbs the rare double-write.
			ic.tier2Errors++
			return false
		}
		if isDup {
			ic.duplicatesDB++
			ic.lru.Add(compositeKey)
			return true
		}
	}

	return false
}

// MarkProcessed adds the key to the LRU after successful processing
func (ic *IdempotencyChecker) MarkProcessed(eventType string, eventID string) {
	ic.lru.Add(fmt.Sprintf("%s:%s", eventType, eventID))
}

// Warm loads a batch of composite keys, typically the newest rows of the
// event log, so restarts don't pay a DB round trip per recent event.
func (ic *IdempotencyChecker) Warm(keys []string) {
	for _, key := range keys {
		ic.lru.Add(key)
	}
}

// Duplicates returns (lru hits, db hits) for monitoring.
func (ic *IdempotencyChecker) Duplicates() (int64, int64) {
	return ic.duplicatesLRU, ic.duplicatesDB
}

// Tier2Errors returns the count of failed DB lookups.
func (ic *IdempotencyChecker) Tier2Errors() int64 {
	return ic.tier2Errors
}

// keyLRU is an LRU set of composite keys.
// Not thread-safe; only the single-threaded core touches it.
type keyLRU struct {
	capacity  int
	cache     map[string]*list.Element
	order     *list.List
	evictions int64
}

func newKeyLRU(capacity int) *keyLRU {
	return &keyLRU{
		capacity: capacity,
		cache:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// Contains checks membership and promotes the key to most recently used.
func (lru *keyLRU) Contains(key string) bool {
	elem, exists := lru.cache[key]
	if exists {
		lru.order.MoveToFront(elem)
		return true
	}
	return false
}

// Add inserts a key (or promotes if present), evicting the oldest entry
// when over capacity.
func (lru *keyLRU) Add(key string) {
	if elem, exists := lru.cache[key]; exists {
		lru.order.MoveToFront(elem)
		return
	}

	elem := lru.order.PushFront(key)
	lru.cache[key] = elem

	if lru.order.Len() > lru.capacity {
		oldest := lru.order.Back()
		if oldest != nil {
			lru.order.Remove(oldest)
			delete(lru.cache, oldest.Value.(string))
			lru.evictions++
		}
	}
}

func (lru *keyLRU) Size() int        { return lru.order.Len() }
func (lru *keyLRU) Evictions() int64 { return lru.evictions }
