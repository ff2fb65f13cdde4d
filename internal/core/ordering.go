package core

// OrderingMonitor watches the (blockNumber, logIndex) progression of the
// incoming stream. Regressions are tolerated since idempotency makes
// re-deliveries harmless, but they are counted so replays and misbehaving
// feeds show up in monitoring.
type OrderingMonitor struct {
	lastBlock    int64
	lastLogIndex int64
	seenAny      bool

	regressions int64
	gaps        int64
}

func NewOrderingMonitor() *OrderingMonitor {
	return &OrderingMonitor{}
}

// Observe records one event's position. Returns true if the event moved
// forward (or is the first), false on a regression.
func (om *OrderingMonitor) Observe(blockNumber, logIndex int64) bool {
	if !om.seenAny {
		om.seenAny = true
		om.lastBlock = blockNumber
		om.lastLogIndex = logIndex
		return true
	}

	if blockNumber < om.lastBlock ||
		(blockNumber == om.lastBlock && logIndex <= om.lastLogIndex) {
		om.regressions++
		return false
	}

	if blockNumber > om.lastBlock+1 {
		// Block gaps are normal (not every block emits events) but a large
		// jump is worth a tally.
		om.gaps++
	}

	om.lastBlock = blockNumber
	om.lastLogIndex = logIndex
	return true
}

// LastBlock returns the highest block observed so far.
func (om *OrderingMonitor) LastBlock() int64 {
	return om.lastBlock
}

// Regressions returns the count of backwards deliveries.
func (om *OrderingMonitor) Regressions() int64 {
	return om.regressions
}

// Restore primes the monitor when resuming mid-stream.
func (om *OrderingMonitor) Restore(blockNumber, logIndex int64) {
	om.seenAny = true
	om.lastBlock = blockNumber
	om.lastLogIndex = logIndex
}
