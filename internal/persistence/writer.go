package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// EventLogWriter writes applied events to Postgres using batch inserts.
// Multi-row INSERT is used as a portable alternative to COPY; switch to
// pgx CopyFrom if insert throughput ever becomes the bottleneck.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow represents a row in event_log.events. The payload column keeps
// the original wire JSON so replays re-parse the exact producer bytes.
type EventRow struct {
	Sequence    int64
	EventType   string
	EventID     string
	BlockNumber int64
	LogIndex    int64
	TxHash      string
	Timestamp   int64
	Payload     []byte
	StateHash   []byte
	PrevHash    []byte
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// WriteEventBatch writes a batch of events inside tx using multi-row INSERT.
// Conflicts on sequence are ignored so a replayed flush is idempotent.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.events
		(sequence, event_type, event_id, block_number, log_index, tx_hash, event_timestamp, payload, state_hash, prev_hash)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*10)

	for i, e := range events {
		base := i * 10
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10,
		))
		payload := e.Payload
		if payload == nil {
			payload = []byte("{}")
		}
		args = append(args,
			e.Sequence, e.EventType, e.EventID, e.BlockNumber, e.LogIndex,
			e.TxHash, e.Timestamp, payload, e.StateHash, e.PrevHash,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// LoadEventsFrom loads event rows from a given sequence for replay, in
// sequence order.
func (w *EventLogWriter) LoadEventsFrom(ctx context.Context, fromSequence int64, limit int) ([]EventRow, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT sequence, event_type, event_id, block_number, log_index, tx_hash, event_timestamp, payload, state_hash, prev_hash
		FROM event_log.events
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(
			&e.Sequence, &e.EventType, &e.EventID, &e.BlockNumber, &e.LogIndex,
			&e.TxHash, &e.Timestamp, &e.Payload, &e.StateHash, &e.PrevHash,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// LatestCheckpoint returns the resume point: the highest sequence plus the
// chain tip and stream watermark recorded with it. ok is false on an empty
// event log (cold start).
func (w *EventLogWriter) LatestCheckpoint(ctx context.Context) (sequence int64, stateHash []byte, block, logIndex int64, ok bool, err error) {
	row := w.db.QueryRowContext(ctx, `
		SELECT sequence, state_hash, block_number, log_index
		FROM event_log.events
		ORDER BY sequence DESC
		LIMIT 1
	`)
	err = row.Scan(&sequence, &stateHash, &block, &logIndex)
	if err == sql.ErrNoRows {
		return 0, nil, 0, 0, false, nil
	}
	if err != nil {
		return 0, nil, 0, 0, false, err
	}
	return sequence, stateHash, block, logIndex, true, nil
}

// RecentEventKeys returns the newest composite dedup keys for LRU warming.
func (w *EventLogWriter) RecentEventKeys(ctx context.Context, limit int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := w.db.QueryContext(ctx, `
		SELECT event_type, event_id
		FROM event_log.events
		ORDER BY sequence DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var eventType, eventID string
		if err := rows.Scan(&eventType, &eventID); err != nil {
			return nil, err
		}
		keys = append(keys, fmt.Sprintf("%s:%s", eventType, eventID))
	}
	return keys, rows.Err()
}
