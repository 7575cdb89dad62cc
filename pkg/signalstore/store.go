// Package signalstore persists the append-only signal log for hosts.
//
// The store is a boundary component: the reducer never touches it. Hosts
// append signals as they arrive and Load the full log back as values for
// the pure fold. Entries are hash-chained so edits, deletions or
// reordering of the on-disk log are detectable; removing entries from the
// end of the log leaves a valid chain.
package signalstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/kaori-protocol/kaori/pkg/canonical"
	"github.com/kaori-protocol/kaori/pkg/flow"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS signals (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	signal_id   TEXT NOT NULL UNIQUE,
	signal_type TEXT NOT NULL,
	time        TEXT NOT NULL,
	agent_id    TEXT NOT NULL,
	object_id   TEXT NOT NULL,
	payload     TEXT NOT NULL,
	prev_hash   TEXT NOT NULL,
	entry_hash  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_signals_time ON signals(time, signal_id);
`

// Store is an append-only SQLite-backed signal log.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) a store at path. Use ":memory:" for an
// ephemeral store in tests.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("signalstore: open %s: %w", path, err)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("signalstore: init schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append writes a signal to the log, chaining its entry hash to the
// previous head. Duplicate signal ids are rejected by the unique index.
func (s *Store) Append(ctx context.Context, signal flow.Signal) error {
	if signal.SignalID == "" {
		id, err := signal.ComputeID()
		if err != nil {
			return fmt.Errorf("signalstore: signal id: %w", err)
		}
		signal.SignalID = id
	}

	payload, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("signalstore: encode signal: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("signalstore: begin: %w", err)
	}
	defer tx.Rollback()

	prevHash := "genesis"
	row := tx.QueryRowContext(ctx, `SELECT entry_hash FROM signals ORDER BY seq DESC LIMIT 1`)
	switch err := row.Scan(&prevHash); err {
	case nil, sql.ErrNoRows:
	default:
		return fmt.Errorf("signalstore: read head: %w", err)
	}

	entryHash := canonical.HashCombine(prevHash, signal.SignalID, canonical.SHA256Hex(payload))

	_, err = tx.ExecContext(ctx, `
		INSERT INTO signals (signal_id, signal_type, time, agent_id, object_id, payload, prev_hash, entry_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		signal.SignalID, signal.SignalType, canonical.Datetime(signal.Time),
		signal.AgentID, signal.ObjectID, string(payload), prevHash, entryHash)
	if err != nil {
		return fmt.Errorf("signalstore: append: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("signalstore: commit: %w", err)
	}

	s.logger.Debug("signal appended",
		slog.String("signal_id", signal.SignalID),
		slog.String("signal_type", signal.SignalType))
	return nil
}

// Load returns the full log in (time, signal_id) order, ready for the
// reducer.
func (s *Store) Load(ctx context.Context) ([]flow.Signal, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM signals ORDER BY time, signal_id`)
	if err != nil {
		return nil, fmt.Errorf("signalstore: load: %w", err)
	}
	defer rows.Close()

	var signals []flow.Signal
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("signalstore: scan: %w", err)
		}
		var signal flow.Signal
		if err := json.Unmarshal([]byte(payload), &signal); err != nil {
			return nil, fmt.Errorf("signalstore: decode: %w", err)
		}
		signals = append(signals, signal)
	}
	return signals, rows.Err()
}

// VerifyChain re-walks the hash chain and reports the first break, if
// any.
func (s *Store) VerifyChain(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT signal_id, payload, prev_hash, entry_hash FROM signals ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("signalstore: verify: %w", err)
	}
	defer rows.Close()

	expectedPrev := "genesis"
	seq := 0
	for rows.Next() {
		seq++
		var signalID, payload, prevHash, entryHash string
		if err := rows.Scan(&signalID, &payload, &prevHash, &entryHash); err != nil {
			return fmt.Errorf("signalstore: scan: %w", err)
		}
		if prevHash != expectedPrev {
			return fmt.Errorf("signalstore: chain break at entry %d: prev %q, expected %q", seq, prevHash, expectedPrev)
		}
		recomputed := canonical.HashCombine(prevHash, signalID, canonical.SHA256Hex([]byte(payload)))
		if recomputed != entryHash {
			return fmt.Errorf("signalstore: entry %d hash mismatch", seq)
		}
		expectedPrev = entryHash
	}
	return rows.Err()
}
