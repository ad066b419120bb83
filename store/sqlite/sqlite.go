/*
Package sqlite provides a SQLite-backed contributor event log.

PURPOSE:
  Implements the durable side of the engine:
  - contributor.EventLog:  append-only events, replayed per contributor
  - stream.Source:         committed events by tag for downstream relays
  - stream.OffsetStore:    how far each consumer got on each tag

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on the events table
  - No DELETE statements on the events table
  - UNIQUE(aggregate_id, seq_nr) rejects a second writer racing on the
    same contributor (ErrConcurrentAppend)

KEY TABLES:
  events:           One row per event, payload as JSON, global position
  consumer_offsets: Last acknowledged position per (consumer, tag)

INDEXES:
  - idx_events_aggregate: replay of one contributor (hot path)
  - idx_events_tag:       relays reading one tag after a position

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of SQLite's single writer.
  A batch is one SQL transaction.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/events.db", stream.NewTagger(4))
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := contributor.NewService(aggregate, store, lg, m)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - contributor/service.go: EventLog interface
  - stream/stream.go: Source and OffsetStore interfaces
  - eventlog/memory.go: in-memory equivalent
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/warp/contribution-engine/contributor"
	"github.com/warp/contribution-engine/eventlog"
	"github.com/warp/contribution-engine/stream"
)

// Store is a SQLite event log.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	tagger stream.Tagger
}

// Open opens a SQLite database with foreign keys and WAL enabled. An
// in-memory database is pinned to one connection, otherwise every pooled
// connection would see its own empty database.
func Open(dbPath string) (*sql.DB, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory") {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// New opens dbPath and migrates the event log schema.
func New(dbPath string, tagger stream.Tagger) (*Store, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	s, err := NewWithDB(db, tagger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB migrates the event log schema on an already open database.
func NewWithDB(db *sql.DB, tagger stream.Tagger) (*Store, error) {
	s := &Store{db: db, tagger: tagger}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return s, nil
}

// DB exposes the connection so the read model can live in the same file.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Contributor events (append-only)
	CREATE TABLE IF NOT EXISTS events (
		position INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id TEXT NOT NULL UNIQUE,
		aggregate_id TEXT NOT NULL,
		seq_nr INTEGER NOT NULL,
		tag TEXT NOT NULL,
		kind TEXT NOT NULL,
		payload TEXT NOT NULL,
		committed_at TEXT NOT NULL,
		UNIQUE(aggregate_id, seq_nr)
	);

	CREATE INDEX IF NOT EXISTS idx_events_aggregate
		ON events(aggregate_id, seq_nr);
	CREATE INDEX IF NOT EXISTS idx_events_tag
		ON events(tag, position);

	-- Downstream consumer progress
	CREATE TABLE IF NOT EXISTS consumer_offsets (
		consumer TEXT NOT NULL,
		tag TEXT NOT NULL,
		position INTEGER NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (consumer, tag)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EVENT LOG (contributor.EventLog interface)
// =============================================================================

// Append adds events for one contributor atomically.
func (s *Store) Append(ctx context.Context, contributorID string, events []contributor.Event) error {
	if len(events) == 0 {
		return nil
	}
	for _, e := range events {
		if e.AggregateID() != contributorID {
			return fmt.Errorf("%w: %s in log of %s", eventlog.ErrAggregateMismatch, e.AggregateID(), contributorID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq_nr), 0) FROM events WHERE aggregate_id = ?",
		contributorID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("failed to read sequence: %w", err)
	}

	tag := s.tagger.Tag(contributorID)
	committed := time.Now().UTC().Format(time.RFC3339Nano)
	for _, e := range events {
		seq++
		if err := s.appendTx(ctx, tx, contributorID, seq, tag, committed, e); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) appendTx(ctx context.Context, tx *sql.Tx, contributorID string, seq int64, tag, committed string, e contributor.Event) error {
	kind, payload, err := contributor.MarshalEvent(e)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO events
		(event_id, aggregate_id, seq_nr, tag, kind, payload, committed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		uuid.NewString(),
		contributorID,
		seq,
		tag,
		string(kind),
		string(payload),
		committed,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return eventlog.ErrConcurrentAppend
		}
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// ReadAll returns a contributor's events in append order.
func (s *Store) ReadAll(ctx context.Context, contributorID string) ([]contributor.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT position, event_id, aggregate_id, seq_nr, tag, kind, payload, committed_at
		FROM events
		WHERE aggregate_id = ?
		ORDER BY seq_nr ASC
	`
	envs, err := s.queryEnvelopes(ctx, query, contributorID)
	if err != nil {
		return nil, err
	}

	events := make([]contributor.Event, len(envs))
	for i, env := range envs {
		events[i] = env.Event
	}
	return events, nil
}

// =============================================================================
// COMMITTED STREAM (stream.Source interface)
// =============================================================================

// ReadTagged returns up to limit envelopes of tag after position after.
func (s *Store) ReadTagged(ctx context.Context, tag string, after int64, limit int) ([]stream.Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT position, event_id, aggregate_id, seq_nr, tag, kind, payload, committed_at
		FROM events
		WHERE tag = ? AND position > ?
		ORDER BY position ASC
		LIMIT ?
	`
	return s.queryEnvelopes(ctx, query, tag, after, limit)
}

func (s *Store) queryEnvelopes(ctx context.Context, query string, args ...any) ([]stream.Envelope, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var envs []stream.Envelope
	for rows.Next() {
		var (
			env       stream.Envelope
			kind      string
			payload   string
			committed string
		)
		if err := rows.Scan(&env.Offset, &env.EventID, &env.AggregateID, &env.SeqNr, &env.Tag, &kind, &payload, &committed); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		env.Event, err = contributor.UnmarshalEvent(contributor.EventKind(kind), []byte(payload))
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", env.EventID, err)
		}
		env.CommittedAt, _ = time.Parse(time.RFC3339Nano, committed)
		envs = append(envs, env)
	}
	return envs, rows.Err()
}

// =============================================================================
// CONSUMER OFFSETS (stream.OffsetStore interface)
// =============================================================================

func (s *Store) LoadOffset(ctx context.Context, consumer, tag string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pos int64
	err := s.db.QueryRowContext(ctx,
		"SELECT position FROM consumer_offsets WHERE consumer = ? AND tag = ?",
		consumer, tag,
	).Scan(&pos)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load offset: %w", err)
	}
	return pos, nil
}

func (s *Store) SaveOffset(ctx context.Context, consumer, tag string, offset int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO consumer_offsets (consumer, tag, position, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(consumer, tag) DO UPDATE SET
			position = excluded.position,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, consumer, tag, offset, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save offset: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
