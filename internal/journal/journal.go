// Package journal appends signal transitions to SQLite off the hot path.
// The recompute pipeline only ever pushes onto a buffered channel; a single
// writer goroutine batches inserts into transactions.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"crypto-screener/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
	defaultBuffer     = 1024
)

// Entry is one recorded signal transition.
type Entry struct {
	Symbol     string
	From       model.Signal
	To         model.Signal
	Confidence int
	Status     string // trade-result status at transition time
	At         time.Time
}

// Config configures the journal.
type Config struct {
	DBPath string // e.g. "data/signals.db"
}

// Journal is a single-goroutine SQLite writer with transaction batching.
// Record never blocks the caller; transitions arriving faster than the
// writer drains are dropped with a log line.
type Journal struct {
	db *sql.DB
	ch chan Entry

	// OnDrop fires when a transition is discarded because the buffer is
	// full.
	OnDrop func(symbol string)
}

// New opens the database in WAL mode and creates the schema.
func New(cfg Config) (*Journal, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[journal] opened database at %s", cfg.DBPath)
	return &Journal{db: db, ch: make(chan Entry, defaultBuffer)}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS signal_transitions (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol      TEXT    NOT NULL,
			from_signal TEXT    NOT NULL,
			to_signal   TEXT    NOT NULL,
			confidence  INTEGER NOT NULL,
			status      TEXT    NOT NULL,
			ts          INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_transitions_symbol_ts
			ON signal_transitions (symbol, ts);
	`)
	return err
}

// DB returns the underlying sql.DB for health checks.
func (j *Journal) DB() *sql.DB { return j.db }

// Record enqueues one transition. Safe to call from the signal-change hook.
func (j *Journal) Record(e Entry) {
	select {
	case j.ch <- e:
	default:
		log.Printf("[journal] buffer full, dropping transition for %s", e.Symbol)
		if j.OnDrop != nil {
			j.OnDrop(e.Symbol)
		}
	}
}

// Run drains the buffer into batched transactions. Flushes every batchSize
// entries or every flushDelay, whichever comes first. Blocks until ctx is
// cancelled, then flushes what remains.
func (j *Journal) Run(ctx context.Context) {
	batch := make([]Entry, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := j.insertBatch(batch); err != nil {
			log.Printf("[journal] batch insert error: %v", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			j.drainInto(&batch)
			flush()
			return

		case e := <-j.ch:
			batch = append(batch, e)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

func (j *Journal) drainInto(batch *[]Entry) {
	for {
		select {
		case e := <-j.ch:
			*batch = append(*batch, e)
		default:
			return
		}
	}
}

func (j *Journal) insertBatch(entries []Entry) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO signal_transitions (symbol, from_signal, to_signal, confidence, status, ts)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(e.Symbol, string(e.From), string(e.To), e.Confidence, e.Status, e.At.Unix()); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Recent returns the latest transitions for a symbol, newest first.
func (j *Journal) Recent(symbol string, limit int) ([]Entry, error) {
	rows, err := j.db.Query(`
		SELECT symbol, from_signal, to_signal, confidence, status, ts
		FROM signal_transitions
		WHERE symbol = ?
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var from, to string
		var ts int64
		if err := rows.Scan(&e.Symbol, &from, &to, &e.Confidence, &e.Status, &ts); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		e.From = model.Signal(from)
		e.To = model.Signal(to)
		e.At = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
