// Package sqlite keeps a durable journal of emitted signals and the
// finalized candles behind them, for post-hoc review of signal quality.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"signals-systemv1/internal/model"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// Config configures the journal.
type Config struct {
	DBPath string // path to SQLite database file, e.g. "data/signals.db"
}

// Journal is a single-goroutine SQLite writer with transaction batching.
type Journal struct {
	db  *sql.DB
	in  chan model.Verdict
	cin chan model.Candle
}

// DB returns the underlying sql.DB for health checks.
func (j *Journal) DB() *sql.DB { return j.db }

// New opens the journal, enabling WAL mode and creating the schema.
func New(cfg Config) (*Journal, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer connection pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Journal{
		db:  db,
		in:  make(chan model.Verdict, 256),
		cin: make(chan model.Candle, 1024),
	}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS signals (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			asset       TEXT    NOT NULL,
			period      INTEGER NOT NULL,
			direction   TEXT    NOT NULL,
			confidence  INTEGER NOT NULL,
			rule        TEXT    NOT NULL,
			produced_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_signals_key ON signals (asset, period, produced_at);

		CREATE TABLE IF NOT EXISTS candles (
			asset   TEXT    NOT NULL,
			period  INTEGER NOT NULL,
			ts      INTEGER NOT NULL,
			open    REAL    NOT NULL,
			high    REAL    NOT NULL,
			low     REAL    NOT NULL,
			close   REAL    NOT NULL,
			volume  REAL,
			PRIMARY KEY (asset, period, ts)
		);
	`)
	return err
}

// OnSignal implements the engine's sink interface: the verdict is
// queued for the batching writer. A full queue drops the entry rather
// than blocking the engine.
func (j *Journal) OnSignal(_ context.Context, v model.Verdict) error {
	select {
	case j.in <- v:
	default:
		log.Printf("[sqlite] journal queue full, dropping signal %s/%d", v.Asset, v.Period)
	}
	return nil
}

// RecordCandle queues one finalized candle for the audit table.
func (j *Journal) RecordCandle(c model.Candle) {
	select {
	case j.cin <- c:
	default:
	}
}

// Run drains the queues in batched transactions. Flushes every
// defaultBatchSize entries or every defaultFlushDelay, whichever first.
// Blocks until ctx is cancelled.
func (j *Journal) Run(ctx context.Context) {
	verdicts := make([]model.Verdict, 0, defaultBatchSize)
	candles := make([]model.Candle, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(verdicts) > 0 {
			start := time.Now()
			if err := j.insertSignals(verdicts); err != nil {
				log.Printf("[sqlite] signal batch insert error: %v", err)
			} else {
				log.Printf("[sqlite] committed %d signals in %v", len(verdicts), time.Since(start))
			}
			verdicts = verdicts[:0]
		}
		if len(candles) > 0 {
			if err := j.insertCandles(candles); err != nil {
				log.Printf("[sqlite] candle batch insert error: %v", err)
			}
			candles = candles[:0]
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case v := <-j.in:
			verdicts = append(verdicts, v)
			if len(verdicts) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case c := <-j.cin:
			candles = append(candles, c)
			if len(candles) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

func (j *Journal) insertSignals(vs []model.Verdict) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO signals (asset, period, direction, confidence, rule, produced_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, v := range vs {
		_, err := stmt.Exec(v.Asset, v.Period, string(v.Direction), v.Confidence, string(v.Rule), v.ProducedAt.Unix())
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

func (j *Journal) insertCandles(cs []model.Candle) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO candles (asset, period, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, c := range cs {
		_, err := stmt.Exec(c.Asset, c.Period, c.TS, c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// RecentSignals returns up to limit most recent signals for one pair,
// newest first.
func (j *Journal) RecentSignals(asset string, period int, limit int) ([]model.Verdict, error) {
	rows, err := j.db.Query(`
		SELECT asset, period, direction, confidence, rule, produced_at
		FROM signals
		WHERE asset = ? AND period = ?
		ORDER BY produced_at DESC, id DESC
		LIMIT ?
	`, asset, period, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query signals: %w", err)
	}
	defer rows.Close()

	var out []model.Verdict
	for rows.Next() {
		var v model.Verdict
		var direction, rule string
		var producedAt int64
		if err := rows.Scan(&v.Asset, &v.Period, &direction, &v.Confidence, &rule, &producedAt); err != nil {
			return nil, fmt.Errorf("sqlite scan signals: %w", err)
		}
		v.Direction = model.Direction(direction)
		v.Rule = model.Rule(rule)
		v.ProducedAt = time.Unix(producedAt, 0).UTC()
		out = append(out, v)
	}
	return out, rows.Err()
}

// ReadCandles returns candles for one pair after afterTS, ascending.
func (j *Journal) ReadCandles(asset string, period int, afterTS int64) ([]model.Candle, error) {
	rows, err := j.db.Query(`
		SELECT asset, period, ts, open, high, low, close, volume
		FROM candles
		WHERE asset = ? AND period = ? AND ts > ?
		ORDER BY ts ASC
	`, asset, period, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	var out []model.Candle
	for rows.Next() {
		var c model.Candle
		if err := rows.Scan(&c.Asset, &c.Period, &c.TS, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan candles: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// LastSignalTime returns the latest produced_at for a pair, 0 if none.
func (j *Journal) LastSignalTime(asset string, period int) (int64, error) {
	var ts sql.NullInt64
	err := j.db.QueryRow(
		`SELECT MAX(produced_at) FROM signals WHERE asset = ? AND period = ?`,
		asset, period,
	).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
