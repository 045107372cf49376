package recorder

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"StockPicker/internal/model"
)

// ErrNoRuns is returned by LastScreen on an empty database.
var ErrNoRuns = errors.New("no screen runs recorded")

// SQLiteRecorder persists historical data to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so reports can be read while a run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS screen_runs (
			run_id     TEXT PRIMARY KEY,
			started    INTEGER NOT NULL,
			elapsed_ms INTEGER,
			evaluated  INTEGER,
			passed     INTEGER,
			skipped    INTEGER,
			failed     INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_screen_started ON screen_runs(started)`,

		`CREATE TABLE IF NOT EXISTS screen_candidates (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id          TEXT NOT NULL REFERENCES screen_runs(run_id),
			rank            INTEGER NOT NULL,
			symbol          TEXT NOT NULL,
			market          TEXT,
			latest_date     TEXT,
			latest_close    REAL,
			turnover        REAL,
			k_value         REAL,
			d_value         REAL,
			j_value         REAL,
			bars            INTEGER,
			liquidity_floor REAL,
			j_threshold     REAL,
			liquid          INTEGER,
			passes          INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_candidates_run ON screen_candidates(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_candidates_symbol ON screen_candidates(symbol)`,

		`CREATE TABLE IF NOT EXISTS order_events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			source     TEXT,
			kind       TEXT,
			symbol     TEXT,
			order_id   TEXT,
			bar_date   TEXT,
			action     TEXT,
			reason     TEXT,
			status     TEXT,
			size       REAL,
			price      REAL,
			message    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_symbol ON order_events(symbol)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordScreen(run *ScreenRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO screen_runs
		(run_id, started, elapsed_ms, evaluated, passed, skipped, failed)
		VALUES (?,?,?,?,?,?,?)`,
		run.RunID, run.Started.Unix(), run.Elapsed.Milliseconds(),
		run.Evaluated, run.Passed, run.Skipped, run.Failed,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO screen_candidates
		(run_id, rank, symbol, market, latest_date, latest_close, turnover,
		 k_value, d_value, j_value, bars, liquidity_floor, j_threshold, liquid, passes)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, c := range run.Candidates {
		if _, err := stmt.Exec(run.RunID, i+1, c.Symbol, string(c.Market),
			c.LatestDate.Format("2006-01-02"), c.LatestClose, c.Turnover,
			c.K, c.D, c.J, c.Bars, c.LiquidityFloor, c.JThreshold, c.Liquid, c.Passes,
		); err != nil {
			return fmt.Errorf("insert candidate %s: %w", c.Symbol, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordOrder(evt *OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO order_events
		(timestamp, source, kind, symbol, order_id, bar_date, action, reason, status, size, price, message)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		time.Now().Unix(), evt.Source, evt.Kind, evt.Symbol, evt.OrderID,
		evt.Date.Format("2006-01-02"), string(evt.Action), string(evt.Reason), string(evt.Status),
		evt.Size, evt.Price, evt.Message,
	)
	return err
}

// LastScreen loads the most recent run with its candidates.
func (r *SQLiteRecorder) LastScreen() (*ScreenRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := &ScreenRun{}
	var started, elapsedMS int64
	err := r.db.QueryRow(`SELECT run_id, started, elapsed_ms, evaluated, passed, skipped, failed
		FROM screen_runs ORDER BY started DESC, rowid DESC LIMIT 1`).
		Scan(&run.RunID, &started, &elapsedMS, &run.Evaluated, &run.Passed, &run.Skipped, &run.Failed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, err
	}
	run.Started = time.Unix(started, 0)
	run.Elapsed = time.Duration(elapsedMS) * time.Millisecond

	rows, err := r.db.Query(`SELECT symbol, market, latest_date, latest_close, turnover,
		k_value, d_value, j_value, bars, liquidity_floor, j_threshold, liquid, passes
		FROM screen_candidates WHERE run_id = ? ORDER BY rank`, run.RunID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var c model.Candidate
		var market, date string
		if err := rows.Scan(&c.Symbol, &market, &date, &c.LatestClose, &c.Turnover,
			&c.K, &c.D, &c.J, &c.Bars, &c.LiquidityFloor, &c.JThreshold, &c.Liquid, &c.Passes); err != nil {
			return nil, err
		}
		c.Market = model.Market(market)
		c.LatestDate, _ = time.Parse("2006-01-02", date)
		run.Candidates = append(run.Candidates, c)
	}
	return run, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
