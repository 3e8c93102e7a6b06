// Package record stores simulation runs in a SQLite database: one row per
// run with the configuration and final statistics, and optionally one row per
// access.
package record

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/cachesim/timing/cache"
	"github.com/sarchlab/cachesim/trace"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	trace            TEXT,
	started_at       TEXT,
	size             INTEGER,
	associativity    INTEGER,
	block_size       INTEGER,
	policy           TEXT,
	records          INTEGER,
	accesses         INTEGER,
	reads            INTEGER,
	writes           INTEGER,
	hits             INTEGER,
	misses           INTEGER,
	dirty_writebacks INTEGER,
	evictions        INTEGER,
	miss_rate        REAL,
	estimated_cycles INTEGER,
	error            TEXT
);
CREATE TABLE IF NOT EXISTS accesses (
	run_id          TEXT,
	seq             INTEGER,
	kind            TEXT,
	address         INTEGER,
	set_index       INTEGER,
	tag             INTEGER,
	way             INTEGER,
	hit             INTEGER,
	dirty_writeback INTEGER
);`

// Run is one row of the runs table.
type Run struct {
	ID        string
	Trace     string
	StartedAt time.Time
	Config    cache.Config
	Records   uint64
	Summary   cache.Summary
	Error     string
}

type accessRow struct {
	seq            uint64
	kind           string
	address        uint64
	setIndex       int
	tag            uint64
	way            int
	hit            bool
	dirtyWriteback bool
}

// SQLiteRecorder writes runs into a SQLite database. Per-access rows are
// buffered and written in batches inside a transaction.
type SQLiteRecorder struct {
	*sql.DB

	path      string
	batchSize int

	runID    string
	seq      uint64
	pending  []accessRow
	err      error
	accesses bool
}

// NewSQLiteRecorder opens (or creates) the database at path + ".sqlite3".
// An empty path picks a unique name.
func NewSQLiteRecorder(path string) (*SQLiteRecorder, error) {
	if path == "" {
		path = "cachesim_" + xid.New().String()
	}
	if !strings.HasSuffix(path, ".sqlite3") {
		path += ".sqlite3"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables in %s: %w", path, err)
	}

	return &SQLiteRecorder{
		DB:        db,
		path:      path,
		batchSize: 10000,
	}, nil
}

// SetBatchSize sets how many access rows are buffered before the hook writes
// them. The default is 10000.
func (r *SQLiteRecorder) SetBatchSize(n int) {
	if n < 1 {
		n = 1
	}
	r.batchSize = n
}

// Path returns the database file name.
func (r *SQLiteRecorder) Path() string {
	return r.path
}

// RecordAccesses enables per-access rows for subsequent runs. Without it only
// run summaries are stored.
func (r *SQLiteRecorder) RecordAccesses(enabled bool) {
	r.accesses = enabled
}

// StartRun inserts a new run and returns its ID. Accesses seen by the hook are
// attributed to this run until the next StartRun.
func (r *SQLiteRecorder) StartRun(config cache.Config, traceName string) (string, error) {
	if err := r.Flush(); err != nil {
		return "", err
	}

	id := xid.New().String()
	policy := config.Policy
	if policy == "" {
		policy = cache.PolicyLRU
	}

	_, err := r.Exec(
		`INSERT INTO runs (id, trace, started_at, size, associativity, block_size, policy)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, traceName, time.Now().UTC().Format(time.RFC3339Nano),
		config.Size, config.Associativity, config.BlockSize, policy)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	r.runID = id
	r.seq = 0

	return id, nil
}

// Func implements sim.Hook. It buffers one row per access when access
// recording is enabled and a run is open.
func (r *SQLiteRecorder) Func(ctx sim.HookCtx) {
	if !r.accesses || r.runID == "" || ctx.Pos != cache.HookPosAccess {
		return
	}

	rec, ok := ctx.Item.(trace.Record)
	if !ok {
		return
	}
	outcome, ok := ctx.Detail.(cache.AccessOutcome)
	if !ok {
		return
	}

	r.seq++
	r.pending = append(r.pending, accessRow{
		seq:            r.seq,
		kind:           rec.Kind.String(),
		address:        rec.Address,
		setIndex:       outcome.Address.SetIndex,
		tag:            outcome.Address.Tag,
		way:            outcome.Way,
		hit:            outcome.Hit,
		dirtyWriteback: outcome.DirtyWriteback,
	})

	if len(r.pending) >= r.batchSize {
		if err := r.writePending(); err != nil && r.err == nil {
			r.err = err
		}
	}
}

// FinishRun stores the final statistics of the open run. runErr, if not nil,
// is saved with the run.
func (r *SQLiteRecorder) FinishRun(records uint64, summary cache.Summary, runErr error) error {
	if r.runID == "" {
		return errors.New("no run in progress")
	}

	if err := r.Flush(); err != nil {
		return err
	}

	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}

	_, err := r.Exec(
		`UPDATE runs SET records = ?, accesses = ?, reads = ?, writes = ?, hits = ?,
		 misses = ?, dirty_writebacks = ?, evictions = ?, miss_rate = ?,
		 estimated_cycles = ?, error = ? WHERE id = ?`,
		records, summary.Accesses, summary.Reads, summary.Writes, summary.Hits,
		summary.Misses, summary.DirtyWritebacks, summary.Evictions, summary.MissRate,
		summary.EstimatedCycles, errText, r.runID)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", r.runID, err)
	}

	r.runID = ""

	return nil
}

// Flush writes buffered access rows. The returned error also carries any
// error a previous batch write from the hook ran into; rows from a failed
// batch stay buffered and are retried here.
func (r *SQLiteRecorder) Flush() error {
	stale := r.err
	r.err = nil

	return errors.Join(stale, r.writePending())
}

func (r *SQLiteRecorder) writePending() error {
	if len(r.pending) == 0 {
		return nil
	}

	tx, err := r.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO accesses (run_id, seq, kind, address, set_index, tag, way, hit, dirty_writeback)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, row := range r.pending {
		// SQLite integers are signed 64-bit; addresses and tags keep their
		// bit pattern.
		_, err := stmt.Exec(r.runID, row.seq, row.kind, int64(row.address),
			row.setIndex, int64(row.tag), row.way, row.hit, row.dirtyWriteback)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert access %d: %w", row.seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit accesses: %w", err)
	}

	r.pending = r.pending[:0]

	return nil
}

// Close flushes and closes the database.
func (r *SQLiteRecorder) Close() error {
	return errors.Join(r.Flush(), r.DB.Close())
}

// Runs lists every stored run, oldest first.
func (r *SQLiteRecorder) Runs() ([]Run, error) {
	rows, err := r.Query(
		`SELECT id, trace, started_at, size, associativity, block_size, policy,
		 IFNULL(records, 0), IFNULL(accesses, 0), IFNULL(reads, 0), IFNULL(writes, 0),
		 IFNULL(hits, 0), IFNULL(misses, 0), IFNULL(dirty_writebacks, 0),
		 IFNULL(evictions, 0), IFNULL(miss_rate, 0), IFNULL(estimated_cycles, 0),
		 IFNULL(error, '')
		 FROM runs ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var (
			run       Run
			startedAt string
		)

		err := rows.Scan(&run.ID, &run.Trace, &startedAt,
			&run.Config.Size, &run.Config.Associativity, &run.Config.BlockSize,
			&run.Config.Policy, &run.Records,
			&run.Summary.Accesses, &run.Summary.Reads, &run.Summary.Writes,
			&run.Summary.Hits, &run.Summary.Misses, &run.Summary.DirtyWritebacks,
			&run.Summary.Evictions, &run.Summary.MissRate, &run.Summary.EstimatedCycles,
			&run.Error)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// AccessCount returns how many access rows are stored for a run.
func (r *SQLiteRecorder) AccessCount(runID string) (int, error) {
	var n int
	err := r.QueryRow(`SELECT COUNT(*) FROM accesses WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count accesses: %w", err)
	}
	return n, nil
}

