// Package ledger records generation runs in SQLite so an interrupted run can
// resume at its first incomplete iteration, and keeps the annotation rows of
// each dataset for reporting.
package ledger

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/synthgen/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrations returns the embedded schema migrations.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Run status values.
const (
	StatusRunning   = "running"
	StatusComplete  = "complete"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Store is a ledger database.
type Store struct {
	db *sql.DB
	rt *monitoring.Runtime
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// Open opens or creates the ledger at path and applies pending migrations.
func Open(rt *monitoring.Runtime, path string) (*Store, error) {
	if rt == nil {
		rt = monitoring.Nop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	// One connection keeps the pragmas in force and writes serialized.
	db.SetMaxOpenConns(1)
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", p, err)
		}
	}
	s := &Store{db: db, rt: rt}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// MigrateUp runs all pending migrations. No change is not an error.
func (s *Store) MigrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateDown rolls back the most recent migration.
func (s *Store) MigrateDown() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the schema version and dirty flag. A database with
// no migrations reports 0.
func (s *Store) MigrateVersion() (version uint, dirty bool, err error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// newMigrate is not closed by callers: closing it would close s.db.
func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(Migrations(), ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{rt: s.rt}
	return m, nil
}

type migrateLogger struct{ rt *monitoring.Runtime }

func (l *migrateLogger) Printf(format string, v ...any) {
	l.rt.Log.Debug(fmt.Sprintf("[migrate] "+format, v...))
}

func (l *migrateLogger) Verbose() bool { return false }

// HashConfig fingerprints a configuration file's bytes.
func HashConfig(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// RunInfo describes a run when it starts.
type RunInfo struct {
	OutputRoot string
	ConfigHash string
	Seed       uint64
	Iterations int
	Checkpoint int
}

// Run is an open ledger entry.
type Run struct {
	ID    string
	store *Store
}

// BeginRun inserts a running entry with a fresh ID.
func (s *Store) BeginRun(ctx context.Context, info RunInfo) (*Run, error) {
	id := uuid.NewString()
	root, _ := filepath.Abs(info.OutputRoot)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, output_root, config_hash, seed, iterations, checkpoint, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, root, info.ConfigHash, int64(info.Seed), info.Iterations, info.Checkpoint, StatusRunning, s.now())
	if err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}
	s.rt.Log.Info("ledger run started", "run_id", id, "root", root)
	return &Run{ID: id, store: s}, nil
}

func (s *Store) now() time.Time { return s.rt.Clock.Now().UTC() }

// RecordRender stores one written image.
func (r *Run) RecordRender(ctx context.Context, iteration, view, frame int, mode, path string) error {
	_, err := r.store.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO renders (run_id, iteration, view, frame, mode, path, rendered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, iteration, view, frame, mode, path, r.store.now())
	if err != nil {
		return fmt.Errorf("record render %s: %w", path, err)
	}
	return nil
}

// CompleteIteration marks an iteration fully rendered.
func (r *Run) CompleteIteration(ctx context.Context, iteration, instances int) error {
	_, err := r.store.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO iterations (run_id, iteration, instances, completed_at)
		VALUES (?, ?, ?, ?)`,
		r.ID, iteration, instances, r.store.now())
	if err != nil {
		return fmt.Errorf("complete iteration %d: %w", iteration, err)
	}
	return nil
}

// Finish closes the entry with a status derived from runErr. It uses a
// fresh context so a cancelled run is still recorded.
func (r *Run) Finish(runErr error) error {
	status, msg := StatusComplete, sql.NullString{}
	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		status = StatusCancelled
	case runErr != nil:
		status = StatusFailed
	}
	if runErr != nil {
		msg = sql.NullString{String: runErr.Error(), Valid: true}
	}
	_, err := r.store.db.Exec(`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE run_id = ?`,
		status, msg, r.store.now(), r.ID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", r.ID, err)
	}
	return nil
}

// ResumeAuto returns the first iteration that no run of the same
// configuration into the same output root has completed.
func (s *Store) ResumeAuto(ctx context.Context, outputRoot, configHash string) (int, error) {
	root, _ := filepath.Abs(outputRoot)
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT i.iteration FROM iterations i
		JOIN runs r ON r.run_id = i.run_id
		WHERE r.output_root = ? AND r.config_hash = ?
		ORDER BY i.iteration`, root, configHash)
	if err != nil {
		return 0, fmt.Errorf("resume query: %w", err)
	}
	defer rows.Close()
	next := 0
	for rows.Next() {
		var it int
		if err := rows.Scan(&it); err != nil {
			return 0, err
		}
		if it != next {
			break
		}
		next++
	}
	return next, rows.Err()
}

// LastSeed returns the root seed of the newest run of the same
// configuration into the same output root. A resumed run whose seed was
// derived from the clock reuses it.
func (s *Store) LastSeed(ctx context.Context, outputRoot, configHash string) (uint64, bool, error) {
	root, _ := filepath.Abs(outputRoot)
	var seed int64
	err := s.db.QueryRowContext(ctx, `
		SELECT seed FROM runs WHERE output_root = ? AND config_hash = ?
		ORDER BY started_at DESC, run_id LIMIT 1`, root, configHash).Scan(&seed)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("last seed: %w", err)
	}
	return uint64(seed), true, nil
}

// RunSummary is one row of the runs table.
type RunSummary struct {
	ID         string
	OutputRoot string
	Status     string
	Seed       uint64
	Iterations int
	Completed  int
	Renders    int
	StartedAt  time.Time
}

// Runs lists runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.run_id, r.output_root, r.status, r.seed, r.iterations, r.started_at,
			(SELECT COUNT(*) FROM iterations i WHERE i.run_id = r.run_id),
			(SELECT COUNT(*) FROM renders d WHERE d.run_id = r.run_id)
		FROM runs r ORDER BY r.started_at DESC, r.run_id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var out []RunSummary
	for rows.Next() {
		var (
			rs   RunSummary
			seed int64
		)
		if err := rows.Scan(&rs.ID, &rs.OutputRoot, &rs.Status, &seed, &rs.Iterations, &rs.StartedAt, &rs.Completed, &rs.Renders); err != nil {
			return nil, err
		}
		rs.Seed = uint64(seed)
		out = append(out, rs)
	}
	return out, rows.Err()
}
