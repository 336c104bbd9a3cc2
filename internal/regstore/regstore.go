// Package regstore persists user-defined instruction and error-model
// overload sets across analyzer runs: registries are pluggable in memory,
// but nothing about that says a caller can't want its custom overload set
// to outlive one process. The driver is selected from the DSN scheme, the
// same way a connection pool keyed by database type would be.
package regstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"cqasm/internal/registry"
	"cqasm/internal/types"
)

// Store is a SQL-backed registry of instruction and error-model overloads.
type Store struct {
	db     *sql.DB
	driver string
}

// Open selects a driver from the DSN scheme (sqlite://, postgres://,
// mysql://, sqlserver://) and opens a connection, creating the store's
// tables if they don't already exist. The table definitions and the `?`
// placeholders of every query are SQLite syntax: with the postgres, mysql
// and sqlserver drivers, table creation fails and Open returns that error.
func Open(ctx context.Context, dsn string) (*Store, error) {
	driver, dataSource, err := driverForDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dataSource)
	if err != nil {
		return nil, fmt.Errorf("regstore: open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("regstore: ping %s: %w", driver, err)
	}
	s := &Store{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func driverForDSN(dsn string) (driver, dataSource string, err error) {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return "", "", fmt.Errorf("regstore: DSN %q has no scheme", dsn)
	}
	switch scheme {
	case "sqlite", "sqlite3":
		return "sqlite", rest, nil
	case "postgres", "postgresql":
		return "postgres", dsn, nil
	case "mysql":
		return "mysql", rest, nil
	case "sqlserver", "mssql":
		return "sqlserver", dsn, nil
	default:
		return "", "", fmt.Errorf("regstore: unsupported DSN scheme %q", scheme)
	}
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS instructions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			param_spec TEXT NOT NULL,
			allow_conditional INTEGER NOT NULL,
			allow_parallel INTEGER NOT NULL,
			allow_reused_qubits INTEGER NOT NULL,
			allow_different_index_sizes INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS error_models (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			param_spec TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("regstore: migrate: %w", err)
		}
	}
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// SaveInstruction persists one instruction overload, keyed by name and its
// one-character-per-type shorthand parameter spec.
func (s *Store) SaveInstruction(ctx context.Context, name, paramSpec string, flags registry.Flags) error {
	if _, err := types.FromSpec(paramSpec); err != nil {
		return fmt.Errorf("regstore: %w", err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO instructions (name, param_spec, allow_conditional, allow_parallel, allow_reused_qubits, allow_different_index_sizes, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		name, paramSpec, flags.AllowConditional, flags.AllowParallel, flags.AllowReusedQubits, flags.AllowDifferentIndexSizes, time.Now())
	if err != nil {
		return fmt.Errorf("regstore: save instruction %q: %w", name, err)
	}
	return nil
}

// InstructionRecord is one row loaded back from the store.
type InstructionRecord struct {
	Name       string
	ParamTypes []types.Type
	Flags      registry.Flags
	CreatedAt  time.Time
}

// LoadInstructions returns every persisted instruction overload, in
// insertion order, ready to be registered onto a live InstructionTable.
func (s *Store) LoadInstructions(ctx context.Context) ([]InstructionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, param_spec, allow_conditional, allow_parallel, allow_reused_qubits, allow_different_index_sizes, created_at FROM instructions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("regstore: load instructions: %w", err)
	}
	defer rows.Close()

	var out []InstructionRecord
	for rows.Next() {
		var rec InstructionRecord
		var paramSpec string
		if err := rows.Scan(&rec.Name, &paramSpec, &rec.Flags.AllowConditional, &rec.Flags.AllowParallel, &rec.Flags.AllowReusedQubits, &rec.Flags.AllowDifferentIndexSizes, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("regstore: scan instruction: %w", err)
		}
		params, err := types.FromSpec(paramSpec)
		if err != nil {
			return nil, fmt.Errorf("regstore: decode stored param spec %q: %w", paramSpec, err)
		}
		rec.ParamTypes = params
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ApplyInstructions registers every persisted instruction overload onto t.
func (s *Store) ApplyInstructions(ctx context.Context, t *registry.InstructionTable) error {
	recs, err := s.LoadInstructions(ctx)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		t.Add(rec.Name, rec.ParamTypes, rec.Flags)
	}
	return nil
}

// SaveErrorModel persists one error-model overload.
func (s *Store) SaveErrorModel(ctx context.Context, name, paramSpec string) error {
	if _, err := types.FromSpec(paramSpec); err != nil {
		return fmt.Errorf("regstore: %w", err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO error_models (name, param_spec, created_at) VALUES (?, ?, ?)`,
		name, paramSpec, time.Now())
	if err != nil {
		return fmt.Errorf("regstore: save error model %q: %w", name, err)
	}
	return nil
}

// ErrorModelRecord is one row loaded back from the store.
type ErrorModelRecord struct {
	Name       string
	ParamTypes []types.Type
	CreatedAt  time.Time
}

// LoadErrorModels returns every persisted error-model overload.
func (s *Store) LoadErrorModels(ctx context.Context) ([]ErrorModelRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, param_spec, created_at FROM error_models ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("regstore: load error models: %w", err)
	}
	defer rows.Close()

	var out []ErrorModelRecord
	for rows.Next() {
		var rec ErrorModelRecord
		var paramSpec string
		if err := rows.Scan(&rec.Name, &paramSpec, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("regstore: scan error model: %w", err)
		}
		params, err := types.FromSpec(paramSpec)
		if err != nil {
			return nil, fmt.Errorf("regstore: decode stored param spec %q: %w", paramSpec, err)
		}
		rec.ParamTypes = params
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ApplyErrorModels registers every persisted error-model overload onto t.
func (s *Store) ApplyErrorModels(ctx context.Context, t *registry.ErrorModelTable) error {
	recs, err := s.LoadErrorModels(ctx)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		t.Add(rec.Name, rec.ParamTypes)
	}
	return nil
}

// Info summarizes the store's contents for CLI display.
func (s *Store) Info(ctx context.Context) (string, error) {
	var instrCount, modelCount int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM instructions`).Scan(&instrCount); err != nil {
		return "", fmt.Errorf("regstore: info: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM error_models`).Scan(&modelCount); err != nil {
		return "", fmt.Errorf("regstore: info: %w", err)
	}
	return fmt.Sprintf("%s driver, %s instruction overloads, %s error models",
		s.driver, humanize.Comma(int64(instrCount)), humanize.Comma(int64(modelCount))), nil
}
