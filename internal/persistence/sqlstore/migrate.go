package sqlstore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFiles embed.FS

// Migration represents a versioned schema change loaded from the embedded files.
type Migration struct {
	Version     string
	Description string
	SQL         string
	Checksum    string
}

// MigrationError wraps a failure with the migration that caused it.
type MigrationError struct {
	Version   string
	Operation string
	Err       error
}

func (e *MigrationError) Error() string {
	if e.Version == "" {
		return fmt.Sprintf("migration %s failed: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("migration %s %s failed: %v", e.Version, e.Operation, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// Migrator applies embedded migrations and records them in schema_migrations.
type Migrator struct {
	pool   *Pool
	files  fs.FS
	dir    string
	logger *slog.Logger
}

// NewMigrator creates a migrator for the pool's driver.
func NewMigrator(pool *Pool, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{
		pool:   pool,
		files:  migrationFiles,
		dir:    path.Join("migrations", string(pool.driver)),
		logger: logger,
	}
}

// Migrations returns every embedded migration in version order.
func (m *Migrator) Migrations() ([]Migration, error) {
	entries, err := fs.ReadDir(m.files, m.dir)
	if err != nil {
		return nil, &MigrationError{Operation: "scan", Err: err}
	}

	migrations := make([]Migration, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, description, ok := strings.Cut(strings.TrimSuffix(entry.Name(), ".sql"), "_")
		if !ok || version == "" {
			return nil, &MigrationError{Operation: "scan", Err: fmt.Errorf("invalid migration file name %q", entry.Name())}
		}
		content, err := fs.ReadFile(m.files, path.Join(m.dir, entry.Name()))
		if err != nil {
			return nil, &MigrationError{Version: version, Operation: "read", Err: err}
		}
		sum := sha256.Sum256(content)
		migrations = append(migrations, Migration{
			Version:     version,
			Description: strings.ReplaceAll(description, "_", " "),
			SQL:         string(content),
			Checksum:    hex.EncodeToString(sum[:]),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Run executes all pending migrations in order, each within its own transaction.
func (m *Migrator) Run(ctx context.Context) error {
	if err := m.initializeVersionTable(ctx); err != nil {
		return err
	}

	applied, err := m.AppliedVersions(ctx)
	if err != nil {
		return err
	}
	done := make(map[string]struct{}, len(applied))
	for _, v := range applied {
		done[v] = struct{}{}
	}

	migrations, err := m.Migrations()
	if err != nil {
		return err
	}

	pending := 0
	for _, migration := range migrations {
		if _, ok := done[migration.Version]; ok {
			continue
		}
		pending++

		logger := m.logger.With("version", migration.Version, "description", migration.Description)
		started := time.Now()
		if err := m.execute(ctx, migration, started); err != nil {
			logger.ErrorContext(ctx, "migration failed", "error", err)
			return err
		}
		logger.InfoContext(ctx, "migration applied", "duration", time.Since(started))
	}

	if pending == 0 {
		m.logger.DebugContext(ctx, "schema up to date", "applied", len(applied))
	}
	return nil
}

// AppliedVersions lists recorded migration versions in ascending order.
func (m *Migrator) AppliedVersions(ctx context.Context) ([]string, error) {
	ctx, cancel := m.pool.withTimeout(ctx)
	defer cancel()

	rows, err := m.pool.db.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version ASC`)
	if err != nil {
		return nil, &MigrationError{Operation: "list applied", Err: err}
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, &MigrationError{Operation: "list applied", Err: err}
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, &MigrationError{Operation: "list applied", Err: err}
	}
	return versions, nil
}

func (m *Migrator) initializeVersionTable(ctx context.Context) error {
	ctx, cancel := m.pool.withTimeout(ctx)
	defer cancel()

	const createTableSQL = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL,
			checksum TEXT NOT NULL,
			execution_time_ms BIGINT NOT NULL DEFAULT 0
		)`
	if _, err := m.pool.db.ExecContext(ctx, createTableSQL); err != nil {
		return &MigrationError{Operation: "create schema_migrations", Err: err}
	}
	return nil
}

func (m *Migrator) execute(ctx context.Context, migration Migration, started time.Time) error {
	statements := splitStatements(migration.SQL)
	if len(statements) == 0 {
		return &MigrationError{Version: migration.Version, Operation: "parse", Err: fmt.Errorf("no SQL statements found")}
	}

	helper := NewQueryHelper(m.pool)
	err := m.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		for i, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("statement %d: %w", i+1, err)
			}
		}
		_, err := helper.Exec(ctx, tx,
			`INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES (?, ?, ?, ?)`,
			migration.Version,
			time.Now().UTC().Format(time.RFC3339),
			migration.Checksum,
			time.Since(started).Milliseconds(),
		)
		return err
	})
	if err != nil {
		return &MigrationError{Version: migration.Version, Operation: "execute", Err: err}
	}
	return nil
}

// splitStatements splits SQL content on semicolons and drops comment-only lines.
func splitStatements(content string) []string {
	var statements []string
	for _, stmt := range strings.Split(content, ";") {
		lines := strings.Split(stmt, "\n")
		kept := lines[:0]
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "--") {
				continue
			}
			kept = append(kept, line)
		}
		if len(kept) > 0 {
			statements = append(statements, strings.Join(kept, "\n"))
		}
	}
	return statements
}
