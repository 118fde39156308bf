package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/smis-school/smis/internal/db"
)

// Migrator applies versioned .sql files once each, recording them in
// schema_migrations. The version is the filename prefix before the first
// underscore ("001_schema.sql" is version "001").
type Migrator struct {
	db  db.DBTX
	log zerolog.Logger
}

// NewMigrator creates a migrator over conn.
func NewMigrator(conn db.DBTX, log zerolog.Logger) *Migrator {
	return &Migrator{db: conn, log: log}
}

func (m *Migrator) ensureMigrationTable(ctx context.Context) error {
	_, err := m.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version VARCHAR(255) PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`)
	if err != nil {
		return fmt.Errorf("failed to create migration tracking table: %w", err)
	}
	return nil
}

func (m *Migrator) isApplied(ctx context.Context, version string) (bool, error) {
	var exists bool
	err := m.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, version).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check migration status: %w", err)
	}
	return exists, nil
}

// Version extracts the migration version from a file name.
func Version(name string) string {
	base := path.Base(name)
	if i := strings.IndexByte(base, '_'); i > 0 {
		return base[:i]
	}
	return strings.TrimSuffix(base, ".sql")
}

// Pending lists .sql files in fsys not yet applied, in order.
func (m *Migrator) Pending(ctx context.Context, fsys fs.FS) ([]string, error) {
	if err := m.ensureMigrationTable(ctx); err != nil {
		return nil, err
	}
	files, err := sqlFiles(fsys)
	if err != nil {
		return nil, err
	}
	var pending []string
	for _, f := range files {
		applied, err := m.isApplied(ctx, Version(f))
		if err != nil {
			return nil, err
		}
		if !applied {
			pending = append(pending, f)
		}
	}
	return pending, nil
}

// Migrate applies every pending file in fsys. Each file runs in its own
// transaction together with its bookkeeping row. It returns the applied files.
func (m *Migrator) Migrate(ctx context.Context, fsys fs.FS) ([]string, error) {
	pending, err := m.Pending(ctx, fsys)
	if err != nil {
		return nil, err
	}

	applied := make([]string, 0, len(pending))
	for _, name := range pending {
		if err := m.apply(ctx, fsys, name); err != nil {
			return applied, err
		}
		applied = append(applied, name)
	}

	if len(applied) == 0 {
		m.log.Info().Msg("Database schema is up to date")
	}
	return applied, nil
}

func (m *Migrator) apply(ctx context.Context, fsys fs.FS, name string) error {
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("failed to read migration %s: %w", name, err)
	}

	tx, err := m.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, string(content)); err != nil {
		return fmt.Errorf("migration %s failed: %w", name, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, Version(name)); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", name, err)
	}

	m.log.Info().Str("file", name).Msg("Migration applied")
	return nil
}

func sqlFiles(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
