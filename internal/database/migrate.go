package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations/mysql/*.sql migrations/postgres/*.sql
var migrationFiles embed.FS

const migrationLockName = "box_office_migrations"

// advisoryLockID keys the PostgreSQL session lock taken while migrating.
const advisoryLockID int64 = 801234567

// Migrate applies the embedded migrations for db's driver in filename
// order.  Applied files are recorded in schema_migrations and skipped on
// later runs.  A database-level lock keeps concurrent starters from racing.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	dialect := db.DriverName()
	names, err := migrationNames(dialect)
	if err != nil {
		return err
	}

	conn, err := db.Connx(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Close()

	unlock, err := lock(ctx, conn, dialect)
	if err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer unlock()

	if _, err := conn.ExecContext(ctx, schemaMigrationsDDL(dialect)); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	for _, name := range names {
		var applied int
		query := conn.Rebind(`SELECT COUNT(*) FROM schema_migrations WHERE name = ?`)
		if err := conn.GetContext(ctx, &applied, query, name); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if applied > 0 {
			continue
		}

		raw, err := migrationFiles.ReadFile("migrations/" + dialect + "/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		for _, stmt := range splitStatements(string(raw)) {
			if _, err := conn.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("exec migration %s: %w", name, err)
			}
		}
		record := conn.Rebind(`INSERT INTO schema_migrations (name) VALUES (?)`)
		if _, err := conn.ExecContext(ctx, record, name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

func migrationNames(dialect string) ([]string, error) {
	entries, err := fs.ReadDir(migrationFiles, "migrations/"+dialect)
	if err != nil {
		return nil, fmt.Errorf("read migrations for %q: %w", dialect, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// splitStatements breaks a migration file into single statements.  The
// MySQL driver runs one statement per Exec unless multiStatements is set,
// which the service never enables.
func splitStatements(src string) []string {
	var out []string
	for _, part := range strings.Split(src, ";") {
		var lines []string
		for _, line := range strings.Split(part, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			lines = append(lines, line)
		}
		if stmt := strings.TrimSpace(strings.Join(lines, "\n")); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func schemaMigrationsDDL(dialect string) string {
	if dialect == "postgres" {
		return `
CREATE TABLE IF NOT EXISTS schema_migrations (
	name TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	}
	return `
CREATE TABLE IF NOT EXISTS schema_migrations (
	name VARCHAR(255) PRIMARY KEY,
	applied_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
)`
}

func lock(ctx context.Context, conn *sqlx.Conn, dialect string) (func(), error) {
	if dialect == "postgres" {
		if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, advisoryLockID); err != nil {
			return nil, err
		}
		return func() {
			_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, advisoryLockID)
		}, nil
	}

	var got int
	if err := conn.GetContext(ctx, &got, `SELECT GET_LOCK(?, 30)`, migrationLockName); err != nil {
		return nil, err
	}
	if got != 1 {
		return nil, fmt.Errorf("lock %s not granted", migrationLockName)
	}
	return func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT RELEASE_LOCK(?)`, migrationLockName)
	}, nil
}
