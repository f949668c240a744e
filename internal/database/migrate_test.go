package database

import (
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	src := `
-- leading comment
CREATE TABLE a (id INT);

CREATE TABLE b (
    id INT -- trailing comments stay
);
  ;
`
	stmts := splitStatements(src)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (id INT)", stmts[0])
	assert.Contains(t, stmts[1], "CREATE TABLE b")
}

func TestMigrationNames(t *testing.T) {
	for _, dialect := range []string{"mysql", "postgres"} {
		t.Run(dialect, func(t *testing.T) {
			names, err := migrationNames(dialect)
			require.NoError(t, err)
			require.NotEmpty(t, names)
			assert.Equal(t, "0001_init.sql", names[0])
			assert.IsIncreasing(t, names)
		})
	}

	_, err := migrationNames("sqlite")
	assert.Error(t, err)
}

func TestEmbeddedSchemaStatements(t *testing.T) {
	for _, dialect := range []string{"mysql", "postgres"} {
		raw, err := migrationFiles.ReadFile("migrations/" + dialect + "/0001_init.sql")
		require.NoError(t, err)

		stmts := splitStatements(string(raw))
		joined := ""
		for _, s := range stmts {
			assert.NotContains(t, s, ";")
			joined += s + "\n"
		}
		for _, table := range []string{"events", "holds", "bookings"} {
			assert.Contains(t, joined, "CREATE TABLE IF NOT EXISTS "+table, dialect)
		}
		assert.Contains(t, joined, "uq_bookings_hold", dialect)
		assert.Contains(t, joined, "uq_holds_payment_token", dialect)
	}
}

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLDSN("app", "secret", "db", "3306", "box_office")
	assert.Contains(t, dsn, "app:secret@tcp(db:3306)/box_office")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
	assert.Contains(t, dsn, "loc=UTC")
	assert.Contains(t, dsn, "time_zone=%27%2B00%3A00%27")

	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "'+00:00'", cfg.Params["time_zone"])
}

func TestMySQLSchemaTokensAreBinary(t *testing.T) {
	raw, err := migrationFiles.ReadFile("migrations/mysql/0001_init.sql")
	require.NoError(t, err)
	for _, stmt := range splitStatements(string(raw)) {
		for _, line := range strings.Split(stmt, "\n") {
			if strings.Contains(line, "payment_token VARCHAR") {
				assert.Contains(t, line, "COLLATE ascii_bin", line)
			}
		}
		assert.NotContains(t, stmt, "TIMESTAMP(6) NOT NULL,")
	}
}
