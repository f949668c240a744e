package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PoolOptions tunes the connection pool shared by every transaction of the
// process.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// DefaultPoolOptions mirrors the settings the service has always run with.
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxOpenConns:    25,
		MaxIdleConns:    25,
		ConnMaxLifetime: 30 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
}

// MySQLDSN builds a go-sql-driver DSN.
func MySQLDSN(user, pass, host, port, name string) string {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC and a UTC session
	// time_zone keep times consistent whatever the server's zone is
	return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC&time_zone=%%27%%2B00%%3A00%%27",
		auth, host, port, name)
}

// OpenMySQL connects to MySQL and verifies the connection.
func OpenMySQL(ctx context.Context, dsn string, opts PoolOptions) (*sqlx.DB, error) {
	return open(ctx, "mysql", dsn, opts)
}

// OpenPostgres connects to PostgreSQL through lib/pq and verifies the
// connection.  dsn is a postgres:// URL or a key=value string.
func OpenPostgres(ctx context.Context, dsn string, opts PoolOptions) (*sqlx.DB, error) {
	return open(ctx, "postgres", dsn, opts)
}

func open(ctx context.Context, driver, dsn string, opts PoolOptions) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	// Pool settings
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}
