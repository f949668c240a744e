// Package app assembles the box office from configuration: the store, the
// broker clients, the HTTP router and the background workers.
package app

import (
	"context"
	"fmt"

	"github.com/iliyamo/box-office/internal/config"
	"github.com/iliyamo/box-office/internal/database"
	"github.com/iliyamo/box-office/internal/repository"
)

// OpenStore connects the store selected by cfg.StoreDriver.  SQL stores are
// migrated first when migrate is true.
func OpenStore(ctx context.Context, cfg config.Config, migrate bool) (repository.Store, error) {
	opts := database.DefaultPoolOptions()
	opts.MaxOpenConns = cfg.DBMaxOpenConns
	opts.MaxIdleConns = cfg.DBMaxOpenConns

	var dsn string
	switch cfg.StoreDriver {
	case config.StoreMemory:
		return repository.NewMemoryStore(), nil
	case config.StoreMySQL:
		dsn = database.MySQLDSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	case config.StorePostgres:
		dsn = cfg.DatabaseURL
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	open := database.OpenMySQL
	if cfg.StoreDriver == config.StorePostgres {
		open = database.OpenPostgres
	}
	db, err := open(ctx, dsn, opts)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return repository.NewSQLStore(db), nil
}
