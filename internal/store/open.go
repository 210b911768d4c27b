package store

import (
	"context"
	"fmt"

	"github.com/joescharf/todoai/internal/errs"
)

// Drivers accepted by Open.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"

	// DefaultMongoDatabase is used when no database name is configured.
	DefaultMongoDatabase = "todolist"
)

// Config selects and configures a backend.
type Config struct {
	Driver   string
	DBPath   string
	MongoURI string
	MongoDB  string
}

// Open constructs the configured backend and runs its migrations. The
// returned store is meant to be created once per process and shared.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "", DriverSQLite:
		s, err = NewSQLiteStore(cfg.DBPath)
	case DriverMongo:
		db := cfg.MongoDB
		if db == "" {
			db = DefaultMongoDatabase
		}
		s, err = NewMongoStore(ctx, cfg.MongoURI, db)
	default:
		return nil, errs.Persistence("open store", fmt.Errorf("unknown driver %q", cfg.Driver))
	}
	if err != nil {
		return nil, err
	}

	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}
