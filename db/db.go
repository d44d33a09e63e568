// Package db opens the configured storage backend and the rate limit counter store.
// It centralizes database concerns, similar to how a database module (e.g., MongooseModule)
// would be configured in Nest.js, handing a ready store to the rest of the application.
package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/user/opinion-manager/apperror"
	"github.com/user/opinion-manager/config"
	"github.com/user/opinion-manager/ratelimit"
	"github.com/user/opinion-manager/store"
	"github.com/user/opinion-manager/store/memstore"
	"github.com/user/opinion-manager/store/mongostore"
	"github.com/user/opinion-manager/store/pgstore"
)

// Connection is the opened backend. Mongo is set only for the mongo driver and is
// what the shared rate limit counters are stored in.
type Connection struct {
	Store  store.Store
	Driver string
	Mongo  *mongo.Database
}

// Open picks the backend from cfg.Driver. Migrations (postgres) and indexes (mongo)
// are applied before it returns.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Connection, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		s, err := mongostore.Open(ctx, mongostore.Options{
			URI:            cfg.URL,
			Database:       cfg.Name,
			MaxPoolSize:    uint64(cfg.MaxPoolSize),
			ConnectTimeout: cfg.ConnectTimeout,
		})
		if err != nil {
			return nil, apperror.NewDatabaseError("failed to open mongo store", err)
		}
		return &Connection{Store: s, Driver: cfg.Driver, Mongo: s.Database()}, nil

	case config.DriverPostgres:
		s, err := pgstore.Open(ctx, pgstore.Options{
			URL:            cfg.URL,
			MaxConns:       int32(cfg.MaxPoolSize),
			ConnectTimeout: cfg.ConnectTimeout,
		})
		if err != nil {
			return nil, apperror.NewDatabaseError("failed to open postgres store", err)
		}
		return &Connection{Store: s, Driver: cfg.Driver}, nil

	case config.DriverMemory:
		return &Connection{Store: memstore.New(), Driver: cfg.Driver}, nil

	default:
		return nil, apperror.NewConfigError(fmt.Sprintf("unknown database driver %q", cfg.Driver), nil)
	}
}

// Counters builds the rate limit counter store. The database store needs a mongo
// connection; the returned MemoryStore is non-nil only for the memory store, and
// the caller is expected to sweep it.
func Counters(ctx context.Context, cfg config.RateLimitConfig, conn *Connection) (ratelimit.CounterStore, *ratelimit.MemoryStore, error) {
	if cfg.Store == config.RateLimitStoreDatabase {
		if conn.Mongo == nil {
			return nil, nil, apperror.NewConfigError("database rate limit store requires the mongo driver", nil)
		}
		ms, err := ratelimit.NewMongoStore(ctx, conn.Mongo)
		if err != nil {
			return nil, nil, apperror.NewDatabaseError("failed to prepare rate limit counters", err)
		}
		return ms, nil, nil
	}
	mem := ratelimit.NewMemoryStore()
	return mem, mem, nil
}
