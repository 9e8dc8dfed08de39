package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/Dosada05/tennis-tournament/config"
	"github.com/Dosada05/tennis-tournament/db"
)

// Stores bundles the repositories of one backend together with its cleanup.
type Stores struct {
	Users   UserRepository
	Matches MatchRepository
	Close   func() error
}

// Open connects the backend selected by cfg.StoreDriver. SQL schemas are
// applied when migrate is true.
func Open(ctx context.Context, cfg *config.Config, migrate bool) (*Stores, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres, config.DriverSQLite:
		conn, err := db.Connect(cfg.StoreDriver, cfg.DatabaseURL, 5*time.Second)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := db.Migrate(ctx, conn, cfg.StoreDriver); err != nil {
				_ = conn.Close()
				return nil, err
			}
		}
		if cfg.StoreDriver == config.DriverSQLite {
			users, matches := NewSQLiteRepositories(conn)
			return &Stores{Users: users, Matches: matches, Close: conn.Close}, nil
		}
		return &Stores{
			Users:   NewPostgresUserRepository(conn),
			Matches: NewPostgresMatchRepository(conn),
			Close:   conn.Close,
		}, nil

	case config.DriverRedis:
		store, err := NewRedisStore(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return &Stores{Users: store.Users(), Matches: store.Matches(), Close: store.Close}, nil

	case config.DriverMemory:
		store := NewMemoryStore()
		return &Stores{Users: store.Users(), Matches: store.Matches(), Close: func() error { return nil }}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
