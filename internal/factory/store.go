package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/config"
	storepkg "github.com/Project-Jira-Connector/Bot-Back-End/internal/store"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/store/memory"
	storemongo "github.com/Project-Jira-Connector/Bot-Back-End/internal/store/mongo"
	storepg "github.com/Project-Jira-Connector/Bot-Back-End/internal/store/postgres"
	storesqlite "github.com/Project-Jira-Connector/Bot-Back-End/internal/store/sqlite"
)

// CloseFunc releases the resources behind a store.
type CloseFunc func(ctx context.Context) error

const bootstrapTimeout = 30 * time.Second

// NewStore opens the store selected by cfg.DBDriver. The connection is
// opened synchronously since health checks need it immediately; schema or
// index bootstrap runs in the background.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storepkg.Store, CloseFunc, error) {
	switch cfg.DBDriver {
	case "memory":
		return memory.New(), func(context.Context) error { return nil }, nil

	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
		defer cancel()
		client, err := storemongo.Connect(connectCtx, cfg.MongoURI)
		if err != nil {
			return nil, nil, fmt.Errorf("mongo connect: %w", err)
		}
		db := client.Database(cfg.MongoDatabase)
		go bootstrap(ctx, log, cfg.DBDriver, func(c context.Context) error { return storemongo.EnsureIndexes(c, db) })
		return storemongo.New(db), client.Disconnect, nil

	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, nil, fmt.Errorf("BOT_POSTGRES_DSN is required when DB_DRIVER=postgres")
		}
		db, err := storepg.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		go bootstrap(ctx, log, cfg.DBDriver, func(c context.Context) error { return storepg.EnsureSchema(c, db) })
		return storepg.NewWithDB(db), func(context.Context) error { return db.Close() }, nil

	case "sqlite":
		db, err := storesqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		// sqlite runs on a single connection; create tables before first use.
		if err := storesqlite.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return storesqlite.NewWithDB(db), func(context.Context) error { return db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}

func bootstrap(ctx context.Context, log zerolog.Logger, driver string, fn func(context.Context) error) {
	bctx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
	defer cancel()
	if err := fn(bctx); err != nil {
		log.Warn().Err(err).Str("driver", driver).Msg("store bootstrap failed")
		return
	}
	log.Debug().Str("driver", driver).Msg("store bootstrap completed")
}
