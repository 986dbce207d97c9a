package app

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/ssogate/internal/credstore"
	"github.com/aussiebroadwan/ssogate/internal/credstore/drivers/memory"
	"github.com/aussiebroadwan/ssogate/internal/credstore/drivers/redis"
	"github.com/aussiebroadwan/ssogate/internal/credstore/drivers/sqlite"
	"github.com/aussiebroadwan/ssogate/pkg/cryptox"
)

// OpenStore opens the configured credential store and applies its
// migrations. With a seal key set, values are encrypted before they reach
// the driver.
func OpenStore(ctx context.Context, cfg Config) (credstore.Store, error) {
	var (
		store credstore.Store
		err   error
	)

	switch cfg.StoreDriver {
	case DriverSQLite:
		dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", cfg.SQLiteFile)
		store, err = sqlite.NewStore(dsn)
	case DriverRedis:
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		store, err = redis.Open(cctx, cfg.RedisURL, cfg.RedisPrefix)
		cancel()
	case DriverMemory:
		store = memory.New()
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}

	if err := store.ApplyMigrations(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("apply %s migrations: %w", cfg.StoreDriver, err)
	}

	if cfg.SealKey == "" {
		return store, nil
	}
	sealer, err := cryptox.NewSealer([]byte(cfg.SealKey), credstore.SealPurpose)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create sealer: %w", err)
	}
	return credstore.Sealed(store, sealer), nil
}
