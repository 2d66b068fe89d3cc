package cmd

import (
	"context"
	"fmt"

	"github.com/newswire-app/newswire/internal/config"
	"github.com/newswire-app/newswire/internal/store"
	"github.com/newswire-app/newswire/internal/store/postgres"
	"github.com/newswire-app/newswire/internal/store/sqlite"
)

// openStore opens the configured storage backend.
func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.DB.Driver {
	case "postgres":
		if cfg.DB.URL == "" {
			return nil, fmt.Errorf("postgres driver requires db.url")
		}
		return postgres.Open(ctx, cfg.DB.URL)
	case "sqlite", "":
		return sqlite.Open(cfg.DB.Path)
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DB.Driver)
	}
}
