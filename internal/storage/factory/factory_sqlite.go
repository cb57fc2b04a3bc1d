package factory

import (
	"context"

	"github.com/schemascout/schemascout/internal/config"
	"github.com/schemascout/schemascout/internal/storage"
	"github.com/schemascout/schemascout/internal/storage/sqlite"
)

func init() {
	RegisterBackend(BackendSQLite, func(ctx context.Context, cfg *config.Config) (storage.Store, error) {
		path := cfg.DBPath
		if path == "" {
			path = "schemascout.db"
		}
		return sqlite.New(ctx, path)
	})
}
