package factory

import (
	"context"

	"github.com/schemascout/schemascout/internal/config"
	"github.com/schemascout/schemascout/internal/storage"
	"github.com/schemascout/schemascout/internal/storage/mysql"
)

func init() {
	RegisterBackend(BackendMySQL, func(ctx context.Context, cfg *config.Config) (storage.Store, error) {
		return mysql.New(ctx, &mysql.Config{
			Server:   cfg.DBServer,
			Database: cfg.DBDatabase,
			Username: cfg.DBUsername,
			Password: cfg.DBPassword,
			TLS:      cfg.DBTLS,
		})
	})
}
