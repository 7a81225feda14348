package postgres

import (
	"context"
	"fmt"
	"trade_agent/internal/modules/config"
	"trade_agent/pkg/db"

	"go.uber.org/fx"
)

// Module — pgx-пул + tx-менеджер. Без DSN возвращает nil-менеджер,
// аудит в этом случае работает только в лог.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(ctx context.Context, cfg *config.Config) (*db.PgTxManager, error) {
				if cfg.DB == "" {
					return nil, nil
				}
				pool, err := db.NewPool(ctx, db.PoolConfig{
					DSN: cfg.DB,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create pool: %w", err)
				}

				err = pool.Ping(ctx)
				if err != nil {
					return nil, err
				}

				return db.NewPgTxManager(pool), nil
			},
		),
	)
}
