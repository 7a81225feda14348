package risk

import (
	"context"

	"go.uber.org/fx"

	auditsvc "trade_agent/internal/modules/audit/service"
	"trade_agent/internal/modules/config"
	"trade_agent/internal/modules/metrics"
	"trade_agent/internal/modules/risk/service"
	"trade_agent/pkg/logger"
)

func Module() fx.Option {
	return fx.Module("risk",
		fx.Provide(
			func(cfg *config.Config, sink auditsvc.Sink, m *metrics.Metrics) *service.Ledger {
				return service.NewLedger(cfg.Risk, sink, m)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, l *service.Ledger, repo *auditsvc.Repo) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					if repo == nil {
						return nil
					}
					raw, err := repo.LoadSnapshot(ctx)
					if err != nil {
						logger.Error("ledger snapshot load failed: %v", err)
						return nil // стартуем с чистого состояния
					}
					if raw == nil {
						return nil
					}
					if err := l.Restore(raw); err != nil {
						logger.Error("ledger snapshot restore failed: %v", err)
					}
					return nil
				},
				OnStop: func(ctx context.Context) error {
					if repo == nil {
						return nil
					}
					raw, err := l.Snapshot()
					if err != nil {
						return err
					}
					return repo.SaveSnapshot(ctx, raw)
				},
			})
		}),
	)
}
