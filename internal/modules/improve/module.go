package improve

import (
	"context"

	"go.uber.org/fx"

	auditsvc "trade_agent/internal/modules/audit/service"
	"trade_agent/internal/modules/config"
	"trade_agent/internal/modules/improve/service"
	"trade_agent/internal/modules/metrics"
	modelsvc "trade_agent/internal/modules/model/service"
	stratsvc "trade_agent/internal/modules/strategy/service"
)

func Module() fx.Option {
	return fx.Module("improve",
		fx.Provide(
			func(
				cfg *config.Config,
				mdl *modelsvc.Registry,
				strat *stratsvc.Registry,
				trainer modelsvc.Trainer,
				evolver stratsvc.Evolver,
				sink auditsvc.Sink,
				m *metrics.Metrics,
			) *service.Scheduler {
				return service.NewScheduler(cfg.Improve, mdl, strat, trainer, evolver, sink, m)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, s *service.Scheduler, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					s.Start(ctx)
					return nil
				},
				OnStop: func(_ context.Context) error {
					s.Stop()
					return nil
				},
			})
		}),
	)
}
