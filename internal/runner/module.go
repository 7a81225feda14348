package runner

import (
	"context"

	"go.uber.org/fx"

	"trade_agent/internal/modules/config"
	decisionsvc "trade_agent/internal/modules/decision/service"
	execsvc "trade_agent/internal/modules/execution/service"
	healthsvc "trade_agent/internal/modules/health/service"
	improvesvc "trade_agent/internal/modules/improve/service"
	obssvc "trade_agent/internal/modules/observer/service"
	risksvc "trade_agent/internal/modules/risk/service"
)

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			func(
				cfg *config.Config,
				obs obssvc.Observer,
				engine *decisionsvc.Engine,
				ledger *risksvc.Ledger,
				exec *execsvc.Executor,
				sched *improvesvc.Scheduler,
				state *healthsvc.State,
			) *Agent {
				return New(cfg.TickInterval, obs, engine, ledger, exec, sched, state)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, a *Agent) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					a.Run()
					return nil
				},
				OnStop: func(_ context.Context) error {
					a.Stop()
					return nil
				},
			})
		}),
	)
}
