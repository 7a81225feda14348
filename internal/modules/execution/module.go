package execution

import (
	"go.uber.org/fx"

	"trade_agent/internal/modules/config"
	"trade_agent/internal/modules/execution/service"
	venuesvc "trade_agent/internal/modules/venue/service"
)

func Module() fx.Option {
	return fx.Module("execution",
		fx.Provide(
			func(cfg *config.Config, v venuesvc.Venue) *service.Executor {
				return service.NewExecutor(cfg.Execution, v)
			},
		),
	)
}
