package decision

import (
	"go.uber.org/fx"

	"trade_agent/internal/modules/config"
	"trade_agent/internal/modules/decision/service"
	"trade_agent/internal/modules/metrics"
	modelsvc "trade_agent/internal/modules/model/service"
	risksvc "trade_agent/internal/modules/risk/service"
	stratsvc "trade_agent/internal/modules/strategy/service"
)

func Module() fx.Option {
	return fx.Module("decision",
		fx.Provide(
			func(
				cfg *config.Config,
				mdl *modelsvc.Registry,
				strat *stratsvc.Registry,
				ledger *risksvc.Ledger,
				m *metrics.Metrics,
			) *service.Engine {
				return service.NewEngine(cfg.Decision, mdl, strat, ledger, m)
			},
		),
	)
}
