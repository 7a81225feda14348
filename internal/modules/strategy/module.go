package strategy

import (
	"go.uber.org/fx"

	"trade_agent/internal/modules/config"
	"trade_agent/internal/modules/strategy/service"
)

func Module() fx.Option {
	return fx.Module("strategy",
		fx.Provide(
			func(cfg *config.Config) *service.Registry {
				initial := service.NewRuleStrategy("strat-v1", service.Params{
					MaxCandidates: 3,
					LongOnly:      false,
					Allowed:       cfg.Universe,
					SizeFraction:  cfg.SizeFraction,
				})
				return service.NewRegistry(initial)
			},
			func(cfg *config.Config) service.Evolver {
				return service.NewHillClimbEvolver(len(cfg.Universe))
			},
		),
	)
}
