package venue

import (
	"time"

	"go.uber.org/fx"

	"trade_agent/internal/modules/config"
	"trade_agent/internal/modules/venue/service"
)

func Module() fx.Option {
	return fx.Module("venue",
		fx.Provide(
			func(cfg *config.Config) service.Venue {
				if cfg.Execution.Venue == "chain" {
					return service.NewChainVenue(cfg.Execution.VenueURL)
				}
				return service.NewPaperVenue(5.0, 50*time.Millisecond)
			},
		),
	)
}
