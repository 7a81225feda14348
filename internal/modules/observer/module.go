package observer

import (
	"context"

	"go.uber.org/fx"

	"trade_agent/internal/modules/config"
	healthsvc "trade_agent/internal/modules/health/service"
	"trade_agent/internal/modules/observer/service"
	venuesvc "trade_agent/internal/modules/venue/service"
)

func Module() fx.Option {
	return fx.Module("observer",
		fx.Provide(
			func(cfg *config.Config, state *healthsvc.State, v venuesvc.Venue) service.Observer {
				// в paper-режиме цены из потока идут прямо в венью
				var sink service.PriceSink
				if pv, ok := v.(*venuesvc.PaperVenue); ok {
					sink = pv
				}
				if cfg.Observer.Mode == "poll" {
					return service.NewPollObserver(cfg.Observer.PollURL, cfg.Observer.Staleness, sink)
				}
				return service.NewFeedObserver(cfg.Observer.FeedURL, cfg.Observer.Staleness, state, sink)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, obs service.Observer, ctx context.Context) {
			feed, ok := obs.(*service.FeedObserver)
			if !ok {
				return
			}
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					feed.Start(ctx)
					return nil
				},
			})
		}),
	)
}
