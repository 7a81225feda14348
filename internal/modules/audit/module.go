package audit

import (
	"context"

	"go.uber.org/fx"

	"trade_agent/internal/modules/audit/service"
	"trade_agent/internal/modules/config"
	"trade_agent/internal/notify"
	"trade_agent/pkg/db"
	"trade_agent/pkg/logger"
)

func Module() fx.Option {
	return fx.Module("audit",
		fx.Provide(
			func(cfg *config.Config) notify.Notifier {
				if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
					if tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID); err == nil {
						return tg
					} else {
						logger.Error("telegram init failed, falling back to stdout: %v", err)
					}
				}
				return notify.NewStdout()
			},
			func(tm *db.PgTxManager) *service.Repo {
				return service.NewRepo(tm)
			},
			service.NewAsync,
			func(a *service.Async) service.Sink { return a },
		),
		fx.Invoke(func(lc fx.Lifecycle, a *service.Async, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					a.Start(ctx)
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
