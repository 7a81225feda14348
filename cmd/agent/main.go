package main

import (
	"context"
	"trade_agent/internal/modules/audit"
	"trade_agent/internal/modules/config"
	"trade_agent/internal/modules/decision"
	"trade_agent/internal/modules/execution"
	"trade_agent/internal/modules/health"
	"trade_agent/internal/modules/improve"
	"trade_agent/internal/modules/metrics"
	"trade_agent/internal/modules/model"
	"trade_agent/internal/modules/observer"
	"trade_agent/internal/modules/postgres"
	"trade_agent/internal/modules/risk"
	"trade_agent/internal/modules/strategy"
	"trade_agent/internal/modules/venue"

	"trade_agent/internal/runner"
	"trade_agent/pkg/logger"
	"trade_agent/pkg/tracing"

	"go.uber.org/fx"
)

func main() {
	logger.Init()

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		postgres.Module(),
		metrics.Module(),
		audit.Module(),
		health.Module(),
		model.Module(),
		strategy.Module(),
		venue.Module(),
		observer.Module(),
		risk.Module(),
		decision.Module(),
		execution.Module(),
		improve.Module(),
		runner.Module(),
		fx.Invoke(initTracing),
	)
	// Run блокируется до сигнала и гасит модули в обратном порядке:
	// сперва цикл агента (тик в полёте дорабатывает), затем остальные.
	app.Run()
}

func initTracing(lc fx.Lifecycle, cfg *config.Config) {
	_, closeTracer, err := tracing.InitTracer(tracing.Config{
		Host: cfg.Jaeger.Host,
		Port: cfg.Jaeger.Port,
	})
	if err != nil {
		logger.Error("tracer init failed: %v", err)
		return
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			closeTracer()
			return nil
		},
	})
}
