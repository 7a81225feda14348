package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Metrics — прометеевские коллекторы агента. Регистрируются один раз,
// обновляются из леджера/исполнителя/планировщика.
type Metrics struct {
	Decisions    *prometheus.CounterVec // action: buy|sell|hold
	RiskVerdicts *prometheus.CounterVec // verdict: approved|rejected
	Executions   *prometheus.CounterVec // status: filled|partially_filled|rejected|timed_out
	CycleRuns    *prometheus.CounterVec // cycle: retrain|review|evolve; outcome: ok|failed|deferred

	EquityUSD prometheus.Gauge
	Drawdown  prometheus.Gauge
	DailyPnL  prometheus.Gauge
	Halted    prometheus.Gauge // 1 когда активен любой из халтов
}

func New() *Metrics {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_decisions_total",
				Help: "Decisions produced by the decision engine",
			},
			[]string{"action"},
		),
		RiskVerdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_risk_verdicts_total",
				Help: "Risk ledger verdicts",
			},
			[]string{"verdict"},
		),
		Executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_executions_total",
				Help: "Execution results by status",
			},
			[]string{"status"},
		),
		CycleRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_cycle_runs_total",
				Help: "Self-improvement cycle runs",
			},
			[]string{"cycle", "outcome"},
		),
		EquityUSD: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agent_equity_usd",
			Help: "Equity in quote currency",
		}),
		Drawdown: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agent_drawdown",
			Help: "Current drawdown from the equity high-water mark",
		}),
		DailyPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agent_daily_realized_pnl",
			Help: "Realized PnL for the current trading day",
		}),
		Halted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agent_halted",
			Help: "1 while a loss/drawdown halt is active",
		}),
	}

	prometheus.MustRegister(
		m.Decisions, m.RiskVerdicts, m.Executions, m.CycleRuns,
		m.EquityUSD, m.Drawdown, m.DailyPnL, m.Halted,
	)

	return m
}

func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(
			New,
		),
	)
}
