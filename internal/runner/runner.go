package runner

import (
	"context"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"

	decisionsvc "trade_agent/internal/modules/decision/service"
	execsvc "trade_agent/internal/modules/execution/service"
	healthsvc "trade_agent/internal/modules/health/service"
	improvesvc "trade_agent/internal/modules/improve/service"
	obssvc "trade_agent/internal/modules/observer/service"
	risksvc "trade_agent/internal/modules/risk/service"
	"trade_agent/pkg/logger"
)

// Agent — верхний цикл: observe -> decide -> risk-check -> execute ->
// record -> onExecutionResult. Ни один упавший тик не валит процесс.
type Agent struct {
	tick   time.Duration
	obs    obssvc.Observer
	engine *decisionsvc.Engine
	ledger *risksvc.Ledger
	exec   *execsvc.Executor
	sched  *improvesvc.Scheduler
	state  *healthsvc.State

	quit chan struct{}
	wg   sync.WaitGroup
}

func New(
	tick time.Duration,
	obs obssvc.Observer,
	engine *decisionsvc.Engine,
	ledger *risksvc.Ledger,
	exec *execsvc.Executor,
	sched *improvesvc.Scheduler,
	state *healthsvc.State,
) *Agent {
	return &Agent{
		tick:   tick,
		obs:    obs,
		engine: engine,
		ledger: ledger,
		exec:   exec,
		sched:  sched,
		state:  state,
		quit:   make(chan struct{}),
	}
}

func (a *Agent) Run() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logger.Info("[AGENT] loop started, tick=%s", a.tick)
		ticker := time.NewTicker(a.tick)
		defer ticker.Stop()

		for {
			select {
			case <-a.quit:
				logger.Info("[AGENT] loop stopped")
				return
			case <-ticker.C:
				a.safeTick()
			}
		}
	}()
}

// Stop запрещает новые тики; тик в полёте (включая ожидание
// подтверждения на venue) дорабатывает до конца.
func (a *Agent) Stop() {
	close(a.quit)
	a.wg.Wait()
}

// safeTick: немоделированный сбой тика ловится на границе цикла.
func (a *Agent) safeTick() {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("[AGENT] tick panic recovered: %v", r)
		}
	}()

	span := opentracing.StartSpan("agent.tick")
	defer span.Finish()
	// тик живёт на собственном контексте: отмена приложения не должна
	// обрывать сабмит/подтверждение посреди двусмысленного состояния
	ctx := opentracing.ContextWithSpan(context.Background(), span)

	a.runTick(ctx, span)

	if a.state != nil {
		a.state.TouchTick(time.Now())
		a.state.SetHalted(a.ledger.Halted())
	}
}

func (a *Agent) runTick(ctx context.Context, span opentracing.Span) {
	obs, err := a.obs.Observe(ctx)
	if err != nil {
		// нет наблюдения — нет тика
		logger.Info("[AGENT] no observation this tick: %v", err)
		return
	}
	if a.state != nil {
		a.state.SetReady(true)
	}

	d, err := a.engine.Decide(ctx, obs)
	if err != nil {
		// ошибка движка решений нефатальна: тик продолжается как hold
		logger.Error("[AGENT] decision engine error: %v", err)
		return
	}
	if d == nil {
		return
	}
	span.SetTag("asset", d.AssetID)
	span.SetTag("action", string(d.Action))

	verdict := a.ledger.Evaluate(*d)
	if !verdict.Approved {
		logger.Info("[AGENT] %s %s rejected: %s", d.AssetID, d.Action, verdict.Reason)
		return
	}

	res := a.exec.Execute(ctx, *d)
	out := a.ledger.Record(res)
	if out.Duplicate {
		return
	}

	var features []float64
	if frame, ok := obs.Frame(d.AssetID); ok {
		features = frame.Features
	}
	a.sched.OnExecutionResult(res, out.RealizedPnL, features)

	logger.Info("[AGENT] %s %s %s | fill=%.6f qty=%.6f slippage=%.1fbps attempts=%d realized=%.2f equity=%.2f",
		d.AssetID, d.Action, res.Status,
		res.FillPrice, res.FilledQuantity, res.SlippageBps, res.Attempts,
		out.RealizedPnL, out.Equity,
	)
}
