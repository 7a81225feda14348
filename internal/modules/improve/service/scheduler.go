package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"trade_agent/internal/models"
	auditsvc "trade_agent/internal/modules/audit/service"
	"trade_agent/internal/modules/config"
	"trade_agent/internal/modules/metrics"
	modelsvc "trade_agent/internal/modules/model/service"
	stratsvc "trade_agent/internal/modules/strategy/service"
	"trade_agent/pkg/logger"
)

const (
	CycleRetrain = "retrain"
	CycleReview  = "review"
	CycleEvolve  = "evolve"
)

// cycle — Idle -> Due -> Running -> Idle. Due, пришедший пока Running,
// откладывается: два Running одного цикла не пересекаются.
type cycle struct {
	name    string
	running atomic.Bool
}

func (c *cycle) tryStart() bool { return c.running.CompareAndSwap(false, true) }
func (c *cycle) finish()        { c.running.Store(false) }

// CycleEvent — результат Running-фазы, уезжает в apply-петлю планировщика.
// Свопы хэндлов делает только она, по одному за раз.
type CycleEvent struct {
	Cycle       string
	Err         error
	NewModel    modelsvc.Handle
	NewStrategy stratsvc.Handle
	Report      *Report
}

// Scheduler гоняет три независимых цикла самоулучшения, не блокируя
// торговые тики: Running-фазы уходят в отдельные горутины.
type Scheduler struct {
	cfg     config.ImproveConfig
	window  *Window
	models  *modelsvc.Registry
	strats  *stratsvc.Registry
	trainer modelsvc.Trainer
	evolver stratsvc.Evolver
	audit   auditsvc.Sink
	mtx     *metrics.Metrics

	retrain cycle
	review  cycle
	evolve  cycle

	events chan CycleEvent
	quit   chan struct{}
	wg     sync.WaitGroup
}

func NewScheduler(
	cfg config.ImproveConfig,
	models *modelsvc.Registry,
	strats *stratsvc.Registry,
	trainer modelsvc.Trainer,
	evolver stratsvc.Evolver,
	audit auditsvc.Sink,
	mtx *metrics.Metrics,
) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		window:  NewWindow(cfg.WindowSize),
		models:  models,
		strats:  strats,
		trainer: trainer,
		evolver: evolver,
		audit:   audit,
		mtx:     mtx,
		retrain: cycle{name: CycleRetrain},
		review:  cycle{name: CycleReview},
		evolve:  cycle{name: CycleEvolve},
		events:  make(chan CycleEvent, 16),
		quit:    make(chan struct{}),
	}
}

func (s *Scheduler) Window() *Window { return s.window }

// OnExecutionResult — каждый результат исполнения пополняет окно;
// каждые PerformanceReviewEvery сделок трипается ревью (по счётчику, не по времени).
func (s *Scheduler) OnExecutionResult(res models.ExecutionResult, realized float64, features []float64) {
	s.window.Add(models.TradeOutcome{
		Result:      res,
		RealizedPnL: realized,
		Features:    features,
		At:          res.CompletedAt,
	})

	every := int64(s.cfg.PerformanceReviewEvery)
	if every > 0 && s.window.TradeCount()%every == 0 {
		s.TriggerReview(context.Background())
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	// apply-петля: единственное место, где свопаются хэндлы
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.quit:
				return
			case ev := <-s.events:
				s.apply(ev)
			}
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.RetrainingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.quit:
				return
			case <-ticker.C:
				s.TriggerRetrain(ctx)
			}
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.StrategyEvolution)
		defer ticker.Stop()
		for {
			select {
			case <-s.quit:
				return
			case <-ticker.C:
				s.TriggerEvolve(ctx)
			}
		}
	}()
}

// Stop не даёт стартовать новым Running-фазам; начатые дорабатывают.
func (s *Scheduler) Stop() {
	close(s.quit)
	s.wg.Wait()
}

func (s *Scheduler) stopped() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}

// TriggerRetrain переводит цикл ретрейна в Running, если тот Idle.
// Возвращает false, когда Due отложен (цикл ещё работает или шатдаун).
func (s *Scheduler) TriggerRetrain(ctx context.Context) bool {
	if s.stopped() || !s.retrain.tryStart() {
		s.deferred(CycleRetrain)
		return false
	}
	go func() {
		defer s.retrain.finish()
		h, err := s.trainer.Train(ctx, s.window.Snapshot(), s.models.Current())
		s.emit(CycleEvent{Cycle: CycleRetrain, Err: err, NewModel: h})
	}()
	return true
}

func (s *Scheduler) TriggerEvolve(ctx context.Context) bool {
	if s.stopped() || !s.evolve.tryStart() {
		s.deferred(CycleEvolve)
		return false
	}
	go func() {
		defer s.evolve.finish()
		h, err := s.evolver.Evolve(ctx, s.window.Snapshot(), s.strats.Current())
		s.emit(CycleEvent{Cycle: CycleEvolve, Err: err, NewStrategy: h})
	}()
	return true
}

func (s *Scheduler) TriggerReview(ctx context.Context) bool {
	if s.stopped() || !s.review.tryStart() {
		s.deferred(CycleReview)
		return false
	}
	go func() {
		defer s.review.finish()
		report := BuildReport(s.window.Snapshot())
		s.emit(CycleEvent{Cycle: CycleReview, Report: &report})
	}()
	return true
}

func (s *Scheduler) emit(ev CycleEvent) {
	select {
	case s.events <- ev:
	case <-s.quit:
	}
}

func (s *Scheduler) apply(ev CycleEvent) {
	if ev.Err != nil {
		// неудача цикла не фатальна: остаёмся на прежних хэндлах
		logger.Error("[IMPROVE] %s cycle failed: %v", ev.Cycle, ev.Err)
		s.publish(auditsvc.KindCycleFailed, map[string]any{"cycle": ev.Cycle, "error": ev.Err.Error()})
		s.count(ev.Cycle, "failed")
		return
	}

	switch {
	case ev.NewModel != nil:
		s.models.Swap(ev.NewModel)
		logger.Info("[IMPROVE] model swapped to %s", ev.NewModel.Version())
		s.publish(auditsvc.KindCycleCompleted, map[string]any{"cycle": ev.Cycle, "model": ev.NewModel.Version()})

	case ev.NewStrategy != nil:
		s.strats.Swap(ev.NewStrategy)
		logger.Info("[IMPROVE] strategy swapped to %s", ev.NewStrategy.Version())
		s.publish(auditsvc.KindCycleCompleted, map[string]any{"cycle": ev.Cycle, "strategy": ev.NewStrategy.Version()})

	case ev.Report != nil:
		s.publish(auditsvc.KindReviewReport, ev.Report)

	default:
		s.publish(auditsvc.KindCycleCompleted, map[string]any{"cycle": ev.Cycle})
	}
	s.count(ev.Cycle, "ok")
}

func (s *Scheduler) publish(kind auditsvc.Kind, payload any) {
	if s.audit != nil {
		s.audit.Publish(auditsvc.Event{Kind: kind, Payload: payload})
	}
}

func (s *Scheduler) deferred(name string) {
	logger.Info("[IMPROVE] %s due deferred", name)
	s.count(name, "deferred")
}

func (s *Scheduler) count(cycle, outcome string) {
	if s.mtx != nil {
		s.mtx.CycleRuns.WithLabelValues(cycle, outcome).Inc()
	}
}
