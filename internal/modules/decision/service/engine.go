package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"trade_agent/internal/models"
	"trade_agent/internal/modules/config"
	"trade_agent/internal/modules/metrics"
	modelsvc "trade_agent/internal/modules/model/service"
	stratsvc "trade_agent/internal/modules/strategy/service"
	"trade_agent/pkg/logger"
)

// EquityProvider — леджер отдаёт текущий equity для сайзинга.
type EquityProvider interface {
	Equity() float64
}

// Engine превращает наблюдение в решение (или nil — hold).
// Хэндлы модели/стратегии читаются из реестров на каждом вызове,
// их горячая смена не ломает решение в полёте.
type Engine struct {
	cfg    config.DecisionConfig
	mdl    *modelsvc.Registry
	strat  *stratsvc.Registry
	equity EquityProvider
	mtx    *metrics.Metrics
}

func NewEngine(
	cfg config.DecisionConfig,
	mdl *modelsvc.Registry,
	strat *stratsvc.Registry,
	equity EquityProvider,
	mtx *metrics.Metrics,
) *Engine {
	return &Engine{cfg: cfg, mdl: mdl, strat: strat, equity: equity, mtx: mtx}
}

// Decide — Decision | nil. Ошибка модели не фатальна: логируется,
// тик продолжается как hold.
func (e *Engine) Decide(ctx context.Context, obs models.Observation) (*models.Decision, error) {
	handle := e.mdl.Current()
	strat := e.strat.Current()

	scoreCtx, cancel := context.WithTimeout(ctx, e.cfg.ModelTimeout)
	defer cancel()

	cands, err := handle.Score(scoreCtx, obs)
	if err != nil {
		e.countDecision(models.ActionHold)
		return nil, errors.Wrapf(err, "model %s score failed", handle.Version())
	}

	cands = strat.Screen(cands)

	// порог уверенности; Screen уже отсортировал по (confidence desc, asset asc)
	best := (*models.Candidate)(nil)
	for i := range cands {
		if cands[i].Confidence >= e.cfg.ConfidenceThreshold {
			best = &cands[i]
			break
		}
	}
	if best == nil {
		e.countDecision(models.ActionHold)
		return nil, nil
	}

	size := strat.Params().SizeFraction * e.equity.Equity()
	if size <= 0 {
		logger.Error("decision sizing produced %v, holding", size)
		e.countDecision(models.ActionHold)
		return nil, nil
	}

	d := &models.Decision{
		Ref:          uuid.New().String(),
		AssetID:      best.AssetID,
		Action:       best.Action,
		Size:         size,
		Confidence:   best.Confidence,
		ModelVersion: handle.Version(),
		ProducedAt:   time.Now().UTC(),
	}
	e.countDecision(d.Action)
	return d, nil
}

func (e *Engine) countDecision(a models.Action) {
	if e.mtx != nil {
		e.mtx.Decisions.WithLabelValues(string(a)).Inc()
	}
}
