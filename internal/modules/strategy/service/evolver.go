package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"trade_agent/internal/models"
)

// Evolver ищет новую стратегию по окну производительности.
type Evolver interface {
	Evolve(ctx context.Context, snap models.WindowSnapshot, current Handle) (Handle, error)
}

const evolveMinTrades = 20

// HillClimbEvolver делает один жадный шаг по параметрам:
// плохое окно — ужимаемся (long-only, меньше кандидатов, меньше размер),
// хорошее — расширяемся. Детерминированно, без случайных мутаций.
type HillClimbEvolver struct {
	maxCandidatesCap int
	gens             atomic.Int64
}

func NewHillClimbEvolver(maxCandidatesCap int) *HillClimbEvolver {
	return &HillClimbEvolver{maxCandidatesCap: maxCandidatesCap}
}

func (e *HillClimbEvolver) Evolve(ctx context.Context, snap models.WindowSnapshot, current Handle) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(snap.Outcomes) < evolveMinTrades {
		return nil, errors.Errorf("not enough trades to evolve: %d < %d", len(snap.Outcomes), evolveMinTrades)
	}

	pnls := snap.PnLs()
	wins := 0
	for _, p := range pnls {
		if p > 0 {
			wins++
		}
	}
	winRate := float64(wins) / float64(len(pnls))
	meanPnL, err := stats.Mean(pnls)
	if err != nil {
		return nil, errors.Wrap(err, "window stats")
	}

	p := current.Params()
	switch {
	case winRate < 0.45 || meanPnL < 0:
		p.LongOnly = true
		if p.MaxCandidates > 1 {
			p.MaxCandidates--
		}
		p.SizeFraction *= 0.8
	case winRate > 0.55:
		p.LongOnly = false
		if p.MaxCandidates < e.maxCandidatesCap {
			p.MaxCandidates++
		}
		if p.SizeFraction*1.1 <= 0.05 {
			p.SizeFraction *= 1.1
		}
	default:
		return nil, errors.New("window inconclusive, keeping current strategy")
	}

	n := e.gens.Add(1)
	return NewRuleStrategy(fmt.Sprintf("strat-v%d", n+1), p), nil
}
