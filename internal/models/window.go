package models

import "time"

// TradeOutcome — одна запись скользящего окна производительности:
// результат исполнения + реализованный PnL + фичи наблюдения, породившего решение.
type TradeOutcome struct {
	Result      ExecutionResult
	RealizedPnL float64
	Features    []float64
	At          time.Time
}

// WindowSnapshot is a read-only copy of the performance window handed to the
// training and strategy-search capabilities. The scheduler owns the live ring.
type WindowSnapshot struct {
	Outcomes []TradeOutcome
	From     time.Time
	To       time.Time
}

func (s WindowSnapshot) PnLs() []float64 {
	out := make([]float64, 0, len(s.Outcomes))
	for _, o := range s.Outcomes {
		out = append(out, o.RealizedPnL)
	}
	return out
}
