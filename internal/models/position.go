package models

import "time"

// Position принадлежит риск-леджеру, никто больше её не мутирует.
type Position struct {
	AssetID    string
	Quantity   float64 // base units, всегда >= 0
	EntryPrice float64 // средняя цена входа
	OpenedAt   time.Time
}

// Notional returns the position value at the given mark price.
func (p Position) Notional(mark float64) float64 {
	if mark <= 0 {
		mark = p.EntryPrice
	}
	return p.Quantity * mark
}

// CapitalState — singleton per agent instance, single-writer (ledger only).
type CapitalState struct {
	AvailableCapital    float64
	EquityHighWaterMark float64
	DailyRealizedPnL    float64
	DayStart            time.Time // UTC trading-day start
}
