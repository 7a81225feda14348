package service

import (
	"sync"
	"time"

	"trade_agent/internal/models"
	"trade_agent/internal/modules/audit/service"
	"trade_agent/internal/modules/config"
	"trade_agent/internal/modules/metrics"
)

type Verdict struct {
	Approved bool
	Reason   string
}

func approved() Verdict              { return Verdict{Approved: true} }
func rejected(reason string) Verdict { return Verdict{Reason: reason} }

// RecordOutcome — что запись дала по факту: реализованный PnL и equity
// после применения. Нужна окну производительности.
type RecordOutcome struct {
	RealizedPnL float64
	Equity      float64
	Duplicate   bool
}

// reservation держит capacity, выданную на одобренное, но ещё не
// исполненное решение. Закрывает гонку "проверили — действуем" между
// двумя конкурентными решениями по одному активу.
type reservation struct {
	assetID string
	action  models.Action
	size    float64 // quote notional (buy)
	qty     float64 // base quantity (sell)
}

// Ledger владеет CapitalState и позициями. Один writer на актив:
// evaluate и record по одному активу взаимоисключаются.
type Ledger struct {
	cfg   config.RiskConfig
	audit service.Sink
	mtx   *metrics.Metrics
	now   func() time.Time

	mu       sync.Mutex
	assetMu  map[string]*sync.Mutex
	capState models.CapitalState
	pos      map[string]*models.Position
	marks    map[string]float64
	reserved map[string]reservation // decision ref -> reservation
	seen     map[string]struct{}    // исполненные decision ref (дедуп)

	lossHalt bool // day-scoped
	ddHalt   bool // sticky, только ручной сброс
}

func NewLedger(cfg config.RiskConfig, sink service.Sink, mtx *metrics.Metrics) *Ledger {
	now := time.Now().UTC()
	return &Ledger{
		cfg:   cfg,
		audit: sink,
		mtx:   mtx,
		now:   func() time.Time { return time.Now().UTC() },
		capState: models.CapitalState{
			AvailableCapital:    cfg.InitialCapital,
			EquityHighWaterMark: cfg.InitialCapital,
			DayStart:            startOfDay(now),
		},
		assetMu:  make(map[string]*sync.Mutex),
		pos:      make(map[string]*models.Position),
		marks:    make(map[string]float64),
		reserved: make(map[string]reservation),
		seen:     make(map[string]struct{}),
	}
}

// SetClock подменяет часы (тесты роллловера дня).
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (l *Ledger) assetLock(assetID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	am, ok := l.assetMu[assetID]
	if !ok {
		am = &sync.Mutex{}
		l.assetMu[assetID] = am
	}
	return am
}

// Evaluate — Approved | Rejected(reason). Side effect: на Approved
// резервируется капитал/количество до записи результата.
func (l *Ledger) Evaluate(d models.Decision) Verdict {
	am := l.assetLock(d.AssetID)
	am.Lock()
	defer am.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.rolloverLocked()

	v := l.evaluateLocked(d)

	l.publish(service.KindDecisionEvaluated, map[string]any{
		"ref":        d.Ref,
		"asset":      d.AssetID,
		"action":     d.Action,
		"size":       d.Size,
		"confidence": d.Confidence,
		"model":      d.ModelVersion,
		"approved":   v.Approved,
		"reason":     v.Reason,
	})
	if l.mtx != nil {
		verdict := "rejected"
		if v.Approved {
			verdict = "approved"
		}
		l.mtx.RiskVerdicts.WithLabelValues(verdict).Inc()
	}
	return v
}

func (l *Ledger) evaluateLocked(d models.Decision) Verdict {
	if d.Size <= 0 {
		return rejected("size must be positive")
	}

	liquidating := false
	p := l.pos[d.AssetID]
	if d.Action == models.ActionSell && p != nil && p.Quantity > 0 {
		liquidating = true
	}

	if (l.lossHalt || l.ddHalt) && !liquidating {
		return rejected("risk halt active")
	}

	equity := l.equityLocked()
	if d.Size > l.cfg.MaxPositionSize*equity {
		return rejected("max_position_size exceeded")
	}

	switch d.Action {
	case models.ActionBuy:
		assetCap := l.cfg.MaxPositionSize * l.cfg.InitialCapital
		current := 0.0
		if p != nil {
			current = p.Notional(l.marks[d.AssetID])
		}
		if current+l.reservedNotional(d.AssetID)+d.Size > assetCap {
			return rejected("per-asset cap exceeded")
		}
		if d.Size > l.capState.AvailableCapital-l.reservedBuyTotal() {
			return rejected("insufficient capital")
		}
		l.reserved[d.Ref] = reservation{assetID: d.AssetID, action: d.Action, size: d.Size}

	case models.ActionSell:
		if !liquidating {
			return rejected("no position to sell")
		}
		mark := l.marks[d.AssetID]
		if mark <= 0 {
			mark = p.EntryPrice
		}
		qty := d.Size / mark
		if qty > p.Quantity-l.reservedQty(d.AssetID) {
			return rejected("insufficient position")
		}
		l.reserved[d.Ref] = reservation{assetID: d.AssetID, action: d.Action, qty: qty}

	default:
		return rejected("hold is not executable")
	}

	return approved()
}

// Record применяет результат исполнения. Дедуп по decision ref:
// повторная запись фактически исполнившегося результата — no-op.
func (l *Ledger) Record(res models.ExecutionResult) RecordOutcome {
	am := l.assetLock(res.AssetID)
	am.Lock()
	defer am.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.rolloverLocked()

	if _, dup := l.seen[res.DecisionRef]; dup {
		l.publish(service.KindResultRecorded, map[string]any{
			"ref": res.DecisionRef, "status": res.Status, "duplicate": true,
		})
		return RecordOutcome{Equity: l.equityLocked(), Duplicate: true}
	}

	delete(l.reserved, res.DecisionRef)

	out := RecordOutcome{}
	switch res.Status {
	case models.ExecRejected:
		// venue отверг — капитал просто возвращается из резерва
	case models.ExecTimedOut:
		// неоднозначно: позиция не трогается, разбор на реконсиляции
		l.publish(service.KindReconcileNeeded, map[string]any{
			"ref": res.DecisionRef, "asset": res.AssetID, "action": res.Action,
		})
	default:
		if res.Executed() {
			l.seen[res.DecisionRef] = struct{}{}
			out.RealizedPnL = l.applyFillLocked(res)
		}
	}

	equity := l.equityLocked()
	if equity > l.capState.EquityHighWaterMark {
		l.capState.EquityHighWaterMark = equity
	}
	l.checkHaltsLocked(equity)
	out.Equity = equity

	l.publish(service.KindResultRecorded, map[string]any{
		"ref":      res.DecisionRef,
		"asset":    res.AssetID,
		"status":   res.Status,
		"fill":     res.FillPrice,
		"qty":      res.FilledQuantity,
		"slippage": res.SlippageBps,
		"attempts": res.Attempts,
		"realized": out.RealizedPnL,
		"equity":   equity,
	})
	l.updateMetricsLocked(res, equity)

	return out
}

func (l *Ledger) applyFillLocked(res models.ExecutionResult) (realized float64) {
	l.marks[res.AssetID] = res.FillPrice

	switch res.Action {
	case models.ActionBuy:
		cost := res.FilledQuantity * res.FillPrice
		l.capState.AvailableCapital -= cost
		if l.capState.AvailableCapital < 0 {
			l.capState.AvailableCapital = 0
		}
		p := l.pos[res.AssetID]
		if p == nil {
			l.pos[res.AssetID] = &models.Position{
				AssetID:    res.AssetID,
				Quantity:   res.FilledQuantity,
				EntryPrice: res.FillPrice,
				OpenedAt:   res.CompletedAt,
			}
		} else {
			total := p.Quantity + res.FilledQuantity
			p.EntryPrice = (p.EntryPrice*p.Quantity + cost) / total
			p.Quantity = total
		}

	case models.ActionSell:
		p := l.pos[res.AssetID]
		if p == nil || p.Quantity <= 0 {
			return 0
		}
		qty := res.FilledQuantity
		if qty > p.Quantity {
			qty = p.Quantity
		}
		realized = (res.FillPrice - p.EntryPrice) * qty
		l.capState.AvailableCapital += qty * res.FillPrice
		l.capState.DailyRealizedPnL += realized
		p.Quantity -= qty
		if p.Quantity <= 1e-12 {
			delete(l.pos, res.AssetID)
		}
	}
	return realized
}

func (l *Ledger) checkHaltsLocked(equity float64) {
	if !l.lossHalt && l.capState.DailyRealizedPnL <= -l.cfg.DailyLossLimit*l.cfg.InitialCapital {
		l.lossHalt = true
		l.publish(service.KindHaltActivated, map[string]any{
			"kind": "daily_loss", "daily_pnl": l.capState.DailyRealizedPnL,
		})
	}
	if !l.ddHalt && l.capState.EquityHighWaterMark > 0 {
		dd := (l.capState.EquityHighWaterMark - equity) / l.capState.EquityHighWaterMark
		if dd >= l.cfg.MaxDrawdown {
			l.ddHalt = true
			l.publish(service.KindHaltActivated, map[string]any{
				"kind": "drawdown", "drawdown": dd,
			})
		}
	}
}

// rolloverLocked: новый торговый день — дневной PnL и day-scoped халт
// обнуляются. Drawdown-халт липкий, день его не снимает.
func (l *Ledger) rolloverLocked() {
	day := startOfDay(l.now())
	if day.After(l.capState.DayStart) {
		l.capState.DayStart = day
		l.capState.DailyRealizedPnL = 0
		if l.lossHalt {
			l.lossHalt = false
			l.publish(service.KindHaltCleared, map[string]any{"kind": "daily_loss"})
		}
	}
}

// ResetDrawdownHalt — ручной сброс липкого халта.
func (l *Ledger) ResetDrawdownHalt() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ddHalt {
		l.ddHalt = false
		l.publish(service.KindHaltCleared, map[string]any{"kind": "drawdown"})
	}
}

func (l *Ledger) equityLocked() float64 {
	eq := l.capState.AvailableCapital
	for id, p := range l.pos {
		eq += p.Notional(l.marks[id])
	}
	return eq
}

func (l *Ledger) reservedNotional(assetID string) float64 {
	total := 0.0
	for _, r := range l.reserved {
		if r.assetID == assetID && r.action == models.ActionBuy {
			total += r.size
		}
	}
	return total
}

func (l *Ledger) reservedBuyTotal() float64 {
	total := 0.0
	for _, r := range l.reserved {
		if r.action == models.ActionBuy {
			total += r.size
		}
	}
	return total
}

func (l *Ledger) reservedQty(assetID string) float64 {
	total := 0.0
	for _, r := range l.reserved {
		if r.assetID == assetID && r.action == models.ActionSell {
			total += r.qty
		}
	}
	return total
}

// Equity — для сайзинга в движке решений.
func (l *Ledger) Equity() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.equityLocked()
}

// Halted — активен ли любой из халтов.
func (l *Ledger) Halted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lossHalt || l.ddHalt
}

// Position возвращает копию позиции (пустую, если её нет).
func (l *Ledger) Position(assetID string) models.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p := l.pos[assetID]; p != nil {
		return *p
	}
	return models.Position{AssetID: assetID}
}

// Capital возвращает копию состояния капитала.
func (l *Ledger) Capital() models.CapitalState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.capState
}

func (l *Ledger) publish(kind service.Kind, payload map[string]any) {
	if l.audit != nil {
		l.audit.Publish(service.Event{Kind: kind, Payload: payload})
	}
}

func (l *Ledger) updateMetricsLocked(res models.ExecutionResult, equity float64) {
	if l.mtx == nil {
		return
	}
	l.mtx.Executions.WithLabelValues(string(res.Status)).Inc()
	l.mtx.EquityUSD.Set(equity)
	l.mtx.DailyPnL.Set(l.capState.DailyRealizedPnL)
	if l.capState.EquityHighWaterMark > 0 {
		l.mtx.Drawdown.Set((l.capState.EquityHighWaterMark - equity) / l.capState.EquityHighWaterMark)
	}
	if l.lossHalt || l.ddHalt {
		l.mtx.Halted.Set(1)
	} else {
		l.mtx.Halted.Set(0)
	}
}
