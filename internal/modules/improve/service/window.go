package service

import (
	"sync"
	"time"

	"trade_agent/internal/models"
)

// Window — кольцо последних N исходов. Владеет планировщик,
// остальным отдаются только снапшоты.
type Window struct {
	mu     sync.Mutex
	buf    []models.TradeOutcome
	next   int
	filled bool
	trades int64
}

func NewWindow(size int) *Window {
	if size <= 0 {
		size = 500
	}
	return &Window{buf: make([]models.TradeOutcome, size)}
}

func (w *Window) Add(o models.TradeOutcome) {
	if o.At.IsZero() {
		o.At = time.Now().UTC()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf[w.next] = o
	w.next = (w.next + 1) % len(w.buf)
	if w.next == 0 {
		w.filled = true
	}
	w.trades++
}

// TradeCount — всего записанных исходов с момента старта (не размер кольца).
func (w *Window) TradeCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.trades
}

// Snapshot отдаёт копию окна в хронологическом порядке.
func (w *Window) Snapshot() models.WindowSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []models.TradeOutcome
	if w.filled {
		out = append(out, w.buf[w.next:]...)
		out = append(out, w.buf[:w.next]...)
	} else {
		out = append(out, w.buf[:w.next]...)
	}

	snap := models.WindowSnapshot{Outcomes: out}
	if len(out) > 0 {
		snap.From = out[0].At
		snap.To = out[len(out)-1].At
	}
	return snap
}
