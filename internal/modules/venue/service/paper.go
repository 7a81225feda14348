package service

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"trade_agent/internal/models"
)

// PaperVenue симулирует исполнение по последней известной цене.
// Цены заливает источник наблюдений через SetPrice.
type PaperVenue struct {
	mu      sync.Mutex
	prices  map[string]float64
	orders  map[string]*paperOrder // by ref
	slipBps float64                // постоянный "рыночный" слиппедж симуляции
	latency time.Duration          // задержка подтверждения
}

type paperOrder struct {
	order   Order
	fill    Fill
	readyAt time.Time
}

func NewPaperVenue(slipBps float64, latency time.Duration) *PaperVenue {
	return &PaperVenue{
		prices:  make(map[string]float64),
		orders:  make(map[string]*paperOrder),
		slipBps: slipBps,
		latency: latency,
	}
}

func (p *PaperVenue) Name() string { return "paper" }

func (p *PaperVenue) SetPrice(assetID string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[assetID] = price
}

func (p *PaperVenue) Submit(ctx context.Context, o Order) (Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// идемпотентность: повторный сабмит того же ref возвращает тот же ордер
	if existing, ok := p.orders[o.Ref]; ok {
		return Receipt{Ref: o.Ref, VenueID: existing.fillID(), SubmittedAt: time.Now().UTC()}, nil
	}

	price := p.prices[o.AssetID]
	if price <= 0 {
		return Receipt{}, errors.Errorf("paper venue has no price for %s", o.AssetID)
	}

	side := 1.0
	if o.Action == models.ActionSell {
		side = -1.0
	}
	fillPrice := price * (1 + side*p.slipBps/10000)

	po := &paperOrder{
		order: o,
		fill: Fill{
			Price:       fillPrice,
			Quantity:    o.Size / fillPrice,
			SlippageBps: math.Abs(fillPrice-price) / price * 10000,
			Complete:    true,
		},
		readyAt: time.Now().Add(p.latency),
	}
	p.orders[o.Ref] = po

	return Receipt{Ref: o.Ref, VenueID: uuid.New().String(), SubmittedAt: time.Now().UTC()}, nil
}

func (po *paperOrder) fillID() string { return po.order.Ref }

func (p *PaperVenue) Confirm(ctx context.Context, r Receipt, timeout time.Duration) (Fill, error) {
	deadline := time.Now().Add(timeout)
	for {
		p.mu.Lock()
		po, ok := p.orders[r.Ref]
		p.mu.Unlock()
		if !ok {
			return Fill{}, errors.Errorf("unknown order %s", r.Ref)
		}
		if time.Now().After(po.readyAt) {
			return po.fill, nil
		}
		if time.Now().After(deadline) {
			return Fill{}, ErrPending
		}
		select {
		case <-ctx.Done():
			return Fill{}, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (p *PaperVenue) Cancel(ctx context.Context, r Receipt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.orders, r.Ref)
	return nil
}

func (p *PaperVenue) Lookup(ctx context.Context, ref string) (*Fill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	po, ok := p.orders[ref]
	if !ok {
		return nil, nil
	}
	if time.Now().After(po.readyAt) {
		f := po.fill
		return &f, nil
	}
	return nil, nil
}

func (p *PaperVenue) SupportsCancel() bool { return true }
