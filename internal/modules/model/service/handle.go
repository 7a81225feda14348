package service

import (
	"context"
	"sync/atomic"

	"trade_agent/internal/models"
)

// Handle — версионированная скоринг-способность. Движок решений никогда не
// владеет хэндлом: берёт текущий из Registry на каждом тике.
type Handle interface {
	Version() string
	Score(ctx context.Context, obs models.Observation) ([]models.Candidate, error)
}

// Trainer обучает новый хэндл на скользящем окне. Неудача не фатальна —
// планировщик остаётся на прежней модели.
type Trainer interface {
	Train(ctx context.Context, snap models.WindowSnapshot, current Handle) (Handle, error)
}

// Registry — atomic pointer-swap, читатель никогда не видит полусмены.
type Registry struct {
	cur atomic.Pointer[Handle]
}

func NewRegistry(initial Handle) *Registry {
	r := &Registry{}
	r.cur.Store(&initial)
	return r
}

func (r *Registry) Current() Handle {
	return *r.cur.Load()
}

func (r *Registry) Swap(h Handle) {
	r.cur.Store(&h)
}
