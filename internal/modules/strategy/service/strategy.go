package service

import (
	"sort"
	"sync/atomic"

	"trade_agent/internal/models"
)

// Params параметризуют генерацию кандидатов, не веса модели.
type Params struct {
	MaxCandidates int
	LongOnly      bool
	Allowed       []string // пустой = весь universe
	SizeFraction  float64  // доля equity на одну заявку
}

// Handle — версионированная стратегия. Swap атомарный, через Registry.
type Handle interface {
	Version() string
	Params() Params
	// Screen фильтрует и упорядочивает сырых кандидатов модели.
	Screen(cands []models.Candidate) []models.Candidate
}

type RuleStrategy struct {
	version string
	params  Params
	allowed map[string]struct{}
}

func NewRuleStrategy(version string, p Params) *RuleStrategy {
	allowed := make(map[string]struct{}, len(p.Allowed))
	for _, a := range p.Allowed {
		allowed[a] = struct{}{}
	}
	return &RuleStrategy{version: version, params: p, allowed: allowed}
}

func (s *RuleStrategy) Version() string { return s.version }
func (s *RuleStrategy) Params() Params  { return s.params }

func (s *RuleStrategy) Screen(cands []models.Candidate) []models.Candidate {
	out := make([]models.Candidate, 0, len(cands))
	for _, c := range cands {
		if len(s.allowed) > 0 {
			if _, ok := s.allowed[c.AssetID]; !ok {
				continue
			}
		}
		if s.params.LongOnly && c.Action == models.ActionSell {
			continue
		}
		out = append(out, c)
	}

	// уверенность по убыванию, при равенстве — меньший asset_id (детерминизм)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].AssetID < out[j].AssetID
	})

	if s.params.MaxCandidates > 0 && len(out) > s.params.MaxCandidates {
		out = out[:s.params.MaxCandidates]
	}
	return out
}

// Registry — atomic pointer-swap для хэндла стратегии.
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
