package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trade_agent/internal/models"
)

func TestRuleStrategyScreen(t *testing.T) {
	cands := []models.Candidate{
		{AssetID: "SOL-USD", Action: models.ActionSell, Confidence: 0.9},
		{AssetID: "BTC-USD", Action: models.ActionBuy, Confidence: 0.8},
		{AssetID: "ETH-USD", Action: models.ActionBuy, Confidence: 0.8},
		{AssetID: "DOGE-USD", Action: models.ActionBuy, Confidence: 0.95},
	}

	t.Run("orders by confidence then asset id", func(t *testing.T) {
		s := NewRuleStrategy("v1", Params{})
		out := s.Screen(cands)
		require.Len(t, out, 4)
		require.Equal(t, "DOGE-USD", out[0].AssetID)
		require.Equal(t, "SOL-USD", out[1].AssetID)
		require.Equal(t, "BTC-USD", out[2].AssetID) // 0.8 tie: BTC < ETH
		require.Equal(t, "ETH-USD", out[3].AssetID)
	})

	t.Run("allowlist filters", func(t *testing.T) {
		s := NewRuleStrategy("v1", Params{Allowed: []string{"BTC-USD", "ETH-USD"}})
		out := s.Screen(cands)
		require.Len(t, out, 2)
		for _, c := range out {
			require.Contains(t, []string{"BTC-USD", "ETH-USD"}, c.AssetID)
		}
	})

	t.Run("long only drops sells", func(t *testing.T) {
		s := NewRuleStrategy("v1", Params{LongOnly: true})
		out := s.Screen(cands)
		for _, c := range out {
			require.NotEqual(t, models.ActionSell, c.Action)
		}
	})

	t.Run("caps candidate count", func(t *testing.T) {
		s := NewRuleStrategy("v1", Params{MaxCandidates: 2})
		out := s.Screen(cands)
		require.Len(t, out, 2)
		require.Equal(t, "DOGE-USD", out[0].AssetID)
	})
}

func TestRegistrySwap(t *testing.T) {
	r := NewRegistry(NewRuleStrategy("v1", Params{}))
	require.Equal(t, "v1", r.Current().Version())
	r.Swap(NewRuleStrategy("v2", Params{LongOnly: true}))
	require.Equal(t, "v2", r.Current().Version())
	require.True(t, r.Current().Params().LongOnly)
}

func losingWindow(n int) models.WindowSnapshot {
	return windowWithPnL(n, -1.0)
}

func windowWithPnL(n int, pnl float64) models.WindowSnapshot {
	out := make([]models.TradeOutcome, n)
	for i := range out {
		out[i] = models.TradeOutcome{
			Result:      models.ExecutionResult{Status: models.ExecFilled, FilledQuantity: 1},
			RealizedPnL: pnl,
			At:          time.Now().UTC(),
		}
	}
	return models.WindowSnapshot{Outcomes: out}
}

func TestHillClimbEvolver(t *testing.T) {
	base := Params{MaxCandidates: 3, SizeFraction: 0.02}

	t.Run("not enough trades", func(t *testing.T) {
		e := NewHillClimbEvolver(5)
		_, err := e.Evolve(context.Background(), losingWindow(5), NewRuleStrategy("v1", base))
		require.Error(t, err)
	})

	t.Run("losing window tightens", func(t *testing.T) {
		e := NewHillClimbEvolver(5)
		h, err := e.Evolve(context.Background(), losingWindow(30), NewRuleStrategy("v1", base))
		require.NoError(t, err)
		p := h.Params()
		require.True(t, p.LongOnly)
		require.Equal(t, 2, p.MaxCandidates)
		require.InDelta(t, 0.016, p.SizeFraction, 1e-9)
		require.NotEqual(t, "v1", h.Version())
	})

	t.Run("winning window widens", func(t *testing.T) {
		e := NewHillClimbEvolver(5)
		h, err := e.Evolve(context.Background(), windowWithPnL(30, 2.0), NewRuleStrategy("v1", base))
		require.NoError(t, err)
		p := h.Params()
		require.False(t, p.LongOnly)
		require.Equal(t, 4, p.MaxCandidates)
	})

	t.Run("inconclusive window keeps current", func(t *testing.T) {
		// половина в плюс, половина в минус, mean > 0 и winRate 0.5
		snap := windowWithPnL(30, 2.0)
		for i := 0; i < 15; i++ {
			snap.Outcomes[i].RealizedPnL = -1.9
		}
		e := NewHillClimbEvolver(5)
		_, err := e.Evolve(context.Background(), snap, NewRuleStrategy("v1", base))
		require.Error(t, err)
	})
}
