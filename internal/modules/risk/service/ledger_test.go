package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trade_agent/internal/models"
	"trade_agent/internal/modules/config"
)

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		InitialCapital:  10000,
		MaxPositionSize: 0.05,
		DailyLossLimit:  0.02,
		MaxDrawdown:     0.10,
	}
}

func buy(ref string, size float64) models.Decision {
	return models.Decision{Ref: ref, AssetID: "BTC-USD", Action: models.ActionBuy, Size: size, Confidence: 0.9}
}

func sell(ref string, size float64) models.Decision {
	return models.Decision{Ref: ref, AssetID: "BTC-USD", Action: models.ActionSell, Size: size, Confidence: 0.9}
}

func filled(ref string, action models.Action, price, qty float64) models.ExecutionResult {
	return models.ExecutionResult{
		DecisionRef:    ref,
		AssetID:        "BTC-USD",
		Action:         action,
		Status:         models.ExecFilled,
		FillPrice:      price,
		FilledQuantity: qty,
		CompletedAt:    time.Now().UTC(),
	}
}

func TestLedgerEvaluate(t *testing.T) {
	t.Run("approves buy within limits", func(t *testing.T) {
		l := NewLedger(testRiskConfig(), nil, nil)
		v := l.Evaluate(buy("d1", 400))
		require.True(t, v.Approved, v.Reason)
	})

	t.Run("rejects non-positive size", func(t *testing.T) {
		l := NewLedger(testRiskConfig(), nil, nil)
		v := l.Evaluate(buy("d1", 0))
		require.False(t, v.Approved)
		require.Equal(t, "size must be positive", v.Reason)
	})

	t.Run("rejects size above max position fraction of equity", func(t *testing.T) {
		l := NewLedger(testRiskConfig(), nil, nil)
		// 0.05 * 10000 = 500
		v := l.Evaluate(buy("d1", 600))
		require.False(t, v.Approved)
		require.Equal(t, "max_position_size exceeded", v.Reason)
	})

	t.Run("rejects sell without position", func(t *testing.T) {
		l := NewLedger(testRiskConfig(), nil, nil)
		v := l.Evaluate(sell("d1", 100))
		require.False(t, v.Approved)
		require.Equal(t, "no position to sell", v.Reason)
	})

	t.Run("rejects hold", func(t *testing.T) {
		l := NewLedger(testRiskConfig(), nil, nil)
		v := l.Evaluate(models.Decision{Ref: "d1", AssetID: "BTC-USD", Action: models.ActionHold, Size: 100})
		require.False(t, v.Approved)
	})
}

func TestLedgerReservations(t *testing.T) {
	t.Run("concurrent approvals cannot oversubscribe asset cap", func(t *testing.T) {
		l := NewLedger(testRiskConfig(), nil, nil)

		// per-asset cap = 0.05 * 10000 = 500; first 300 reserves,
		// second 300 must not pass the check-then-act window
		require.True(t, l.Evaluate(buy("d1", 300)).Approved)
		v := l.Evaluate(buy("d2", 300))
		require.False(t, v.Approved)
		require.Equal(t, "per-asset cap exceeded", v.Reason)
	})

	t.Run("rejected execution releases the reservation", func(t *testing.T) {
		l := NewLedger(testRiskConfig(), nil, nil)

		require.True(t, l.Evaluate(buy("d1", 300)).Approved)
		res := filled("d1", models.ActionBuy, 100, 0)
		res.Status = models.ExecRejected
		l.Record(res)

		require.True(t, l.Evaluate(buy("d2", 300)).Approved)
	})

	t.Run("sell reservation blocks double liquidation", func(t *testing.T) {
		l := NewLedger(testRiskConfig(), nil, nil)
		require.True(t, l.Evaluate(buy("d1", 400)).Approved)
		l.Record(filled("d1", models.ActionBuy, 100, 4))

		require.True(t, l.Evaluate(sell("d2", 400)).Approved)
		v := l.Evaluate(sell("d3", 400))
		require.False(t, v.Approved)
		require.Equal(t, "insufficient position", v.Reason)
	})
}

func TestLedgerRecord(t *testing.T) {
	t.Run("buy fill moves capital into position", func(t *testing.T) {
		l := NewLedger(testRiskConfig(), nil, nil)
		require.True(t, l.Evaluate(buy("d1", 400)).Approved)

		out := l.Record(filled("d1", models.ActionBuy, 100, 4))
		require.False(t, out.Duplicate)
		require.InDelta(t, 10000, out.Equity, 1e-9)

		p := l.Position("BTC-USD")
		require.InDelta(t, 4, p.Quantity, 1e-9)
		require.InDelta(t, 100, p.EntryPrice, 1e-9)
		require.InDelta(t, 9600, l.Capital().AvailableCapital, 1e-9)
	})

	t.Run("sell fill realizes pnl", func(t *testing.T) {
		l := NewLedger(testRiskConfig(), nil, nil)
		require.True(t, l.Evaluate(buy("d1", 400)).Approved)
		l.Record(filled("d1", models.ActionBuy, 100, 4))

		require.True(t, l.Evaluate(sell("d2", 400)).Approved)
		out := l.Record(filled("d2", models.ActionSell, 110, 4))
		require.InDelta(t, 40, out.RealizedPnL, 1e-9)
		require.InDelta(t, 10040, out.Equity, 1e-9)
		require.Zero(t, l.Position("BTC-USD").Quantity)
	})

	t.Run("duplicate record is a no-op", func(t *testing.T) {
		l := NewLedger(testRiskConfig(), nil, nil)
		require.True(t, l.Evaluate(buy("d1", 400)).Approved)

		first := l.Record(filled("d1", models.ActionBuy, 100, 4))
		second := l.Record(filled("d1", models.ActionBuy, 100, 4))
		require.False(t, first.Duplicate)
		require.True(t, second.Duplicate)
		require.InDelta(t, 4, l.Position("BTC-USD").Quantity, 1e-9)
		require.InDelta(t, first.Equity, second.Equity, 1e-9)
	})

	t.Run("timed out leaves state untouched and stays recordable", func(t *testing.T) {
		l := NewLedger(testRiskConfig(), nil, nil)
		require.True(t, l.Evaluate(buy("d1", 400)).Approved)

		to := filled("d1", models.ActionBuy, 0, 0)
		to.Status = models.ExecTimedOut
		out := l.Record(to)
		require.Zero(t, out.RealizedPnL)
		require.Zero(t, l.Position("BTC-USD").Quantity)
		require.InDelta(t, 10000, l.Capital().AvailableCapital, 1e-9)

		// реконсиляция позже выяснила, что ордер всё же исполнился
		out = l.Record(filled("d1", models.ActionBuy, 100, 4))
		require.False(t, out.Duplicate)
		require.InDelta(t, 4, l.Position("BTC-USD").Quantity, 1e-9)
	})

	t.Run("partial fill applies only the executed quantity", func(t *testing.T) {
		l := NewLedger(testRiskConfig(), nil, nil)
		require.True(t, l.Evaluate(buy("d1", 400)).Approved)

		res := filled("d1", models.ActionBuy, 100, 2)
		res.Status = models.ExecPartiallyFilled
		l.Record(res)
		require.InDelta(t, 2, l.Position("BTC-USD").Quantity, 1e-9)
		require.InDelta(t, 9800, l.Capital().AvailableCapital, 1e-9)
	})
}

func TestLedgerDailyLossHalt(t *testing.T) {
	l := NewLedger(testRiskConfig(), nil, nil)

	// daily loss limit = 0.02 * 10000 = 200
	require.True(t, l.Evaluate(buy("d1", 400)).Approved)
	l.Record(filled("d1", models.ActionBuy, 100, 4))
	require.True(t, l.Evaluate(sell("d2", 400)).Approved)
	out := l.Record(filled("d2", models.ActionSell, 50, 4))
	require.InDelta(t, -200, out.RealizedPnL, 1e-9)
	require.True(t, l.Halted())

	t.Run("halt rejects new entries", func(t *testing.T) {
		v := l.Evaluate(buy("d3", 100))
		require.False(t, v.Approved)
		require.Equal(t, "risk halt active", v.Reason)
	})

	t.Run("halt still allows liquidation", func(t *testing.T) {
		// открываем позицию нельзя, но остаток продать можно — проверяем
		// на леджере с позицией и халтом
		l2 := NewLedger(testRiskConfig(), nil, nil)
		require.True(t, l2.Evaluate(buy("p1", 500)).Approved)
		l2.Record(filled("p1", models.ActionBuy, 100, 5))
		require.True(t, l2.Evaluate(sell("p2", 300)).Approved)
		l2.Record(filled("p2", models.ActionSell, 20, 3)) // -240 realized
		require.True(t, l2.Halted())

		v := l2.Evaluate(sell("p3", 40)) // остаток 2 по марку 20
		require.True(t, v.Approved, v.Reason)
	})

	t.Run("day rollover clears loss halt and daily pnl", func(t *testing.T) {
		tomorrow := time.Now().UTC().Add(24 * time.Hour)
		l.SetClock(func() time.Time { return tomorrow })

		v := l.Evaluate(buy("d4", 100))
		require.True(t, v.Approved, v.Reason)
		require.Zero(t, l.Capital().DailyRealizedPnL)
		require.False(t, l.Halted())
	})
}

func TestLedgerDrawdownHalt(t *testing.T) {
	cfg := config.RiskConfig{
		InitialCapital:  1000,
		MaxPositionSize: 0.9,
		DailyLossLimit:  0.99,
		MaxDrawdown:     0.10,
	}
	l := NewLedger(cfg, nil, nil)

	require.True(t, l.Evaluate(buy("d1", 500)).Approved)
	l.Record(filled("d1", models.ActionBuy, 100, 5))
	require.True(t, l.Evaluate(sell("d2", 500)).Approved)
	l.Record(filled("d2", models.ActionSell, 78, 5)) // equity 890, dd 11%
	require.True(t, l.Halted())

	t.Run("sticky across day rollover", func(t *testing.T) {
		l.SetClock(func() time.Time { return time.Now().UTC().Add(48 * time.Hour) })
		v := l.Evaluate(buy("d3", 50))
		require.False(t, v.Approved)
		require.Equal(t, "risk halt active", v.Reason)
	})

	t.Run("manual reset clears it", func(t *testing.T) {
		l.ResetDrawdownHalt()
		require.False(t, l.Halted())
		require.True(t, l.Evaluate(buy("d4", 50)).Approved)
	})
}

func TestLedgerSnapshotRestore(t *testing.T) {
	l := NewLedger(testRiskConfig(), nil, nil)
	require.True(t, l.Evaluate(buy("d1", 400)).Approved)
	l.Record(filled("d1", models.ActionBuy, 100, 4))

	raw, err := l.Snapshot()
	require.NoError(t, err)

	l2 := NewLedger(testRiskConfig(), nil, nil)
	require.NoError(t, l2.Restore(raw))
	require.InDelta(t, 4, l2.Position("BTC-USD").Quantity, 1e-9)
	require.InDelta(t, l.Equity(), l2.Equity(), 1e-9)
}
