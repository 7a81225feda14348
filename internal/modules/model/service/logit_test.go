package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trade_agent/internal/models"
)

func obsFrame(assetID string, features []float64) models.Observation {
	return models.Observation{
		Frames: map[string]models.FeatureFrame{
			assetID: {AssetID: assetID, Features: features, LastPrice: 100, Timestamp: time.Now().UTC()},
		},
		CapturedAt: time.Now().UTC(),
	}
}

func TestLogitModelScore(t *testing.T) {
	t.Run("one candidate per frame, confidence at least half", func(t *testing.T) {
		m := NewLogitModel(3, "logit-v1")
		cands, err := m.Score(context.Background(), obsFrame("BTC-USD", []float64{1, 2, 3}))
		require.NoError(t, err)
		require.Len(t, cands, 1)
		require.Equal(t, "BTC-USD", cands[0].AssetID)
		require.GreaterOrEqual(t, cands[0].Confidence, 0.5)
		require.LessOrEqual(t, cands[0].Confidence, 1.0)
		require.Contains(t, []models.Action{models.ActionBuy, models.ActionSell}, cands[0].Action)
	})

	t.Run("dimension mismatch is neutral", func(t *testing.T) {
		m := NewLogitModel(3, "logit-v1")
		cands, err := m.Score(context.Background(), obsFrame("BTC-USD", []float64{1}))
		require.NoError(t, err)
		require.Len(t, cands, 1)
		// predict отдаёт 0.5 — buy с минимальной уверенностью
		require.Equal(t, models.ActionBuy, cands[0].Action)
		require.InDelta(t, 0.5, cands[0].Confidence, 1e-9)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		m := NewLogitModel(3, "logit-v1")
		_, err := m.Score(ctx, obsFrame("BTC-USD", []float64{1, 2, 3}))
		require.Error(t, err)
	})
}

func TestLogitModelFit(t *testing.T) {
	// линейно разделимые данные: положительная фича -> up
	m := &LogitModel{W: make([]float64, 1), version: "logit-v1"}
	var (
		feats  [][]float64
		labels []float64
	)
	for i := 0; i < 50; i++ {
		feats = append(feats, []float64{1}, []float64{-1})
		labels = append(labels, 1, 0)
	}
	m.fit(feats, labels, 0.5, 50)

	require.Greater(t, m.predict([]float64{1}), 0.7)
	require.Less(t, m.predict([]float64{-1}), 0.3)
}

func TestLogitTrainer(t *testing.T) {
	win := func(action models.Action, pnl float64, features []float64) models.TradeOutcome {
		return models.TradeOutcome{
			Result: models.ExecutionResult{
				Action:         action,
				Status:         models.ExecFilled,
				FilledQuantity: 1,
			},
			RealizedPnL: pnl,
			Features:    features,
		}
	}

	t.Run("not enough outcomes", func(t *testing.T) {
		tr := NewLogitTrainer()
		snap := models.WindowSnapshot{Outcomes: []models.TradeOutcome{
			win(models.ActionBuy, 1, []float64{1, 0, 0}),
		}}
		_, err := tr.Train(context.Background(), snap, NewLogitModel(3, "logit-v1"))
		require.Error(t, err)
	})

	t.Run("trains a new version", func(t *testing.T) {
		tr := NewLogitTrainer()
		var outs []models.TradeOutcome
		for i := 0; i < 12; i++ {
			outs = append(outs, win(models.ActionBuy, 1, []float64{1, 0, 0}))
		}
		cur := NewLogitModel(3, "logit-v1")
		h, err := tr.Train(context.Background(), models.WindowSnapshot{Outcomes: outs}, cur)
		require.NoError(t, err)
		require.NotEqual(t, cur.Version(), h.Version())
		// текущая модель не мутирует при обучении
		require.Equal(t, "logit-v1", cur.Version())
	})

	t.Run("rejects foreign model", func(t *testing.T) {
		tr := NewLogitTrainer()
		var outs []models.TradeOutcome
		for i := 0; i < 12; i++ {
			outs = append(outs, win(models.ActionBuy, 1, []float64{1, 0, 0}))
		}
		_, err := tr.Train(context.Background(), models.WindowSnapshot{Outcomes: outs}, fakeHandle{})
		require.Error(t, err)
	})

	t.Run("skips unexecuted and featureless outcomes", func(t *testing.T) {
		tr := NewLogitTrainer()
		var outs []models.TradeOutcome
		for i := 0; i < 12; i++ {
			o := win(models.ActionBuy, 1, []float64{1, 0, 0})
			o.Result.Status = models.ExecTimedOut
			o.Result.FilledQuantity = 0
			outs = append(outs, o)
		}
		_, err := tr.Train(context.Background(), models.WindowSnapshot{Outcomes: outs}, NewLogitModel(3, "logit-v1"))
		require.Error(t, err)
	})
}

type fakeHandle struct{}

func (fakeHandle) Version() string { return "other" }
func (fakeHandle) Score(ctx context.Context, obs models.Observation) ([]models.Candidate, error) {
	return nil, nil
}
