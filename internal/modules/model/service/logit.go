package service

import (
	"context"
	"math"
	"math/rand"

	"trade_agent/internal/models"
)

// LogitModel — крошечная логистическая регрессия поверх фич наблюдения.
// Предсказывает pUp; buy при pUp>=0.5 с уверенностью pUp, иначе sell
// с уверенностью 1-pUp. Hold модель не выдаёт: hold — это отсутствие решения.
type LogitModel struct {
	W       []float64
	B       float64
	version string
}

func NewLogitModel(dim int, version string) *LogitModel {
	w := make([]float64, dim)
	for i := range w {
		w[i] = rand.NormFloat64() * 0.01
	}
	return &LogitModel{W: w, version: version}
}

func (m *LogitModel) Version() string { return m.version }

// sigmoid returns 1/(1+e^-x) with simple clamping for numerical stability.
func sigmoid(x float64) float64 {
	if x > 20 {
		return 1
	}
	if x < -20 {
		return 0
	}
	return 1 / (1 + math.Exp(-x))
}

func (m *LogitModel) predict(features []float64) float64 {
	if len(features) != len(m.W) {
		return 0.5
	}
	z := m.B
	for i := range features {
		z += m.W[i] * features[i]
	}
	return sigmoid(z)
}

func (m *LogitModel) Score(ctx context.Context, obs models.Observation) ([]models.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []models.Candidate
	for assetID, frame := range obs.Frames {
		pUp := m.predict(frame.Features)
		c := models.Candidate{AssetID: assetID}
		if pUp >= 0.5 {
			c.Action = models.ActionBuy
			c.Confidence = pUp
		} else {
			c.Action = models.ActionSell
			c.Confidence = 1 - pUp
		}
		out = append(out, c)
	}
	return out, nil
}

// clone возвращает независимую копию весов для обучения.
func (m *LogitModel) clone(version string) *LogitModel {
	w := make([]float64, len(m.W))
	copy(w, m.W)
	return &LogitModel{W: w, B: m.B, version: version}
}

// fit performs simple gradient steps on cross-entropy loss.
func (m *LogitModel) fit(feats [][]float64, labels []float64, lr float64, epochs int) {
	for e := 0; e < epochs; e++ {
		for i := range feats {
			if len(feats[i]) != len(m.W) {
				continue
			}
			p := m.predict(feats[i])
			grad := p - labels[i]
			for j := range m.W {
				m.W[j] -= lr * grad * feats[i][j]
			}
			m.B -= lr * grad
		}
	}
}
