package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"

	"trade_agent/internal/models"
)

const (
	trainLR     = 0.05
	trainEpochs = 8
	minOutcomes = 10
)

// LogitTrainer переобучает LogitModel на исходах окна. Метка: 1 если цена
// после сделки шла вверх (прибыльный buy или убыточный sell), иначе 0.
type LogitTrainer struct {
	fits atomic.Int64
}

func NewLogitTrainer() *LogitTrainer { return &LogitTrainer{} }

func (t *LogitTrainer) Train(ctx context.Context, snap models.WindowSnapshot, current Handle) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cur, ok := current.(*LogitModel)
	if !ok {
		return nil, errors.Errorf("unsupported model %q: logit trainer needs a logit model", current.Version())
	}

	var (
		feats  [][]float64
		labels []float64
	)
	for _, o := range snap.Outcomes {
		if len(o.Features) == 0 || !o.Result.Executed() {
			continue
		}
		up := 0.0
		switch {
		case o.Result.Action == models.ActionBuy && o.RealizedPnL > 0:
			up = 1
		case o.Result.Action == models.ActionSell && o.RealizedPnL < 0:
			up = 1
		}
		feats = append(feats, o.Features)
		labels = append(labels, up)
	}
	if len(feats) < minOutcomes {
		return nil, errors.Errorf("not enough outcomes to train: %d < %d", len(feats), minOutcomes)
	}

	n := t.fits.Add(1)
	next := cur.clone(fmt.Sprintf("logit-v%d", n+1))
	next.fit(feats, labels, trainLR, trainEpochs)

	return next, nil
}
