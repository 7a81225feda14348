package service

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"trade_agent/internal/models"
)

// Observer отдаёт наблюдение по требованию. Ошибка трактуется циклом
// как "нет наблюдения на этом тике".
type Observer interface {
	Observe(ctx context.Context) (models.Observation, error)
}

// PriceSink получает последние цены из потока наблюдений
// (paper-венью исполняет по ним).
type PriceSink interface {
	SetPrice(assetID string, price float64)
}

var errNoObservation = errors.New("no fresh observation")

func freshFrames(frames map[string]models.FeatureFrame, staleness time.Duration, now time.Time) (models.Observation, error) {
	out := models.Observation{
		Frames:     make(map[string]models.FeatureFrame, len(frames)),
		CapturedAt: now,
	}
	for id, f := range frames {
		if staleness > 0 && now.Sub(f.Timestamp) > staleness {
			continue
		}
		out.Frames[id] = f
	}
	if len(out.Frames) == 0 {
		return models.Observation{}, errNoObservation
	}
	return out, nil
}
