package models

import "time"

// FeatureFrame — последний известный срез фич по одному инструменту.
type FeatureFrame struct {
	AssetID   string    `json:"asset_id"`
	Features  []float64 `json:"features"`
	LastPrice float64   `json:"last_price"`
	Timestamp time.Time `json:"ts"`
}

// Observation is one snapshot of market/chain state across the watched
// universe, handed to the decision engine once per tick.
type Observation struct {
	Frames     map[string]FeatureFrame
	CapturedAt time.Time
}

func (o Observation) Frame(assetID string) (FeatureFrame, bool) {
	f, ok := o.Frames[assetID]
	return f, ok
}
