package models

import "time"

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Candidate — сырой кандидат от модели, ещё не прошёл ни стратегию, ни порог.
type Candidate struct {
	AssetID    string
	Action     Action
	Confidence float64 // [0,1]
}

// Decision is transient: produced by the decision engine, consumed once by
// the risk ledger, then only referenced by Ref in audit/execution records.
type Decision struct {
	Ref          string // uuid, идемпотентность на стороне venue
	AssetID      string
	Action       Action
	Size         float64 // notional in quote currency
	Confidence   float64
	ModelVersion string
	ProducedAt   time.Time
}
