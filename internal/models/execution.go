package models

import "time"

type ExecStatus string

const (
	ExecFilled          ExecStatus = "filled"
	ExecPartiallyFilled ExecStatus = "partially_filled"
	ExecRejected        ExecStatus = "rejected"
	ExecTimedOut        ExecStatus = "timed_out"
)

// ExecutionResult — итог одной отправки решения на venue.
// timed_out означает "неоднозначно": сабмит ушёл, подтверждение не пришло,
// разбор откладывается до реконсиляции.
type ExecutionResult struct {
	DecisionRef    string
	AssetID        string
	Action         Action
	Status         ExecStatus
	FillPrice      float64
	FilledQuantity float64 // base units actually executed
	SlippageBps    float64
	Attempts       int
	CompletedAt    time.Time
}

// Executed reports whether any quantity actually filled.
func (r ExecutionResult) Executed() bool {
	return (r.Status == ExecFilled || r.Status == ExecPartiallyFilled) && r.FilledQuantity > 0
}
