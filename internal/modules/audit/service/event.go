package service

import "time"

type Kind string

const (
	KindDecisionEvaluated Kind = "decision_evaluated"
	KindResultRecorded    Kind = "result_recorded"
	KindHaltActivated     Kind = "halt_activated"
	KindHaltCleared       Kind = "halt_cleared"
	KindReconcileNeeded   Kind = "reconcile_needed"
	KindCycleCompleted    Kind = "cycle_completed"
	KindCycleFailed       Kind = "cycle_failed"
	KindReviewReport      Kind = "review_report"
)

// Event — одна запись аудита. Payload должен сериализоваться sonic'ом.
type Event struct {
	Kind    Kind
	At      time.Time
	Payload any
}

// alert-события дублируются оператору в телеграм
func (e Event) alert() bool {
	switch e.Kind {
	case KindHaltActivated, KindHaltCleared, KindCycleFailed, KindReconcileNeeded:
		return true
	}
	return false
}
