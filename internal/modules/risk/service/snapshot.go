package service

import (
	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"trade_agent/internal/models"
)

// snapshotState — то, что переживает рестарт агента. Резервы и дедуп-сет
// не переживают: незакрытые решения на момент рестарта уходят в реконсиляцию.
type snapshotState struct {
	Capital   models.CapitalState         `json:"capital"`
	Positions map[string]*models.Position `json:"positions"`
	Marks     map[string]float64          `json:"marks"`
	LossHalt  bool                        `json:"loss_halt"`
	DDHalt    bool                        `json:"dd_halt"`
}

func (l *Ledger) Snapshot() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := snapshotState{
		Capital:   l.capState,
		Positions: l.pos,
		Marks:     l.marks,
		LossHalt:  l.lossHalt,
		DDHalt:    l.ddHalt,
	}
	raw, err := sonic.Marshal(st)
	if err != nil {
		return nil, errors.Wrap(err, "marshal ledger snapshot")
	}
	return raw, nil
}

func (l *Ledger) Restore(raw []byte) error {
	var st snapshotState
	if err := sonic.Unmarshal(raw, &st); err != nil {
		return errors.Wrap(err, "unmarshal ledger snapshot")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.capState = st.Capital
	if st.Positions != nil {
		l.pos = st.Positions
	}
	if st.Marks != nil {
		l.marks = st.Marks
	}
	l.lossHalt = st.LossHalt
	l.ddHalt = st.DDHalt
	return nil
}
