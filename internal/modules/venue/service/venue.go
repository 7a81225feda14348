package service

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"trade_agent/internal/models"
)

// Order — то, что уходит на venue. Ref уникален на решение:
// повторный сабмит с тем же Ref не должен исполниться дважды.
type Order struct {
	Ref            string        `json:"ref"`
	AssetID        string        `json:"asset_id"`
	Action         models.Action `json:"action"`
	Size           float64       `json:"size"` // quote notional
	MaxSlippageBps float64       `json:"max_slippage_bps"`
}

type Receipt struct {
	Ref         string    `json:"ref"`
	VenueID     string    `json:"venue_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type Fill struct {
	Price       float64 `json:"price"`
	Quantity    float64 `json:"quantity"` // base units
	SlippageBps float64 `json:"slippage_bps"`
	Complete    bool    `json:"complete"`
}

// ErrPending: подтверждение не пришло за отведённый таймаут.
var ErrPending = errors.New("confirmation pending")

// transientErr помечает сетевые/RPC сбои, которые можно ретраить.
type transientErr struct{ err error }

func (e transientErr) Error() string { return e.err.Error() }
func (e transientErr) Unwrap() error { return e.err }

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return transientErr{err: err}
}

func IsTransient(err error) bool {
	var te transientErr
	return errors.As(err, &te)
}

// Venue — блокчейн-венью как способность. Confirm блокирует не дольше
// timeout и возвращает ErrPending, если статус так и не разрешился.
type Venue interface {
	Name() string
	Submit(ctx context.Context, o Order) (Receipt, error)
	Confirm(ctx context.Context, r Receipt, timeout time.Duration) (Fill, error)
	Cancel(ctx context.Context, r Receipt) error
	// Lookup — одиночный запрос состояния по ref, для реконсиляции
	// после таймаута подтверждения.
	Lookup(ctx context.Context, ref string) (*Fill, error)
	SupportsCancel() bool
}
