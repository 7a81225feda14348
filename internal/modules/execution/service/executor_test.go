package service

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"trade_agent/internal/models"
	"trade_agent/internal/modules/config"
	venuesvc "trade_agent/internal/modules/venue/service"
)

// fakeVenue отыгрывает сценарий по шагам, считая вызовы.
type fakeVenue struct {
	submitErrs  []error // по одному на попытку; исчерпались — успех
	confirmFill venuesvc.Fill
	confirmErr  error
	lookupFill  *venuesvc.Fill
	lookupErr   error

	submits int
	lookups int
	cancels int
}

func (v *fakeVenue) Name() string { return "fake" }

func (v *fakeVenue) Submit(ctx context.Context, o venuesvc.Order) (venuesvc.Receipt, error) {
	v.submits++
	if len(v.submitErrs) > 0 {
		err := v.submitErrs[0]
		v.submitErrs = v.submitErrs[1:]
		if err != nil {
			return venuesvc.Receipt{}, err
		}
	}
	return venuesvc.Receipt{Ref: o.Ref, VenueID: "v-" + o.Ref, SubmittedAt: time.Now().UTC()}, nil
}

func (v *fakeVenue) Confirm(ctx context.Context, r venuesvc.Receipt, timeout time.Duration) (venuesvc.Fill, error) {
	return v.confirmFill, v.confirmErr
}

func (v *fakeVenue) Cancel(ctx context.Context, r venuesvc.Receipt) error {
	v.cancels++
	return nil
}

func (v *fakeVenue) Lookup(ctx context.Context, ref string) (*venuesvc.Fill, error) {
	v.lookups++
	return v.lookupFill, v.lookupErr
}

func (v *fakeVenue) SupportsCancel() bool { return true }

func testExecConfig() config.ExecutionConfig {
	return config.ExecutionConfig{
		MaxSlippageBps: 50,
		ConfirmTimeout: 10 * time.Millisecond,
		SubmitRetries:  3,
		BackoffBase:    time.Second,
	}
}

func newTestExecutor(v venuesvc.Venue) (*Executor, *[]time.Duration) {
	e := NewExecutor(testExecConfig(), v)
	var slept []time.Duration
	e.sleep = func(d time.Duration) { slept = append(slept, d) }
	return e, &slept
}

func decision() models.Decision {
	return models.Decision{Ref: "d1", AssetID: "BTC-USD", Action: models.ActionBuy, Size: 200}
}

func TestExecutorSubmitRetry(t *testing.T) {
	t.Run("transient errors retried with backoff", func(t *testing.T) {
		v := &fakeVenue{
			submitErrs:  []error{venuesvc.Transient(errors.New("rpc reset")), venuesvc.Transient(errors.New("rpc reset"))},
			confirmFill: venuesvc.Fill{Price: 100, Quantity: 2, Complete: true},
		}
		e, slept := newTestExecutor(v)

		res := e.Execute(context.Background(), decision())
		require.Equal(t, models.ExecFilled, res.Status)
		require.Equal(t, 3, res.Attempts)
		require.Equal(t, 3, v.submits)
		require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *slept)
	})

	t.Run("transient errors exhausted", func(t *testing.T) {
		v := &fakeVenue{submitErrs: []error{
			venuesvc.Transient(errors.New("down")),
			venuesvc.Transient(errors.New("down")),
			venuesvc.Transient(errors.New("down")),
		}}
		e, _ := newTestExecutor(v)

		res := e.Execute(context.Background(), decision())
		require.Equal(t, models.ExecRejected, res.Status)
		require.Equal(t, 3, res.Attempts)
	})

	t.Run("non-transient error fails immediately", func(t *testing.T) {
		v := &fakeVenue{submitErrs: []error{errors.New("insufficient funds on venue")}}
		e, slept := newTestExecutor(v)

		res := e.Execute(context.Background(), decision())
		require.Equal(t, models.ExecRejected, res.Status)
		require.Equal(t, 1, res.Attempts)
		require.Empty(t, *slept)
	})
}

func TestExecutorConfirm(t *testing.T) {
	t.Run("clean fill", func(t *testing.T) {
		v := &fakeVenue{confirmFill: venuesvc.Fill{Price: 100.5, Quantity: 2, SlippageBps: 12, Complete: true}}
		e, _ := newTestExecutor(v)

		res := e.Execute(context.Background(), decision())
		require.Equal(t, models.ExecFilled, res.Status)
		require.InDelta(t, 100.5, res.FillPrice, 1e-9)
		require.InDelta(t, 2, res.FilledQuantity, 1e-9)
		require.Zero(t, v.lookups)
	})

	t.Run("timeout does exactly one lookup then times out", func(t *testing.T) {
		v := &fakeVenue{confirmErr: venuesvc.ErrPending}
		e, _ := newTestExecutor(v)

		res := e.Execute(context.Background(), decision())
		require.Equal(t, models.ExecTimedOut, res.Status)
		require.Equal(t, 1, v.lookups)
		require.Equal(t, 1, v.submits) // никакого повторного сабмита
	})

	t.Run("timeout resolved by lookup", func(t *testing.T) {
		v := &fakeVenue{
			confirmErr: venuesvc.ErrPending,
			lookupFill: &venuesvc.Fill{Price: 101, Quantity: 2, Complete: true},
		}
		e, _ := newTestExecutor(v)

		res := e.Execute(context.Background(), decision())
		require.Equal(t, models.ExecFilled, res.Status)
		require.Equal(t, 1, v.lookups)
		require.InDelta(t, 101, res.FillPrice, 1e-9)
	})

	t.Run("venue rejection", func(t *testing.T) {
		v := &fakeVenue{confirmErr: errors.New("venue rejected order")}
		e, _ := newTestExecutor(v)

		res := e.Execute(context.Background(), decision())
		require.Equal(t, models.ExecRejected, res.Status)
		require.Zero(t, v.lookups)
	})

	t.Run("partial fill over slippage cap cancels remainder", func(t *testing.T) {
		v := &fakeVenue{confirmFill: venuesvc.Fill{Price: 102, Quantity: 1, SlippageBps: 120, Complete: false}}
		e, _ := newTestExecutor(v)

		res := e.Execute(context.Background(), decision())
		require.Equal(t, models.ExecPartiallyFilled, res.Status)
		require.Equal(t, 1, v.cancels)
	})

	t.Run("partial fill within slippage keeps remainder working", func(t *testing.T) {
		v := &fakeVenue{confirmFill: venuesvc.Fill{Price: 100.1, Quantity: 1, SlippageBps: 10, Complete: false}}
		e, _ := newTestExecutor(v)

		res := e.Execute(context.Background(), decision())
		require.Equal(t, models.ExecPartiallyFilled, res.Status)
		require.Zero(t, v.cancels)
	})
}
