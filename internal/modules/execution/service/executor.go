package service

import (
	"context"
	"time"

	"trade_agent/internal/models"
	"trade_agent/internal/modules/config"
	venuesvc "trade_agent/internal/modules/venue/service"
	"trade_agent/pkg/logger"
)

// Executor доводит одобренное решение до venue.
//
// Политика ретраев: transient-сбой сабмита — до SubmitRetries повторов
// с экспоненциальным бэкоффом; таймаут подтверждения НЕ ретраится
// (риск двойного сабмита) — один Lookup, дальше timed_out и реконсиляция
// на следующих тиках.
type Executor struct {
	cfg   config.ExecutionConfig
	venue venuesvc.Venue
	sleep func(time.Duration) // подменяется в тестах
}

func NewExecutor(cfg config.ExecutionConfig, v venuesvc.Venue) *Executor {
	return &Executor{
		cfg:   cfg,
		venue: v,
		sleep: time.Sleep,
	}
}

func (e *Executor) Execute(ctx context.Context, d models.Decision) models.ExecutionResult {
	res := models.ExecutionResult{
		DecisionRef: d.Ref,
		AssetID:     d.AssetID,
		Action:      d.Action,
	}

	order := venuesvc.Order{
		Ref:            d.Ref,
		AssetID:        d.AssetID,
		Action:         d.Action,
		Size:           d.Size,
		MaxSlippageBps: e.cfg.MaxSlippageBps,
	}

	receipt, attempts, err := e.submit(ctx, order)
	res.Attempts = attempts
	if err != nil {
		logger.Error("[EXEC] %s submit failed after %d attempts: %v", d.AssetID, attempts, err)
		res.Status = models.ExecRejected
		res.CompletedAt = time.Now().UTC()
		return res
	}

	fill, err := e.venue.Confirm(ctx, receipt, e.cfg.ConfirmTimeout)
	switch {
	case err == nil:
		e.applyFill(&res, fill, receipt)

	case err == venuesvc.ErrPending || venuesvc.IsTransient(err):
		// неоднозначно: ровно один запрос состояния, без повторного сабмита
		looked, lerr := e.venue.Lookup(ctx, d.Ref)
		if lerr == nil && looked != nil {
			e.applyFill(&res, *looked, receipt)
		} else {
			logger.Error("[EXEC] %s confirmation unresolved (ref=%s), deferring reconciliation", d.AssetID, d.Ref)
			res.Status = models.ExecTimedOut
		}

	default:
		logger.Error("[EXEC] %s confirm failed: %v", d.AssetID, err)
		res.Status = models.ExecRejected
	}

	res.CompletedAt = time.Now().UTC()
	return res
}

func (e *Executor) submit(ctx context.Context, order venuesvc.Order) (venuesvc.Receipt, int, error) {
	retries := e.cfg.SubmitRetries
	if retries <= 0 {
		retries = 3
	}
	backoff := e.cfg.BackoffBase
	if backoff <= 0 {
		backoff = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		receipt, err := e.venue.Submit(ctx, order)
		if err == nil {
			return receipt, attempt, nil
		}
		lastErr = err
		if !venuesvc.IsTransient(err) {
			return venuesvc.Receipt{}, attempt, err
		}
		if attempt < retries {
			logger.Info("[EXEC] %s transient submit error (attempt %d/%d): %v", order.AssetID, attempt, retries, err)
			select {
			case <-ctx.Done():
				return venuesvc.Receipt{}, attempt, ctx.Err()
			default:
			}
			e.sleep(backoff)
			backoff *= 2
		}
	}
	return venuesvc.Receipt{}, retries, lastErr
}

func (e *Executor) applyFill(res *models.ExecutionResult, fill venuesvc.Fill, receipt venuesvc.Receipt) {
	res.FillPrice = fill.Price
	res.FilledQuantity = fill.Quantity
	res.SlippageBps = fill.SlippageBps

	if fill.Complete {
		res.Status = models.ExecFilled
		return
	}

	res.Status = models.ExecPartiallyFilled
	// частичное исполнение со слиппеджем за пределом — снимаем остаток,
	// если venue умеет; леджер учтёт только исполненную часть
	if fill.SlippageBps > e.cfg.MaxSlippageBps && e.venue.SupportsCancel() {
		if err := e.venue.Cancel(context.Background(), receipt); err != nil {
			logger.Error("[EXEC] %s cancel remainder failed: %v", res.AssetID, err)
		}
	}
}
