package service

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"trade_agent/internal/notify"
	"trade_agent/pkg/logger"
)

// Sink принимает события аудита. Fire-and-forget: Publish никогда не блокирует
// торговый цикл, при переполнении буфера событие дропается со счётчиком.
type Sink interface {
	Publish(e Event)
}

type Async struct {
	repo *Repo
	n    notify.Notifier

	queue chan Event

	mu      sync.Mutex
	dropped int64

	wg   sync.WaitGroup
	quit chan struct{}
}

func NewAsync(repo *Repo, n notify.Notifier) *Async {
	return &Async{
		repo:  repo,
		n:     n,
		queue: make(chan Event, 1024),
		quit:  make(chan struct{}),
	}
}

func (a *Async) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	select {
	case a.queue <- e:
	default:
		// очередь переполнена — дропаем молча, цикл важнее аудита
		a.mu.Lock()
		a.dropped++
		a.mu.Unlock()
	}
}

func (a *Async) Dropped() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

func (a *Async) Start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-a.quit:
				// дослать то, что уже в очереди
				for {
					select {
					case e := <-a.queue:
						a.handle(ctx, e)
					default:
						return
					}
				}
			case e := <-a.queue:
				a.handle(ctx, e)
			}
		}
	}()
}

func (a *Async) Stop() {
	close(a.quit)
	a.wg.Wait()
}

func (a *Async) handle(ctx context.Context, e Event) {
	raw, err := sonic.Marshal(e.Payload)
	if err != nil {
		logger.Error("audit: marshal %s: %v", e.Kind, err)
		return
	}

	logger.Info("[AUDIT] %s %s", e.Kind, string(raw))

	if a.repo != nil {
		if err := a.repo.Insert(ctx, e.Kind, raw, e.At); err != nil {
			logger.Error("audit: insert %s: %v", e.Kind, err)
		}
	}

	if a.n != nil && e.alert() {
		a.n.Sendf("⚠️ %s: %s", e.Kind, string(raw))
	}
}
