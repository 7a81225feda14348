package service

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"trade_agent/internal/models"
	healthsvc "trade_agent/internal/modules/health/service"
	"trade_agent/pkg/logger"
)

const reconnectDelay = 5 * time.Second

// FeedObserver держит websocket-стрим фич-фреймов и кеширует последний
// фрейм по каждому инструменту. Observe отдаёт срез кеша, отфильтрованный
// по свежести.
type FeedObserver struct {
	url       string
	staleness time.Duration
	dialer    *websocket.Dialer
	state     *healthsvc.State
	sink      PriceSink // nil допустим

	mu     sync.RWMutex
	frames map[string]models.FeatureFrame
}

func NewFeedObserver(url string, staleness time.Duration, state *healthsvc.State, sink PriceSink) *FeedObserver {
	return &FeedObserver{
		url:       url,
		staleness: staleness,
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		state:     state,
		sink:      sink,
		frames:    make(map[string]models.FeatureFrame),
	}
}

// Start крутит connect/read/reconnect до отмены контекста.
func (f *FeedObserver) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if err := f.runOnce(ctx); err != nil {
				logger.Error("[FEED] stream error: %v, reconnect in %s", err, reconnectDelay)
			}
			if f.state != nil {
				f.state.SetFeedConnected(false)
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
		}
	}()
}

func (f *FeedObserver) runOnce(ctx context.Context) error {
	conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	logger.Info("[FEED] connected to %s", f.url)
	if f.state != nil {
		f.state.SetFeedConnected(true)
	}

	// закрыть сокет при отмене, чтобы ReadMessage отпустило
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var frame models.FeatureFrame
		if err := sonic.Unmarshal(raw, &frame); err != nil {
			logger.Error("[FEED] bad frame: %v", err)
			continue
		}
		if frame.AssetID == "" {
			continue
		}
		if frame.Timestamp.IsZero() {
			frame.Timestamp = time.Now().UTC()
		}

		f.mu.Lock()
		f.frames[frame.AssetID] = frame
		f.mu.Unlock()

		if f.sink != nil && frame.LastPrice > 0 {
			f.sink.SetPrice(frame.AssetID, frame.LastPrice)
		}
	}
}

func (f *FeedObserver) Observe(ctx context.Context) (models.Observation, error) {
	f.mu.RLock()
	snapshot := make(map[string]models.FeatureFrame, len(f.frames))
	for id, fr := range f.frames {
		snapshot[id] = fr
	}
	f.mu.RUnlock()

	return freshFrames(snapshot, f.staleness, time.Now().UTC())
}
