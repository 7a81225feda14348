package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"trade_agent/internal/models"
)

// PollObserver тянет фичи одним GET-запросом на каждый тик.
type PollObserver struct {
	url       string
	staleness time.Duration
	http      *http.Client
	sink      PriceSink
}

func NewPollObserver(url string, staleness time.Duration, sink PriceSink) *PollObserver {
	return &PollObserver{
		url:       url,
		staleness: staleness,
		http:      &http.Client{Timeout: 10 * time.Second},
		sink:      sink,
	}
}

func (p *PollObserver) Observe(ctx context.Context) (models.Observation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url+"/v1/features", nil)
	if err != nil {
		return models.Observation{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return models.Observation{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Observation{}, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return models.Observation{}, fmt.Errorf("http %d: %s", resp.StatusCode, string(raw))
	}

	var payload struct {
		Code   string                `json:"code"`
		Msg    string                `json:"msg"`
		Frames []models.FeatureFrame `json:"frames"`
	}
	if err := sonic.Unmarshal(raw, &payload); err != nil {
		return models.Observation{}, fmt.Errorf("decode: %w", err)
	}
	if payload.Code != "0" {
		return models.Observation{}, fmt.Errorf("feed error %s: %s", payload.Code, payload.Msg)
	}

	frames := make(map[string]models.FeatureFrame, len(payload.Frames))
	for _, fr := range payload.Frames {
		if fr.Timestamp.IsZero() {
			fr.Timestamp = time.Now().UTC()
		}
		frames[fr.AssetID] = fr
		if p.sink != nil && fr.LastPrice > 0 {
			p.sink.SetPrice(fr.AssetID, fr.LastPrice)
		}
	}

	return freshFrames(frames, p.staleness, time.Now().UTC())
}
