package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"
)

// ChainVenue — клиент execution-гейтвея блокчейн-венью поверх HTTP.
// Сетевые и 5xx ошибки помечаются transient (ретраит слой исполнения),
// ошибки venue-уровня (отказ, неизвестный ордер) — нет.
type ChainVenue struct {
	baseURL string
	http    *http.Client
}

func NewChainVenue(baseURL string) *ChainVenue {
	return &ChainVenue{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *ChainVenue) Name() string { return "chain" }

type submitResponse struct {
	Code    string `json:"code"`
	Msg     string `json:"msg"`
	VenueID string `json:"venue_id"`
}

func (c *ChainVenue) Submit(ctx context.Context, o Order) (Receipt, error) {
	body, err := sonic.Marshal(o)
	if err != nil {
		return Receipt{}, fmt.Errorf("marshal order: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/v1/orders",
		bytes.NewReader(body),
	)
	if err != nil {
		return Receipt{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Receipt{}, Transient(fmt.Errorf("do request: %w", err))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 == 5 {
		return Receipt{}, Transient(fmt.Errorf("http %d: %s", resp.StatusCode, string(raw)))
	}
	if resp.StatusCode/100 != 2 {
		return Receipt{}, fmt.Errorf("http %d: %s", resp.StatusCode, string(raw))
	}

	var payload submitResponse
	if err := sonic.Unmarshal(raw, &payload); err != nil {
		return Receipt{}, fmt.Errorf("decode: %w", err)
	}
	if payload.Code != "0" {
		return Receipt{}, fmt.Errorf("venue error %s: %s", payload.Code, payload.Msg)
	}

	return Receipt{Ref: o.Ref, VenueID: payload.VenueID, SubmittedAt: time.Now().UTC()}, nil
}

type orderStatusResponse struct {
	Code   string `json:"code"`
	Msg    string `json:"msg"`
	Status string `json:"status"` // pending | filled | failed
	Fill   *Fill  `json:"fill,omitempty"`
}

func (c *ChainVenue) Confirm(ctx context.Context, r Receipt, timeout time.Duration) (Fill, error) {
	deadline := time.Now().Add(timeout)
	for {
		st, err := c.status(ctx, "/v1/orders/"+url.PathEscape(r.VenueID))
		if err == nil {
			switch st.Status {
			case "filled":
				if st.Fill != nil {
					return *st.Fill, nil
				}
				return Fill{}, fmt.Errorf("filled order %s without fill payload", r.VenueID)
			case "failed":
				return Fill{}, fmt.Errorf("venue rejected order %s: %s", r.VenueID, st.Msg)
			}
			// pending — опрашиваем дальше
		}
		// сетевую ошибку во время ожидания подтверждения не ретраим
		// отдельным сабмитом, просто продолжаем опрос до дедлайна

		if time.Now().After(deadline) {
			return Fill{}, ErrPending
		}
		select {
		case <-ctx.Done():
			return Fill{}, ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func (c *ChainVenue) Cancel(ctx context.Context, r Receipt) error {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/v1/orders/"+url.PathEscape(r.VenueID)+"/cancel",
		nil,
	)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Transient(fmt.Errorf("do request: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}

func (c *ChainVenue) Lookup(ctx context.Context, ref string) (*Fill, error) {
	st, err := c.status(ctx, "/v1/orders/by-ref/"+url.PathEscape(ref))
	if err != nil {
		return nil, err
	}
	if st.Status == "filled" {
		return st.Fill, nil
	}
	return nil, nil
}

func (c *ChainVenue) SupportsCancel() bool { return true }

func (c *ChainVenue) status(ctx context.Context, path string) (*orderStatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, Transient(fmt.Errorf("do request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Transient(fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(raw))
	}

	var payload orderStatusResponse
	if err := sonic.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if payload.Code != "0" {
		return nil, fmt.Errorf("venue error %s: %s", payload.Code, payload.Msg)
	}
	return &payload, nil
}
