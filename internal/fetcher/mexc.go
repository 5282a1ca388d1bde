// Package fetcher retrieves historical candle series over the MEXC contract
// REST API.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"signal-systemv1/internal/model"
)

// DefaultBaseURL is the MEXC contract kline endpoint; the symbol is
// appended as a path segment.
const DefaultBaseURL = "https://contract.mexc.com/api/v1/contract/kline/"

// Client fetches candles from the MEXC contract API.
type Client struct {
	baseURL string
	client  *http.Client

	// OnFetch, when set, observes the duration of every fetch attempt,
	// successful or not.
	OnFetch func(d time.Duration)
}

// New creates a fetcher client. An empty baseURL selects the default.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// klineResponse is the columnar MEXC kline payload.
type klineResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Time  []int64   `json:"time"`
		Open  []float64 `json:"open"`
		High  []float64 `json:"high"`
		Low   []float64 `json:"low"`
		Close []float64 `json:"close"`
		Vol   []float64 `json:"vol"`
	} `json:"data"`
}

// FetchCandles retrieves the candle series for a symbol and interval,
// oldest first. A successful response with no rows is a "no data" error so
// callers never score an empty series.
func (c *Client) FetchCandles(ctx context.Context, symbol, interval string) ([]model.Candle, error) {
	if c.OnFetch != nil {
		start := time.Now()
		defer func() { c.OnFetch(time.Since(start)) }()
	}

	u := c.baseURL + url.PathEscape(symbol) + "?interval=" + url.QueryEscape(interval)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("fetcher: create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetcher: %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetcher: %s: unexpected status %d", symbol, resp.StatusCode)
	}

	var kr klineResponse
	if err := json.NewDecoder(resp.Body).Decode(&kr); err != nil {
		return nil, fmt.Errorf("fetcher: %s: decode: %w", symbol, err)
	}
	if !kr.Success {
		return nil, fmt.Errorf("fetcher: %s: api error: %s", symbol, kr.Message)
	}

	n := len(kr.Data.Time)
	if n == 0 {
		return nil, fmt.Errorf("fetcher: %s: no data", symbol)
	}
	if len(kr.Data.Open) != n || len(kr.Data.High) != n || len(kr.Data.Low) != n ||
		len(kr.Data.Close) != n || len(kr.Data.Vol) != n {
		return nil, fmt.Errorf("fetcher: %s: ragged kline columns", symbol)
	}

	candles := make([]model.Candle, n)
	for i := 0; i < n; i++ {
		candles[i] = model.Candle{
			TS:     time.Unix(kr.Data.Time[i], 0).UTC(),
			Open:   kr.Data.Open[i],
			High:   kr.Data.High[i],
			Low:    kr.Data.Low[i],
			Close:  kr.Data.Close[i],
			Volume: kr.Data.Vol[i],
		}
	}

	if err := model.ValidateSeries(candles); err != nil {
		return nil, fmt.Errorf("fetcher: %s: %w", symbol, err)
	}
	return candles, nil
}
