// Package feed fetches historical OHLCV data from the market data provider.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"retest-scanner/internal/errors"
	"retest-scanner/internal/logging"
	"retest-scanner/internal/models"
	"retest-scanner/pkg/utils"
)

const providerName = "yahoo"

// Client fetches candles from the Yahoo Finance chart endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     zerolog.Logger
}

// NewClient creates a feed client. baseURL is the provider root, e.g.
// "https://query1.finance.yahoo.com".
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSHandshakeTimeout: 10 * time.Second,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: 2,
			},
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

// chartResponse mirrors the provider's chart payload. Price arrays use
// *float64 so missing values decode as nil instead of zero.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch retrieves candles for symbol over the given range ("7d", "1mo",
// "1y", "max", ...) and interval ("5m", "60m", "1d", ...). Throttled
// requests are retried with backoff. The result is normalized: invalid
// bars dropped, sorted by timestamp, deduplicated.
func (c *Client) Fetch(ctx context.Context, symbol, rng string, interval models.Interval) ([]models.Candle, error) {
	cfg := utils.DefaultRetryConfig()
	cfg.Retryable = func(err error) bool {
		return errors.Is(err, errors.ErrRateLimited)
	}
	return utils.RetryWithResult(ctx, cfg, func() ([]models.Candle, error) {
		return c.fetchOnce(ctx, symbol, rng, interval)
	})
}

func (c *Client) fetchOnce(ctx context.Context, symbol, rng string, interval models.Interval) ([]models.Candle, error) {
	start := time.Now()

	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), url.Values{
		"range":    {rng},
		"interval": {string(interval)},
		"events":   {"div,splits"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.NewDataError(providerName, symbol, "building request", err)
	}
	req.Header.Set("User-Agent", "retest-scanner/0.1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewDataError(providerName, symbol, "request failed", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, errors.NewDataError(providerName, symbol, "symbol not found", errors.ErrSymbolNotFound)
	case http.StatusTooManyRequests:
		return nil, errors.NewDataError(providerName, symbol, "provider throttled the request", errors.ErrRateLimited)
	default:
		return nil, errors.NewDataError(providerName, symbol,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, errors.NewDataError(providerName, symbol, "reading response", err)
	}

	candles, err := parseChart(body, symbol)
	if err != nil {
		return nil, err
	}

	logging.LogFetch(c.logger, symbol, rng, string(interval), len(candles), time.Since(start))

	return candles, nil
}

// parseChart decodes a chart payload and normalizes the bars.
func parseChart(body []byte, symbol string) ([]models.Candle, error) {
	var cr chartResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, errors.NewDataError(providerName, symbol, "decoding response", err)
	}
	if cr.Chart.Error != nil {
		return nil, errors.NewDataError(providerName, symbol, cr.Chart.Error.Description, errors.ErrDataNotFound)
	}
	if len(cr.Chart.Result) == 0 || len(cr.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, errors.NewDataError(providerName, symbol, "empty result", errors.ErrDataNotFound)
	}

	result := cr.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	candles := make([]models.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		c, ok := barAt(quote.Open, quote.High, quote.Low, quote.Close, quote.Volume, i)
		if !ok {
			continue
		}
		c.Timestamp = time.Unix(ts, 0).UTC()
		candles = append(candles, c)
	}

	return Normalize(candles), nil
}

// barAt assembles candle i from the parallel price arrays, reporting
// false when any required value is missing.
func barAt(open, high, low, closes []*float64, volume []*int64, i int) (models.Candle, bool) {
	if i >= len(open) || i >= len(high) || i >= len(low) || i >= len(closes) {
		return models.Candle{}, false
	}
	if open[i] == nil || high[i] == nil || low[i] == nil || closes[i] == nil {
		return models.Candle{}, false
	}
	c := models.Candle{
		Open:  *open[i],
		High:  *high[i],
		Low:   *low[i],
		Close: *closes[i],
	}
	if i < len(volume) && volume[i] != nil {
		c.Volume = *volume[i]
	}
	return c, c.Valid()
}
