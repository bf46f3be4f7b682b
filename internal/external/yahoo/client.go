package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/timeseries"
	"github.com/wonny/screener/pkg/httputil"
	"github.com/wonny/screener/pkg/logger"
	"github.com/wonny/screener/pkg/metrics"
)

// Client downloads OHLCV series from the Yahoo chart API
// ⭐ SSOT: Yahoo chart API calls go through this client only
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	metrics    *metrics.Registry
	baseURL    string
	now        func() time.Time
}

// NewClient creates a new Yahoo client
func NewClient(httpClient *httputil.Client, baseURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("module", "yahoo"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		now:        time.Now,
	}
}

// WithMetrics counts failed downloads
func (c *Client) WithMetrics(reg *metrics.Registry) *Client {
	c.metrics = reg
	return c
}

// chartResponse mirrors /v8/finance/chart. Cells are pointers: Yahoo sends
// null for sessions without trades.
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
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch implements contracts.Fetcher
func (c *Client) Fetch(ctx context.Context, req contracts.FetchRequest) (*timeseries.Frame, error) {
	frame, err := c.fetch(ctx, req)
	if err != nil && c.metrics != nil {
		c.metrics.FetchErrors.WithLabelValues("yahoo").Inc()
	}
	return frame, err
}

func (c *Client) fetch(ctx context.Context, req contracts.FetchRequest) (*timeseries.Frame, error) {
	target, err := c.chartURL(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Get(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("yahoo %s: %w", req.Ticker, err)
	}
	defer resp.Body.Close()

	// unknown symbols answer 404 with a chart error body
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s not found", contracts.ErrDataUnavailable, req.Ticker)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo %s: unexpected status %d", req.Ticker, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chart %s: %w", req.Ticker, err)
	}

	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("decode chart %s: %w", req.Ticker, err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s %s", contracts.ErrDataUnavailable, chart.Chart.Error.Code, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: no chart for %s", contracts.ErrDataUnavailable, req.Ticker)
	}

	result := chart.Chart.Result[0]
	q := result.Indicators.Quote[0]

	var (
		idx              []time.Time
		o, h, l, cl, vol []float64
	)
	for i, ts := range result.Timestamp {
		if i >= len(q.Close) || q.Close[i] == nil {
			continue
		}
		idx = append(idx, time.Unix(ts, 0).UTC())
		o = append(o, cell(q.Open, i))
		h = append(h, cell(q.High, i))
		l = append(l, cell(q.Low, i))
		cl = append(cl, *q.Close[i])
		vol = append(vol, cell(q.Volume, i))
	}
	if len(idx) == 0 {
		return nil, fmt.Errorf("%w: empty chart for %s", contracts.ErrDataUnavailable, req.Ticker)
	}

	frame, err := timeseries.FromOHLCV(idx, o, h, l, cl, vol)
	if err != nil {
		return nil, fmt.Errorf("build frame %s: %w", req.Ticker, err)
	}

	fields := map[string]interface{}{
		"ticker": req.Ticker,
		"rows":   frame.Len(),
	}
	if req.Progress != nil {
		if pct, ok := req.Progress.Percent(req.TotalSymbols); ok {
			fields["progress"] = fmt.Sprintf("%.1f%%", pct)
		}
	}
	c.logger.WithFields(fields).Debug("Fetched chart")
	return frame, nil
}

// chartURL derives period1/period2 from the request window
func (c *Client) chartURL(req contracts.FetchRequest) (string, error) {
	if req.Ticker == "" {
		return "", errors.New("empty ticker")
	}
	end := req.End
	if end.IsZero() {
		end = c.now()
	}
	start := req.Start
	if start.IsZero() {
		days, err := strconv.Atoi(strings.TrimSuffix(req.Period, "d"))
		if err != nil || days <= 0 {
			return "", fmt.Errorf("invalid period %q", req.Period)
		}
		start = end.AddDate(0, 0, -days)
	}

	interval := req.Duration
	if interval == "" {
		interval = "1d"
	}

	params := url.Values{}
	params.Set("period1", strconv.FormatInt(start.Unix(), 10))
	params.Set("period2", strconv.FormatInt(end.Unix(), 10))
	params.Set("interval", interval)
	params.Set("includePrePost", "false")

	symbol := url.PathEscape(req.Ticker + req.ExchangeSuffix)
	return fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, symbol, params.Encode()), nil
}

// cell reads a nullable cell, null reads as 0
func cell(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return 0
	}
	return *vals[i]
}
