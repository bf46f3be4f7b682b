package fundflow

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/httputil"
	"github.com/wonny/screener/pkg/logger"
	"github.com/wonny/screener/pkg/redis"
)

// Page selectors of the ownership page
const (
	selFairValue = ".fair-value .value"
	selOwnership = "table.ownership tr"

	holderMF  = "mutual funds"
	holderFII = "fii"
)

// Client scrapes fund ownership and fair value pages
// ⭐ SSOT: fund flow and fair value page calls go through this client only
type Client struct {
	httpClient *httputil.Client
	cache      *redis.Cache
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new fund flow client. cache may be nil.
func NewClient(httpClient *httputil.Client, cache *redis.Cache, baseURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		cache:      cache,
		logger:     log.WithField("module", "fundflow"),
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Lookup implements contracts.FundFlowSource
func (c *Client) Lookup(ctx context.Context, ticker string) (contracts.FundFlow, error) {
	var flow contracts.FundFlow

	key := redis.FundFlowKey(ticker)
	if c.cache != nil {
		found, err := c.cache.Get(ctx, key, &flow)
		if err != nil {
			c.logger.WithError(err).WithTicker(ticker).Debug("Fund flow cache read failed")
		}
		if found {
			return flow, nil
		}
	}

	target := fmt.Sprintf("%s/%s/ownership", c.baseURL, ticker)
	resp, err := c.httpClient.Get(ctx, target)
	if err != nil {
		return flow, fmt.Errorf("fund flow %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return flow, fmt.Errorf("%w: no ownership page for %s", contracts.ErrDataUnavailable, ticker)
	}
	if resp.StatusCode != http.StatusOK {
		return flow, fmt.Errorf("fund flow %s: unexpected status %d", ticker, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return flow, fmt.Errorf("read response body failed: %w", err)
	}

	flow, err = parseOwnership(string(body))
	if err != nil {
		return flow, fmt.Errorf("parse %s: %w", ticker, err)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, flow, redis.TTLMedium); err != nil {
			c.logger.WithError(err).WithTicker(ticker).Debug("Fund flow cache write failed")
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker":     ticker,
		"mf_stake":   flow.MFStake,
		"fii_stake":  flow.FIIStake,
		"fair_value": flow.FairValue,
	}).Debug("Fetched fund flow")
	return flow, nil
}

// parseOwnership reads the holder table and the fair value badge
func parseOwnership(html string) (contracts.FundFlow, error) {
	var flow contracts.FundFlow

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return flow, err
	}

	rows := doc.Find(selOwnership)
	fair := doc.Find(selFairValue)
	if rows.Length() == 0 && fair.Length() == 0 {
		return flow, contracts.ErrDataUnavailable
	}

	flow.FairValue = parseNum(fair.First().Text())

	rows.Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}

		// columns: holder | change (%) | as-of date
		holder := strings.ToLower(strings.TrimSpace(cells.Eq(0).Text()))
		stake := parseNum(cells.Eq(1).Text())
		date := strings.TrimSpace(cells.Eq(2).Text())

		switch holder {
		case holderMF:
			flow.MFStake, flow.MFDate = stake, date
		case holderFII:
			flow.FIIStake, flow.FIIDate = stake, date
		}
	})

	return flow, nil
}

func parseNum(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(",", "", "+", "", "%", "", "₹", "").Replace(s)
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0
	}
	n, _ := strconv.ParseFloat(s, 64)
	return n
}
