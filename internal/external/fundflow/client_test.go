package fundflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/config"
	"github.com/wonny/screener/pkg/httputil"
	"github.com/wonny/screener/pkg/logger"
	"github.com/wonny/screener/pkg/redis"
)

const ownershipPage = `<html><body>
<div class="fair-value">Fair value <span class="value">₹1,234.50</span></div>
<table class="ownership">
  <tr><th>Holder</th><th>Change</th><th>As of</th></tr>
  <tr><td>Mutual Funds</td><td>+1.25%</td><td>Dec 2023</td></tr>
  <tr><td>FII</td><td>-0.40%</td><td>Sep 2023</td></tr>
  <tr><td>Promoters</td><td>0.00%</td><td>Dec 2023</td></tr>
</table>
</body></html>`

func TestParseOwnership(t *testing.T) {
	flow, err := parseOwnership(ownershipPage)
	require.NoError(t, err)

	assert.Equal(t, contracts.FundFlow{
		MFStake:   1.25,
		MFDate:    "Dec 2023",
		FIIStake:  -0.40,
		FIIDate:   "Sep 2023",
		FairValue: 1234.50,
	}, flow)
}

func TestParseOwnershipEmptyPage(t *testing.T) {
	_, err := parseOwnership(`<html><body><p>nothing here</p></body></html>`)
	assert.True(t, errors.Is(err, contracts.ErrDataUnavailable))
}

func TestParseNum(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1,234.5", 1234.5},
		{" +2.5% ", 2.5},
		{"-0.75%", -0.75},
		{"-", 0},
		{"", 0},
		{"n/a", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseNum(tt.in), tt.in)
	}
}

func newServer(t *testing.T, status int, hits *int) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		assert.Equal(t, "/SBIN/ownership", r.URL.Path)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(ownershipPage))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestLookup(t *testing.T) {
	hits := 0
	base := newServer(t, http.StatusOK, &hits)
	log := logger.Nop()
	c := NewClient(httputil.New(&config.Config{}, log).DisableRetry(), nil, base, log)

	flow, err := c.Lookup(context.Background(), "SBIN")
	require.NoError(t, err)
	assert.Equal(t, 1.25, flow.MFStake)
	assert.Equal(t, 1234.50, flow.FairValue)
	assert.Equal(t, 1, hits)
}

func TestLookupNotFound(t *testing.T) {
	hits := 0
	base := newServer(t, http.StatusNotFound, &hits)
	log := logger.Nop()
	c := NewClient(httputil.New(&config.Config{}, log).DisableRetry(), nil, base, log)

	_, err := c.Lookup(context.Background(), "SBIN")
	assert.True(t, errors.Is(err, contracts.ErrDataUnavailable))
}

func TestLookupServesFromCache(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := redis.NewCache(redis.NewFromClient(db), "screener")

	cached := contracts.FundFlow{MFStake: 3, MFDate: "Jan 2024", FairValue: 99}
	data, err := json.Marshal(cached)
	require.NoError(t, err)
	mock.ExpectGet("screener:cache:fundflow:SBIN").SetVal(string(data))

	hits := 0
	base := newServer(t, http.StatusOK, &hits)
	log := logger.Nop()
	c := NewClient(httputil.New(&config.Config{}, log).DisableRetry(), cache, base, log)

	flow, err := c.Lookup(context.Background(), "SBIN")
	require.NoError(t, err)
	assert.Equal(t, cached, flow)
	assert.Zero(t, hits)
	assert.NoError(t, mock.ExpectationsWereMet())
}
