package openfigi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/seenimoa/filinglens/internal/infra"
)

var fastBackoff = infra.Backoff{Initial: time.Millisecond, Max: 2 * time.Millisecond, MaxAttempts: 3}

func newTestClient(t *testing.T, apiKey string, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{
		BaseURL:     srv.URL,
		APIKey:      apiKey,
		Concurrency: 2,
		Backoff:     fastBackoff,
		Limiter:     infra.NewWindowLimiter(1000, time.Second, 2),
		Logger:      zaptest.NewLogger(t),
	})
}

func TestBestMatch(t *testing.T) {
	tests := []struct {
		name string
		in   []Instrument
		want string
	}{
		{"first when nothing matches", []Instrument{{FIGI: "A"}, {FIGI: "B"}}, "A"},
		{"common stock beats first", []Instrument{{FIGI: "A"}, {FIGI: "B", SecurityType: "Common Stock"}}, "B"},
		{"equity beats common stock", []Instrument{{FIGI: "A", SecurityType: "Common Stock"}, {FIGI: "B", MarketSector: "Equity"}}, "B"},
		{"primary exchange beats all", []Instrument{
			{FIGI: "A", MarketSector: "Equity", SecurityType: "Common Stock", ExchCode: "UN"},
			{FIGI: "B", ExchCode: "US"},
		}, "B"},
		{"full match wins tie-break order", []Instrument{
			{FIGI: "A", ExchCode: "US", MarketSector: "Equity"},
			{FIGI: "B", ExchCode: "US", MarketSector: "Equity", SecurityType: "Common Stock"},
		}, "B"},
	}
	for _, tc := range tests {
		if got := BestMatch(tc.in).FIGI; got != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestMapBatchesAndAlignsResults(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("X-OPENFIGI-APIKEY"))
		var jobs []mappingJob
		require.NoError(t, json.NewDecoder(r.Body).Decode(&jobs))
		assert.LessOrEqual(t, len(jobs), 10, "keyless batches are capped at 10")

		out := make([]mappingResult, len(jobs))
		for i, j := range jobs {
			switch j.IDValue {
			case "037833100":
				out[i] = mappingResult{Data: []Instrument{
					{FIGI: "BBG000B9XRY4", Ticker: "AAPL", ExchCode: "US", MarketSector: "Equity", SecurityType: "Common Stock", Name: "APPLE INC"},
					{FIGI: "BBG000B9Y5X2", Ticker: "AAPL", ExchCode: "UW", MarketSector: "Equity", SecurityType: "Common Stock"},
				}}
			case "999999999":
				out[i] = mappingResult{Warning: "No identifier found."}
			default:
				out[i] = mappingResult{Data: []Instrument{{FIGI: "F" + j.IDValue, Ticker: "T", ExchCode: "US"}}}
			}
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	cusips := []string{"037833100", "999999999", "abc", "037833100"}
	for i := 0; i < 12; i++ {
		cusips = append(cusips, "00000000"+string(rune('0'+i%10)))
	}
	got, err := c.Map(context.Background(), cusips)
	require.NoError(t, err)

	aapl := got["037833100"]
	assert.True(t, aapl.Mapped())
	assert.Equal(t, "AAPL", aapl.Ticker)
	assert.Equal(t, "BBG000B9XRY4", aapl.FIGI)

	assert.Equal(t, ReasonNoMatch, got["999999999"].Error)
	assert.False(t, got["999999999"].Transient)
	assert.Equal(t, ReasonInvalid, got["ABC"].Error)
	assert.False(t, got["ABC"].CachedAt.IsZero())

	// 12 valid distinct "00000000x" values collapse to 10 distinct ones, plus 2 above.
	assert.Equal(t, int32(2), calls.Load())
}

func TestMapRetriesThenRecordsFailure(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, "key-123", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "key-123", r.Header.Get("X-OPENFIGI-APIKEY"))
		w.WriteHeader(http.StatusTooManyRequests)
	})

	got, err := c.Map(context.Background(), []string{"037833100"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load(), "retried up to the backoff cap")
	assert.Equal(t, "rate limited", got["037833100"].Error)
	assert.True(t, got["037833100"].Transient)
	assert.False(t, got["037833100"].Mapped())
}

func TestMapRecoversAfterTransientError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"data":[{"figi":"X","ticker":"MSFT","exchCode":"US"}]}]`))
	})

	got, err := c.Map(context.Background(), []string{"594918104"})
	require.NoError(t, err)
	assert.Equal(t, "MSFT", got["594918104"].Ticker)
	assert.Equal(t, int32(2), calls.Load())
}

func TestMapDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})
	got, err := c.Map(context.Background(), []string{"594918104"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "http 400", got["594918104"].Error)
}

func TestMapCancelled(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Map(ctx, []string{"594918104"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSharedLimiterIsSingleton(t *testing.T) {
	a := SharedLimiter(false, 1)
	b := SharedLimiter(true, 8)
	assert.Same(t, a, b)
}

func TestProviderInfo(t *testing.T) {
	c := New(Options{Limiter: infra.NewWindowLimiter(1, time.Second, 1)})
	info := c.Info()
	assert.Equal(t, "openfigi", info.Name)
	require.Len(t, info.Credentials, 1)
	assert.False(t, info.Credentials[0].Required)
}
