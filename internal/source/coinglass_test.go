package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vincentortegajr/whale-radar-ai-1/internal/config"
)

func testClient(baseURL string) *CoinGlassClient {
	return NewCoinGlassClient(config.CoinGlassConfig{
		APIKey:         "test-key",
		BaseURL:        baseURL,
		CallsPerMinute: 1000,
		RetryAttempts:  3,
	})
}

func TestScreenerRowsMergesEndpoints(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "5m", r.URL.Query().Get("timeframe"))

		switch r.URL.Path {
		case "/api/v4/perpetual/visual-screener/price-oi-change":
			w.Write([]byte(`[{"symbol":"BTC","price_change_percent_1h":8,"oi_change_percent_1h":60}]`))
		case "/api/v4/perpetual/visual-screener/price-volume-change":
			w.Write([]byte(`[{"symbol":"BTC","volume_change_percent_1h":500},{"symbol":"ETH","price_change_percent_1h":-3}]`))
		case "/api/v4/perpetual/visual-screener/volume-oi-change":
			w.WriteHeader(http.StatusNotFound)
		default:
			t.Errorf("неожиданный путь %s", r.URL.Path)
		}
	}))
	defer server.Close()

	rows, err := testClient(server.URL).ScreenerRows(context.Background(), "5m")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Поля двух эндпоинтов объединены по символу
	assert.Equal(t, "BTC", rows[0].Symbol)
	assert.Equal(t, 8.0, rows[0].Fields["price_change_percent_1h"])
	assert.Equal(t, 60.0, rows[0].Fields["oi_change_percent_1h"])
	assert.Equal(t, 500.0, rows[0].Fields["volume_change_percent_1h"])

	assert.Equal(t, "ETH", rows[1].Symbol)
}

func TestScreenerRowsAllEndpointsDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := testClient(server.URL).ScreenerRows(context.Background(), "5m")
	assert.Error(t, err)
}

func TestLiquidationHeatmap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v4/futures/liquidation-heatmap/model2/BTC", r.URL.Path)
		assert.Equal(t, "24h", r.URL.Query().Get("timeframe"))
		w.Write([]byte(`{"data":{"longs":{"95000":12000000},"shorts":{"110000":48000000}}}`))
	}))
	defer server.Close()

	slice, err := testClient(server.URL).LiquidationHeatmap(context.Background(), "BTC", "24h")
	require.NoError(t, err)

	assert.Equal(t, 12e6, slice.Longs["95000"])
	assert.Equal(t, 48e6, slice.Shorts["110000"])
}

func TestDoRequestRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[{"symbol":"BTC","active":true}]`))
	}))
	defer server.Close()

	symbols, err := testClient(server.URL).PerpetualSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC"}, symbols)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoRequestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := testClient(server.URL).PerpetualSymbols(context.Background())
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPerpetualSymbolsSkipsInactive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"symbol":"BTC","active":true},{"symbol":"LUNA","active":false},{"symbol":"ETH"}]`))
	}))
	defer server.Close()

	symbols, err := testClient(server.URL).PerpetualSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC", "ETH"}, symbols)
}

func TestRSIHeatmap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v4/indicator/rsi-heatmap", r.URL.Path)
		w.Write([]byte(`[{"symbol":"BTC","rsi":25.4},{"symbol":"ETH","rsi":71.2},{"rsi":50}]`))
	}))
	defer server.Close()

	heatmap, err := testClient(server.URL).RSIHeatmap(context.Background(), "1h", 100)
	require.NoError(t, err)
	require.Len(t, heatmap, 2)
	assert.Equal(t, 25.4, heatmap["BTC"])
}

func TestStaticPriceSource(t *testing.T) {
	prices := NewStaticPriceSource()

	price, err := prices.CurrentPrice(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, 43250.0, price)

	// Неизвестный символ получает цену по умолчанию
	price, err = prices.CurrentPrice(context.Background(), "UNKNOWN")
	require.NoError(t, err)
	assert.Equal(t, 100.0, price)
}
