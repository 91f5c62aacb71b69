package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/probelab/binancebot/internal/bot"
	"github.com/probelab/binancebot/internal/ledger"
)

func newTestServer(t *testing.T) (*Server, *bot.StatusBoard, *ledger.Repository) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, ledger.InitSchema(db))

	board := bot.NewStatusBoard()
	repo := ledger.NewRepository(db, zerolog.Nop())
	srv := New(Config{Port: 0, Log: zerolog.Nop(), Board: board, Ledger: repo})
	return srv, board, repo
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := get(t, srv, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatusBeforeFirstCycle(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, path := range []string{"/api/status", "/api/estimations", "/api/indicators/BTC"} {
		rec := get(t, srv, path)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestStatusReportsOpenPosition(t *testing.T) {
	srv, board, _ := newTestServer(t)
	board.Update(bot.Snapshot{
		Time:  time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC),
		State: bot.StatePositionOpen,
		Position: &ledger.Position{
			OpenedAt:      time.Date(2026, 8, 31, 11, 30, 0, 0, time.UTC),
			Pair:          "BTCUSDT",
			PurchasePrice: 1000,
			TargetPrice:   1010,
			StopPrice:     980,
			Quantity:      0.5,
			StillOpen:     true,
		},
		Balances: map[string]float64{"USDT": 12.5},
	})

	rec := get(t, srv, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var got statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, bot.StatePositionOpen, got.State)
	require.NotNil(t, got.Position)
	assert.Equal(t, "BTCUSDT", got.Position.Pair)
	assert.Equal(t, 1010.0, got.Position.TargetPrice)
	assert.Equal(t, 12.5, got.QuoteBalance["USDT"])
}

func TestEstimations(t *testing.T) {
	srv, board, _ := newTestServer(t)
	board.Update(bot.Snapshot{
		State:       bot.StateNoPosition,
		Estimations: map[string]float64{"BTC": 0.92},
		Thresholds:  map[string]float64{"BTC": 0.9},
	})

	rec := get(t, srv, "/api/estimations")
	require.Equal(t, http.StatusOK, rec.Code)

	var got estimationsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 0.92, got.Estimations["BTC"])
	assert.Equal(t, 0.9, got.Thresholds["BTC"])
}

func TestTradesLimitValidation(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, limit := range []string{"0", "501", "abc", "-3"} {
		rec := get(t, srv, "/api/trades?limit="+limit)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}

func TestTradesReturnsHistory(t *testing.T) {
	srv, _, repo := newTestServer(t)
	openedAt := time.Date(2026, 8, 31, 11, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Open(ledger.Position{
		OpenedAt:      openedAt,
		Pair:          "ETHUSDT",
		PurchasePrice: 2000,
		TargetPrice:   2020,
		StopPrice:     1960,
		Quantity:      0.25,
		StillOpen:     true,
	}))
	require.NoError(t, repo.Close(openedAt, 2020, openedAt.Add(5*time.Minute), 5))

	rec := get(t, srv, "/api/trades")
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Trades []positionResponse `json:"trades"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Trades, 1)
	assert.Equal(t, "ETHUSDT", got.Trades[0].Pair)
	assert.False(t, got.Trades[0].StillOpen)
	require.NotNil(t, got.Trades[0].Profit)
	assert.Equal(t, 5.0, *got.Trades[0].Profit)
}

func TestIndicators(t *testing.T) {
	srv, board, _ := newTestServer(t)

	prices := make([]float64, 120)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	board.Update(bot.Snapshot{
		State:  bot.StateNoPosition,
		Prices: map[string][]float64{"BTC": prices},
	})

	rec := get(t, srv, "/api/indicators/BTC")
	require.Equal(t, http.StatusOK, rec.Code)

	var got indicatorsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "BTC", got.Asset)
	assert.Equal(t, 219.0, got.LastPrice)
	assert.InDelta(t, 100.0, got.RSI, 1e-6, "monotonic rise pins RSI at 100")
	assert.InDelta(t, 189.5, got.SMA, 1e-6, "mean of the last 60 prices")

	rec = get(t, srv, "/api/indicators/DOGE")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	board.Update(bot.Snapshot{Prices: map[string][]float64{"BTC": prices[:30]}})
	rec = get(t, srv, "/api/indicators/BTC")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
