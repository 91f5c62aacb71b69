package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/markcheno/go-talib"

	"github.com/probelab/binancebot/internal/ledger"
)

const (
	rsiPeriod = 14
	smaPeriod = 60
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	State        string             `json:"state"`
	CycleTime    time.Time          `json:"cycle_time"`
	Position     *positionResponse  `json:"position,omitempty"`
	QuoteBalance map[string]float64 `json:"balances"`
}

type positionResponse struct {
	OpenedAt      time.Time  `json:"opened_at"`
	Pair          string     `json:"pair"`
	PurchasePrice float64    `json:"purchase_price"`
	TargetPrice   float64    `json:"target_price"`
	StopPrice     float64    `json:"stop_price"`
	Quantity      float64    `json:"quantity"`
	StillOpen     bool       `json:"still_open"`
	SalePrice     *float64   `json:"sale_price,omitempty"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	Profit        *float64   `json:"profit,omitempty"`
}

func toPositionResponse(p *ledger.Position) *positionResponse {
	if p == nil {
		return nil
	}
	return &positionResponse{
		OpenedAt:      p.OpenedAt,
		Pair:          p.Pair,
		PurchasePrice: p.PurchasePrice,
		TargetPrice:   p.TargetPrice,
		StopPrice:     p.StopPrice,
		Quantity:      p.Quantity,
		StillOpen:     p.StillOpen,
		SalePrice:     p.SalePrice,
		ClosedAt:      p.ClosedAt,
		Profit:        p.Profit,
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.board.Snapshot()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no cycle completed yet")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		State:        snap.State,
		CycleTime:    snap.Time,
		Position:     toPositionResponse(snap.Position),
		QuoteBalance: snap.Balances,
	})
}

type estimationsResponse struct {
	CycleTime   time.Time          `json:"cycle_time"`
	Estimations map[string]float64 `json:"estimations"`
	Thresholds  map[string]float64 `json:"thresholds"`
}

func (s *Server) handleEstimations(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.board.Snapshot()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no cycle completed yet")
		return
	}

	writeJSON(w, http.StatusOK, estimationsResponse{
		CycleTime:   snap.Time,
		Estimations: snap.Estimations,
		Thresholds:  snap.Thresholds,
	})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 500 {
			writeError(w, http.StatusBadRequest, "limit must be an integer in [1, 500]")
			return
		}
		limit = parsed
	}

	trades, err := s.ledger.History(limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load trade history")
		writeError(w, http.StatusInternalServerError, "failed to load trade history")
		return
	}

	out := make([]*positionResponse, 0, len(trades))
	for i := range trades {
		out = append(out, toPositionResponse(&trades[i]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"trades": out})
}

type indicatorsResponse struct {
	Asset     string    `json:"asset"`
	CycleTime time.Time `json:"cycle_time"`
	LastPrice float64   `json:"last_price"`
	RSI       float64   `json:"rsi"`
	SMA       float64   `json:"sma"`
}

// handleIndicators computes dashboard indicators over the asset's
// current price window.
func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")

	snap, ok := s.board.Snapshot()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no cycle completed yet")
		return
	}
	prices, ok := snap.Prices[asset]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown asset")
		return
	}
	if len(prices) <= smaPeriod {
		writeError(w, http.StatusServiceUnavailable, "not enough history for indicators")
		return
	}

	rsi := talib.Rsi(prices, rsiPeriod)
	sma := talib.Sma(prices, smaPeriod)

	writeJSON(w, http.StatusOK, indicatorsResponse{
		Asset:     asset,
		CycleTime: snap.Time,
		LastPrice: prices[len(prices)-1],
		RSI:       rsi[len(rsi)-1],
		SMA:       sma[len(sma)-1],
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
