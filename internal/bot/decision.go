package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/probelab/binancebot/internal/ledger"
)

// minQuoteBalance is the exchange's minimum order notional; entries
// below it are rejected upstream, so the engine does not attempt them.
const minQuoteBalance = 10.0

// trader executes the engine's open/close decisions.
type trader interface {
	Open(ctx context.Context, asset string, price, target, stop, quoteBalance float64) error
	Close(ctx context.Context, pos *ledger.Position, salePrice, heldQty, profit float64) error
}

// thresholdSource exposes the current decision cutoffs.
type thresholdSource interface {
	Get() map[string]float64
}

// Engine is the two-state decision machine evaluated once per cycle
// after synchronization: flat, it looks for the strongest entry
// signal; in a position, it looks for an exit condition.
type Engine struct {
	assets           []string
	quote            string
	takeProfit       float64
	stopLoss         float64
	maxTradeDuration time.Duration
	thresholds       thresholdSource
	trader           trader
	state            *State
	refreshBalances  func(ctx context.Context) error
	now              func() time.Time
	log              zerolog.Logger
}

// EngineConfig wires a decision engine.
type EngineConfig struct {
	Assets           []string
	QuoteAsset       string
	TakeProfit       float64
	StopLoss         float64
	MaxTradeDuration time.Duration
	Thresholds       thresholdSource
	Trader           trader
	State            *State
	RefreshBalances  func(ctx context.Context) error
	Log              zerolog.Logger
}

// NewEngine creates the decision engine.
func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		assets:           cfg.Assets,
		quote:            cfg.QuoteAsset,
		takeProfit:       cfg.TakeProfit,
		stopLoss:         cfg.StopLoss,
		maxTradeDuration: cfg.MaxTradeDuration,
		thresholds:       cfg.Thresholds,
		trader:           cfg.Trader,
		state:            cfg.State,
		refreshBalances:  cfg.RefreshBalances,
		now:              time.Now,
		log:              cfg.Log.With().Str("component", "decision").Logger(),
	}
}

// Decide runs one state-machine evaluation over the synchronized state.
func (e *Engine) Decide(ctx context.Context) error {
	if e.state.Position != nil {
		return e.evaluateExit(ctx)
	}
	return e.evaluateEntry(ctx)
}

// evaluateExit closes the held position when the latest price crosses
// the target or stop, or the position outlives the maximum duration.
func (e *Engine) evaluateExit(ctx context.Context) error {
	pos := e.state.Position
	asset := pos.Asset(e.quote)

	slot, ok := e.state.Assets[asset]
	if !ok {
		return fmt.Errorf("open position in untracked asset %s", asset)
	}
	price, ok := slot.Window.Latest()
	if !ok {
		return fmt.Errorf("no price history for held asset %s", asset)
	}

	expired := pos.Age(e.now()) > e.maxTradeDuration
	if price < pos.TargetPrice && price > pos.StopPrice && !expired {
		e.log.Debug().
			Str("asset", asset).
			Float64("price", price).
			Float64("target", pos.TargetPrice).
			Float64("stop", pos.StopPrice).
			Msg("Holding position")
		return nil
	}

	profit := (price - pos.PurchasePrice) * pos.Quantity
	e.log.Info().
		Str("asset", asset).
		Float64("price", price).
		Float64("profit", profit).
		Bool("expired", expired).
		Msg("Closing position")

	if err := e.trader.Close(ctx, pos, price, e.state.Balances[asset], profit); err != nil {
		return err
	}
	return e.refreshBalances(ctx)
}

// evaluateEntry opens a position in the candidate with the largest
// margin (estimation minus threshold). Equal margins keep the first
// asset encountered in the configured order.
func (e *Engine) evaluateEntry(ctx context.Context) error {
	thresholds := e.thresholds.Get()

	best := ""
	bestMargin := 0.0
	for _, asset := range e.assets {
		threshold, ok := thresholds[asset]
		if !ok {
			e.log.Warn().Str("asset", asset).Msg("No threshold available, skipping asset")
			continue
		}
		margin := e.state.Assets[asset].Estimation - threshold
		if margin < 0 {
			continue
		}
		if best == "" || margin > bestMargin {
			best = asset
			bestMargin = margin
		}
	}
	if best == "" {
		return nil
	}

	e.log.Info().Str("asset", best).Float64("margin", bestMargin).Msg("Entry signal")

	balance := e.state.Balances[e.quote]
	if balance <= minQuoteBalance {
		e.log.Warn().Float64("balance", balance).Str("quote", e.quote).Msg("Insufficient funds to open position")
		return nil
	}

	price, ok := e.state.Assets[best].Window.Latest()
	if !ok {
		return fmt.Errorf("no price history for candidate asset %s", best)
	}

	if err := e.trader.Open(ctx, best, price, price*e.takeProfit, price*e.stopLoss, balance); err != nil {
		return err
	}
	return e.refreshBalances(ctx)
}
