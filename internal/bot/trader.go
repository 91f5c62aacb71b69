package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/probelab/binancebot/internal/exchange"
	"github.com/probelab/binancebot/internal/ledger"
)

// ErrOrderRejected marks an order the exchange answered with a
// non-success status. The ledger is never touched when it occurs.
var ErrOrderRejected = errors.New("exchange rejected order")

// ErrNoCredentials marks an order attempted before credentials were
// ever successfully fetched.
var ErrNoCredentials = errors.New("exchange credentials not loaded")

// orderAPI is the slice of the exchange client the trader needs.
type orderAPI interface {
	MarketBuyQuote(ctx context.Context, creds exchange.Credentials, symbol string, quoteAmount float64) (*exchange.OrderResponse, error)
	MarketSellBase(ctx context.Context, creds exchange.Credentials, symbol string, quantity float64) (*exchange.OrderResponse, error)
}

// ledgerStore records opened and closed positions.
type ledgerStore interface {
	Open(p ledger.Position) error
	Close(openedAt time.Time, salePrice float64, closedAt time.Time, profit float64) error
}

// credentialSource returns the cached exchange credentials.
type credentialSource interface {
	Get() (exchange.Credentials, bool)
}

// Trader places orders and, only on success, records them in the
// ledger. Orders are fire-and-forget market orders: never retried, so
// a failed submission cannot double-fill; the next cycle re-evaluates
// from the exchange's and ledger's ground truth.
type Trader struct {
	orders orderAPI
	ledger ledgerStore
	creds  credentialSource
	quote  string
	dryRun bool
	now    func() time.Time
	log    zerolog.Logger
}

// TraderConfig wires a Trader.
type TraderConfig struct {
	Orders     orderAPI
	Ledger     ledgerStore
	Creds      credentialSource
	QuoteAsset string
	DryRun     bool
	Log        zerolog.Logger
}

// NewTrader creates a trader.
func NewTrader(cfg TraderConfig) *Trader {
	return &Trader{
		orders: cfg.Orders,
		ledger: cfg.Ledger,
		creds:  cfg.Creds,
		quote:  cfg.QuoteAsset,
		dryRun: cfg.DryRun,
		now:    time.Now,
		log:    cfg.Log.With().Str("component", "trader").Logger(),
	}
}

// Open spends the full available quote balance on a market buy and
// appends the open position row. Any order failure aborts before the
// ledger write.
func (t *Trader) Open(ctx context.Context, asset string, price, target, stop, quoteBalance float64) error {
	symbol := asset + t.quote
	quantity := quoteBalance / price

	if t.dryRun {
		t.log.Info().Str("symbol", symbol).Float64("price", price).Msg("Dry run: skipping buy order")
	} else {
		creds, ok := t.creds.Get()
		if !ok {
			return fmt.Errorf("open %s: %w", symbol, ErrNoCredentials)
		}
		resp, err := t.orders.MarketBuyQuote(ctx, creds, symbol, quoteBalance)
		if err != nil {
			return fmt.Errorf("open %s: %w", symbol, err)
		}
		if !resp.Ok() {
			return fmt.Errorf("open %s: %w: status %d: %s", symbol, ErrOrderRejected, resp.StatusCode, resp.Body)
		}
	}

	return t.ledger.Open(ledger.Position{
		OpenedAt:      t.now(),
		Pair:          symbol,
		PurchasePrice: price,
		TargetPrice:   target,
		StopPrice:     stop,
		Quantity:      quantity,
		StillOpen:     true,
	})
}

// Close sells the full held base balance at market and marks the
// position row closed. On order failure the row stays open so the next
// cycle re-evaluates it.
func (t *Trader) Close(ctx context.Context, pos *ledger.Position, salePrice, heldQty, profit float64) error {
	if t.dryRun {
		t.log.Info().Str("symbol", pos.Pair).Float64("sale_price", salePrice).Msg("Dry run: skipping sell order")
	} else {
		creds, ok := t.creds.Get()
		if !ok {
			return fmt.Errorf("close %s: %w", pos.Pair, ErrNoCredentials)
		}
		resp, err := t.orders.MarketSellBase(ctx, creds, pos.Pair, heldQty)
		if err != nil {
			return fmt.Errorf("close %s: %w", pos.Pair, err)
		}
		if !resp.Ok() {
			return fmt.Errorf("close %s: %w: status %d: %s", pos.Pair, ErrOrderRejected, resp.StatusCode, resp.Body)
		}
	}

	return t.ledger.Close(pos.OpenedAt, salePrice, t.now(), profit)
}
