package history

import (
	"context"
	"fmt"

	"github.com/probelab/binancebot/internal/exchange"
)

// Interval is the bar interval every window is built from.
const (
	Interval   = "1m"
	intervalMS = 60_000
)

// KlineSource fetches historical bars, newest batch last.
type KlineSource interface {
	Klines(ctx context.Context, symbol, interval string, endTime int64, limit int) ([]exchange.Kline, error)
}

// Bootstrap fills an empty window with exactly Cap() close prices in
// strictly ascending minute order. The exchange caps a single kline
// request below our capacity, so two contiguous batches are chained:
// the newest half ending now, then an older batch ending one interval
// before the newest batch's earliest bar.
func Bootstrap(ctx context.Context, src KlineSource, symbol string, w *Window) error {
	newestLimit := w.Cap() / 2
	olderLimit := w.Cap() - newestLimit

	newest, err := src.Klines(ctx, symbol, Interval, 0, newestLimit)
	if err != nil {
		return fmt.Errorf("bootstrap %s: newest batch: %w", symbol, err)
	}
	if len(newest) != newestLimit {
		return fmt.Errorf("bootstrap %s: newest batch returned %d bars, want %d", symbol, len(newest), newestLimit)
	}

	older, err := src.Klines(ctx, symbol, Interval, newest[0].OpenTime-intervalMS, olderLimit)
	if err != nil {
		return fmt.Errorf("bootstrap %s: older batch: %w", symbol, err)
	}
	if len(older) != olderLimit {
		return fmt.Errorf("bootstrap %s: older batch returned %d bars, want %d", symbol, len(older), olderLimit)
	}

	bars := append(older, newest...)
	prices := make([]float64, len(bars))
	for i, bar := range bars {
		if i > 0 && bar.OpenTime != bars[i-1].OpenTime+intervalMS {
			return fmt.Errorf("bootstrap %s: gap between bars %d and %d (%d -> %d)",
				symbol, i-1, i, bars[i-1].OpenTime, bar.OpenTime)
		}
		prices[i] = bar.Close
	}

	return w.Fill(prices)
}
