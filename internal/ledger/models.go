// Package ledger persists the bot's trades. The whole ledger holds at
// most one open position at any time.
package ledger

import (
	"strings"
	"time"
)

// Position is one ledger row. A row is inserted when a trade opens and
// updated exactly once when it closes; the close fields stay nil while
// the position is open.
type Position struct {
	OpenedAt      time.Time
	Pair          string
	PurchasePrice float64
	TargetPrice   float64
	StopPrice     float64
	Quantity      float64
	StillOpen     bool
	SalePrice     *float64
	ClosedAt      *time.Time
	Profit        *float64
}

// Asset returns the base asset of the traded pair.
func (p Position) Asset(quote string) string {
	return strings.TrimSuffix(p.Pair, quote)
}

// Age returns how long the position has been open.
func (p Position) Age(now time.Time) time.Duration {
	return now.Sub(p.OpenedAt)
}
