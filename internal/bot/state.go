// Package bot holds the per-cycle orchestration: the information
// synchronizer, the decision state machine and the trader that turns
// decisions into orders and ledger rows.
package bot

import (
	"github.com/probelab/binancebot/internal/history"
	"github.com/probelab/binancebot/internal/ledger"
)

// State is the mutable per-cycle view the decision engine reads. The
// asset map is built once at startup and never grows; concurrent
// refresh tasks write through the per-asset pointers, so no two
// goroutines ever touch the same entry.
type State struct {
	Assets   map[string]*AssetState
	Balances map[string]float64 // replaced whole each cycle
	Position *ledger.Position   // nil when flat
}

// AssetState is the refreshable per-asset slot: the price window and
// the estimation computed from it this cycle.
type AssetState struct {
	Window     *history.Window
	Estimation float64
}

// NewState creates the state for a fixed asset list.
func NewState(assets []string, windowCapacity int) *State {
	s := &State{
		Assets:   make(map[string]*AssetState, len(assets)),
		Balances: make(map[string]float64),
	}
	for _, asset := range assets {
		s.Assets[asset] = &AssetState{Window: history.NewWindow(windowCapacity)}
	}
	return s
}
