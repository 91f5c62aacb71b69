package bot

import (
	"sync"
	"time"

	"github.com/probelab/binancebot/internal/ledger"
)

// Machine states as reported by the status API.
const (
	StateNoPosition   = "no_position"
	StatePositionOpen = "position_open"
)

// Snapshot is the read-only view of the last completed cycle,
// published for the status API. Cycle state is owned by the cycle
// goroutine; the HTTP server only ever sees these copies.
type Snapshot struct {
	Time        time.Time
	State       string
	Position    *ledger.Position
	Estimations map[string]float64
	Thresholds  map[string]float64
	Balances    map[string]float64
	Prices      map[string][]float64
}

// StatusBoard hands finished-cycle snapshots to concurrent readers.
type StatusBoard struct {
	mu   sync.RWMutex
	snap *Snapshot
}

// NewStatusBoard creates an empty board.
func NewStatusBoard() *StatusBoard {
	return &StatusBoard{}
}

// Update replaces the published snapshot.
func (b *StatusBoard) Update(snap Snapshot) {
	b.mu.Lock()
	b.snap = &snap
	b.mu.Unlock()
}

// Snapshot returns the last published snapshot, if any cycle has
// completed yet.
func (b *StatusBoard) Snapshot() (Snapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.snap == nil {
		return Snapshot{}, false
	}
	return *b.snap, true
}
