package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CycleJob runs one synchronize-then-decide invocation per scheduler
// tick. The mutex keeps a slow cycle from overlapping the next tick,
// so two decisions can never race on the single position.
type CycleJob struct {
	mu           sync.Mutex
	synchronizer *Synchronizer
	engine       *Engine
	state        *State
	thresholds   thresholdSource
	board        *StatusBoard
	timeout      time.Duration
	log          zerolog.Logger
}

// CycleJobConfig wires a CycleJob.
type CycleJobConfig struct {
	Synchronizer *Synchronizer
	Engine       *Engine
	State        *State
	Thresholds   thresholdSource
	Board        *StatusBoard
	Timeout      time.Duration
	Log          zerolog.Logger
}

// NewCycleJob creates the per-tick job.
func NewCycleJob(cfg CycleJobConfig) *CycleJob {
	return &CycleJob{
		synchronizer: cfg.Synchronizer,
		engine:       cfg.Engine,
		state:        cfg.State,
		thresholds:   cfg.Thresholds,
		board:        cfg.Board,
		timeout:      cfg.Timeout,
		log:          cfg.Log.With().Str("job", "trade_cycle").Logger(),
	}
}

// Name identifies the job to the scheduler.
func (j *CycleJob) Name() string {
	return "trade_cycle"
}

// Run executes one full cycle. A failed cycle is abandoned; the next
// scheduler tick retries from the ledger's and exchange's ground truth.
func (j *CycleJob) Run() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	started := time.Now()
	if err := j.synchronizer.Sync(ctx); err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	// Publish the synchronized view even if the decision step fails.
	defer j.publish()

	if err := j.engine.Decide(ctx); err != nil {
		return fmt.Errorf("decide: %w", err)
	}

	j.log.Debug().Dur("elapsed", time.Since(started)).Msg("Cycle completed")
	return nil
}

func (j *CycleJob) publish() {
	if j.board == nil {
		return
	}

	snap := Snapshot{
		Time:        time.Now(),
		State:       StateNoPosition,
		Position:    j.state.Position,
		Estimations: make(map[string]float64, len(j.state.Assets)),
		Thresholds:  j.thresholds.Get(),
		Balances:    j.state.Balances,
		Prices:      make(map[string][]float64, len(j.state.Assets)),
	}
	if j.state.Position != nil {
		snap.State = StatePositionOpen
	}
	for asset, slot := range j.state.Assets {
		snap.Estimations[asset] = slot.Estimation
		snap.Prices[asset] = slot.Window.Prices()
	}

	j.board.Update(snap)
}
