package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/probelab/binancebot/internal/exchange"
	"github.com/probelab/binancebot/internal/history"
	"github.com/probelab/binancebot/internal/ledger"
)

// marketAPI is the slice of the exchange client the synchronizer needs.
type marketAPI interface {
	Klines(ctx context.Context, symbol, interval string, endTime int64, limit int) ([]exchange.Kline, error)
	LastPrice(ctx context.Context, symbol string) (float64, error)
	Balances(ctx context.Context, creds exchange.Credentials) (map[string]float64, error)
}

// credentialCache is the TTL-gated credential holder.
type credentialCache interface {
	Get() (exchange.Credentials, bool)
	Stale() bool
	Refresh(ctx context.Context) error
}

// thresholdCache is the TTL-gated threshold holder.
type thresholdCache interface {
	Get() map[string]float64
	Stale() bool
	Refresh() error
}

// positionSource answers the single-open-position query.
type positionSource interface {
	FindOpen() (*ledger.Position, error)
}

// estimator computes an asset's rise probability from its window.
type estimator interface {
	Estimate(ctx context.Context, asset string, prices []float64) (float64, error)
}

// Synchronizer fans out every per-cycle refresh concurrently and joins
// them before the decision step runs. Failure handling is asymmetric:
// position, balance and price refreshes are cycle-fatal, while
// threshold and credential refreshes fall back to stale cached values.
type Synchronizer struct {
	assets     []string
	quote      string
	market     marketAPI
	creds      credentialCache
	thresholds thresholdCache
	positions  positionSource
	estimator  estimator
	state      *State
	log        zerolog.Logger
}

// SynchronizerConfig wires a Synchronizer.
type SynchronizerConfig struct {
	Assets     []string
	QuoteAsset string
	Market     marketAPI
	Creds      credentialCache
	Thresholds thresholdCache
	Positions  positionSource
	Estimator  estimator
	State      *State
	Log        zerolog.Logger
}

// NewSynchronizer creates the per-cycle information synchronizer.
func NewSynchronizer(cfg SynchronizerConfig) *Synchronizer {
	return &Synchronizer{
		assets:     cfg.Assets,
		quote:      cfg.QuoteAsset,
		market:     cfg.Market,
		creds:      cfg.Creds,
		thresholds: cfg.Thresholds,
		positions:  cfg.Positions,
		estimator:  cfg.Estimator,
		state:      cfg.State,
		log:        cfg.Log.With().Str("component", "synchronizer").Logger(),
	}
}

// Sync refreshes all per-cycle inputs in parallel and blocks until
// every task completes. It returns the joined set of fatal errors;
// tolerated failures are logged and the stale value kept.
func (s *Synchronizer) Sync(ctx context.Context) error {
	// The balance query signs with the cached credentials, so a cold
	// start must fetch them before the fan-out.
	if _, ok := s.creds.Get(); !ok {
		if err := s.creds.Refresh(ctx); err != nil {
			return fmt.Errorf("initial credential fetch: %w", err)
		}
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fatal []error
	)
	spawn := func(task func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := task(); err != nil {
				mu.Lock()
				fatal = append(fatal, err)
				mu.Unlock()
			}
		}()
	}

	spawn(func() error {
		pos, err := s.positions.FindOpen()
		if err != nil {
			return fmt.Errorf("refresh open position: %w", err)
		}
		s.state.Position = pos
		return nil
	})

	spawn(func() error {
		return s.refreshBalances(ctx)
	})

	if s.thresholds.Stale() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.thresholds.Refresh(); err != nil {
				s.log.Warn().Err(err).Msg("Threshold refresh failed, keeping cached values")
			}
		}()
	}

	if s.creds.Stale() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.creds.Refresh(ctx); err != nil {
				s.log.Warn().Err(err).Msg("Credential refresh failed, keeping cached values")
			}
		}()
	}

	for _, asset := range s.assets {
		asset := asset
		spawn(func() error {
			return s.syncAsset(ctx, asset)
		})
	}

	wg.Wait()
	return errors.Join(fatal...)
}

// syncAsset brings one asset's window up to date and recomputes its
// estimation. A partially filled window means a cold start: rebuild
// the full history instead of appending.
func (s *Synchronizer) syncAsset(ctx context.Context, asset string) error {
	slot := s.state.Assets[asset]
	symbol := asset + s.quote

	if !slot.Window.Full() {
		if err := history.Bootstrap(ctx, s.market, symbol, slot.Window); err != nil {
			return err
		}
		s.log.Info().Str("asset", asset).Int("samples", slot.Window.Len()).Msg("Price history bootstrapped")
	} else {
		price, err := s.market.LastPrice(ctx, symbol)
		if err != nil {
			return fmt.Errorf("refresh latest price for %s: %w", symbol, err)
		}
		slot.Window.Append(price)
	}

	estimation, err := s.estimator.Estimate(ctx, asset, slot.Window.Prices())
	if err != nil {
		return err
	}
	slot.Estimation = estimation
	return nil
}

// refreshBalances overwrites the account balances from the exchange.
// Also called by the decision engine right after an open or close, so
// the next cycle never sees pre-trade balances.
func (s *Synchronizer) refreshBalances(ctx context.Context) error {
	creds, ok := s.creds.Get()
	if !ok {
		return fmt.Errorf("refresh balances: credentials not loaded")
	}
	balances, err := s.market.Balances(ctx, creds)
	if err != nil {
		return fmt.Errorf("refresh balances: %w", err)
	}
	s.state.Balances = balances
	return nil
}

// RefreshBalances re-queries account balances outside the fan-out.
func (s *Synchronizer) RefreshBalances(ctx context.Context) error {
	return s.refreshBalances(ctx)
}
