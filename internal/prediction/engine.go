package prediction

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// Oracle answers a feature vector with a rise probability.
type Oracle interface {
	Predict(ctx context.Context, modelID string, features []Feature) (float64, error)
}

// Engine builds feature vectors from a price window and queries the
// oracle. Each tracked asset has its own model, named by prefix plus
// the lowercased asset code.
type Engine struct {
	oracle      Oracle
	indexes     []int
	modelPrefix string
	log         zerolog.Logger
}

// NewEngine creates an estimation engine reading the configured
// offsets into the normalized window.
func NewEngine(oracle Oracle, indexes []int, modelPrefix string, log zerolog.Logger) *Engine {
	return &Engine{
		oracle:      oracle,
		indexes:     indexes,
		modelPrefix: modelPrefix,
		log:         log.With().Str("component", "estimation").Logger(),
	}
}

// Estimate normalizes the window so its mean is 1, extracts the
// configured offsets as named features and returns the oracle's
// probability for the asset.
func (e *Engine) Estimate(ctx context.Context, asset string, prices []float64) (float64, error) {
	features, err := e.Features(asset, prices)
	if err != nil {
		return 0, err
	}

	modelID := e.modelPrefix + strings.ToLower(asset)
	prob, err := e.oracle.Predict(ctx, modelID, features)
	if err != nil {
		return 0, fmt.Errorf("estimation for %s: %w", asset, err)
	}

	e.log.Debug().Str("asset", asset).Float64("probability", prob).Msg("Estimation updated")
	return prob, nil
}

// Features builds the ordered named feature vector for an asset.
func (e *Engine) Features(asset string, prices []float64) ([]Feature, error) {
	if len(prices) == 0 {
		return nil, fmt.Errorf("estimation for %s: empty price window", asset)
	}

	mean := stat.Mean(prices, nil)
	if mean == 0 {
		return nil, fmt.Errorf("estimation for %s: zero-mean price window", asset)
	}

	lc := strings.ToLower(asset)
	features := make([]Feature, 0, len(e.indexes))
	for _, idx := range e.indexes {
		if idx < 0 || idx >= len(prices) {
			return nil, fmt.Errorf("estimation for %s: feature index %d out of range [0, %d)", asset, idx, len(prices))
		}
		features = append(features, Feature{
			Name:  fmt.Sprintf("value_%s_%d", lc, idx),
			Value: prices[idx] / mean,
		})
	}
	return features, nil
}
