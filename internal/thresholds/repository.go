// Package thresholds serves the per-asset decision cutoffs published
// by the model-training pipeline.
package thresholds

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Schema backs the thresholds table. The training pipeline appends a
// fresh row per asset after each calibration run; the bot only ever
// reads the newest row per asset.
const Schema = `
CREATE TABLE IF NOT EXISTS thresholds (
    id INTEGER PRIMARY KEY,
    coin TEXT NOT NULL,
    threshold REAL NOT NULL,
    ingestion_timestamp TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_thresholds_ingestion ON thresholds(ingestion_timestamp);
`

// InitSchema ensures the thresholds table exists.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}

// Repository reads threshold rows from the store.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new threshold repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "thresholds").Logger(),
	}
}

// Latest returns the newest threshold per asset by reading the most
// recent `limit` rows newest-first, one per tracked asset. Coins are
// keyed uppercase.
func (r *Repository) Latest(limit int) (map[string]float64, error) {
	query := `
		SELECT coin, threshold FROM thresholds
		ORDER BY ingestion_timestamp DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query thresholds: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64, limit)
	for rows.Next() {
		var coin string
		var threshold float64
		if err := rows.Scan(&coin, &threshold); err != nil {
			return nil, fmt.Errorf("failed to scan threshold: %w", err)
		}
		coin = strings.ToUpper(coin)
		// Newest-first: keep the first row seen per coin.
		if _, seen := out[coin]; !seen {
			out[coin] = threshold
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating thresholds: %w", err)
	}

	return out, nil
}
