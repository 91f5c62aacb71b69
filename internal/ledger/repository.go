package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Schema backs the trades table. The partial unique index is the
// storage-level guarantee that at most one row is open at a time: a
// second concurrent open fails the insert instead of corrupting the
// single-position invariant.
const Schema = `
CREATE TABLE IF NOT EXISTS trades (
    ingestion_time TEXT PRIMARY KEY,
    pair TEXT NOT NULL,
    purchase_price REAL NOT NULL,
    target_price REAL NOT NULL,
    stop_loss_price REAL NOT NULL,
    sale_price REAL,
    quantity REAL NOT NULL,
    still_open INTEGER NOT NULL,
    close_time TEXT,
    profit REAL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_trades_one_open ON trades(still_open) WHERE still_open = 1;
`

// InitSchema ensures the trades table exists.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}

// ErrNotFound marks a close against a row that is missing or already closed.
var ErrNotFound = errors.New("ledger: open position not found")

// Repository handles trade ledger operations.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new ledger repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "ledger").Logger(),
	}
}

// Open inserts a new open position row.
func (r *Repository) Open(p Position) error {
	query := `
		INSERT INTO trades
		(ingestion_time, pair, purchase_price, target_price, stop_loss_price,
		 sale_price, quantity, still_open, close_time, profit)
		VALUES (?, ?, ?, ?, ?, NULL, ?, 1, NULL, NULL)
	`

	_, err := r.db.Exec(query,
		p.OpenedAt.UTC().Format(time.RFC3339Nano),
		p.Pair,
		p.PurchasePrice,
		p.TargetPrice,
		p.StopPrice,
		p.Quantity,
	)
	if err != nil {
		return fmt.Errorf("failed to open position: %w", err)
	}

	r.log.Info().
		Str("pair", p.Pair).
		Float64("price", p.PurchasePrice).
		Float64("quantity", p.Quantity).
		Msg("Position opened")

	return nil
}

// Close marks the row keyed by its open time as closed. It fails with
// ErrNotFound when no open row matches, leaving the ledger untouched.
func (r *Repository) Close(openedAt time.Time, salePrice float64, closedAt time.Time, profit float64) error {
	query := `
		UPDATE trades
		SET still_open = 0, sale_price = ?, close_time = ?, profit = ?
		WHERE ingestion_time = ? AND still_open = 1
	`

	res, err := r.db.Exec(query,
		salePrice,
		closedAt.UTC().Format(time.RFC3339Nano),
		profit,
		openedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to close position: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check close result: %w", err)
	}
	if affected != 1 {
		return fmt.Errorf("%w: opened at %s", ErrNotFound, openedAt.UTC().Format(time.RFC3339Nano))
	}

	r.log.Info().
		Float64("sale_price", salePrice).
		Float64("profit", profit).
		Msg("Position closed")

	return nil
}

// FindOpen returns the single open position, or nil when flat.
func (r *Repository) FindOpen() (*Position, error) {
	query := `
		SELECT ingestion_time, pair, purchase_price, target_price, stop_loss_price,
		       sale_price, quantity, still_open, close_time, profit
		FROM trades WHERE still_open = 1 LIMIT 1
	`

	p, err := scanPosition(r.db.QueryRow(query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open position: %w", err)
	}

	return &p, nil
}

// History returns the most recently opened rows, newest first.
func (r *Repository) History(limit int) ([]Position, error) {
	query := `
		SELECT ingestion_time, pair, purchase_price, target_price, stop_loss_price,
		       sale_price, quantity, still_open, close_time, profit
		FROM trades ORDER BY ingestion_time DESC LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade history: %w", err)
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}

	return positions, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(row rowScanner) (Position, error) {
	var p Position
	var openedAt string
	var stillOpen int
	var salePrice, profit sql.NullFloat64
	var closedAt sql.NullString

	err := row.Scan(&openedAt, &p.Pair, &p.PurchasePrice, &p.TargetPrice, &p.StopPrice,
		&salePrice, &p.Quantity, &stillOpen, &closedAt, &profit)
	if err != nil {
		return Position{}, err
	}

	p.OpenedAt, err = time.Parse(time.RFC3339Nano, openedAt)
	if err != nil {
		return Position{}, fmt.Errorf("invalid ingestion_time %q: %w", openedAt, err)
	}
	p.StillOpen = stillOpen == 1
	if salePrice.Valid {
		p.SalePrice = &salePrice.Float64
	}
	if profit.Valid {
		p.Profit = &profit.Float64
	}
	if closedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, closedAt.String)
		if err != nil {
			return Position{}, fmt.Errorf("invalid close_time %q: %w", closedAt.String, err)
		}
		p.ClosedAt = &t
	}

	return p, nil
}
