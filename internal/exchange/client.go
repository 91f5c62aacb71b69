package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// ErrAuthSignature marks a request the exchange rejected as
// unauthorized (bad key or signature mismatch).
var ErrAuthSignature = errors.New("exchange rejected request signature")

// Client talks to the Binance spot REST API. Public market-data calls
// need no credentials; account and order calls are signed per request.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
	lots    map[string]LotSize // immutable after LoadExchangeInfo
}

// NewClient creates a new exchange client
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log.With().Str("client", "exchange").Logger(),
		lots:    make(map[string]LotSize),
	}
}

type exchangeInfoResponse struct {
	Symbols []struct {
		Symbol  string `json:"symbol"`
		Filters []struct {
			FilterType string `json:"filterType"`
			MinQty     string `json:"minQty"`
			MaxQty     string `json:"maxQty"`
			StepSize   string `json:"stepSize"`
		} `json:"filters"`
	} `json:"symbols"`
}

// LoadExchangeInfo fetches the LOT_SIZE filter for every symbol once,
// at construction time. The constraints are immutable afterwards.
func (c *Client) LoadExchangeInfo(ctx context.Context, symbols []string) error {
	for _, symbol := range symbols {
		body, err := c.get(ctx, "/api/v3/exchangeInfo", url.Values{"symbol": {symbol}})
		if err != nil {
			return fmt.Errorf("failed to fetch exchange info for %s: %w", symbol, err)
		}

		var info exchangeInfoResponse
		if err := json.Unmarshal(body, &info); err != nil {
			return fmt.Errorf("failed to unmarshal exchange info for %s: %w", symbol, err)
		}
		if len(info.Symbols) == 0 {
			return fmt.Errorf("no exchange info for symbol %s", symbol)
		}

		found := false
		for _, filter := range info.Symbols[0].Filters {
			if filter.FilterType != "LOT_SIZE" {
				continue
			}
			lot, err := parseLotSize(filter.MinQty, filter.MaxQty, filter.StepSize)
			if err != nil {
				return fmt.Errorf("invalid LOT_SIZE filter for %s: %w", symbol, err)
			}
			c.lots[symbol] = lot
			found = true
			break
		}
		if !found {
			return fmt.Errorf("no LOT_SIZE filter for symbol %s", symbol)
		}
	}

	c.log.Info().Int("symbols", len(c.lots)).Msg("Exchange trade-size constraints loaded")
	return nil
}

func parseLotSize(minQty, maxQty, stepSize string) (LotSize, error) {
	min, err := strconv.ParseFloat(minQty, 64)
	if err != nil {
		return LotSize{}, fmt.Errorf("minQty: %w", err)
	}
	max, err := strconv.ParseFloat(maxQty, 64)
	if err != nil {
		return LotSize{}, fmt.Errorf("maxQty: %w", err)
	}
	step, err := strconv.ParseFloat(stepSize, 64)
	if err != nil {
		return LotSize{}, fmt.Errorf("stepSize: %w", err)
	}
	return LotSize{MinQty: min, MaxQty: max, StepSize: step}, nil
}

// LotSize returns the cached trade-size constraints for a symbol.
func (c *Client) LotSize(symbol string) (LotSize, bool) {
	lot, ok := c.lots[symbol]
	return lot, ok
}

// Klines fetches up to limit bars for a symbol, newest last. A zero
// endTime means "ending now"; otherwise bars at or before endTime
// (milliseconds) are returned.
func (c *Client) Klines(ctx context.Context, symbol, interval string, endTime int64, limit int) ([]Kline, error) {
	q := url.Values{
		"symbol":   {symbol},
		"interval": {interval},
		"limit":    {strconv.Itoa(limit)},
	}
	if endTime > 0 {
		q.Set("endTime", strconv.FormatInt(endTime, 10))
	}

	body, err := c.get(ctx, "/api/v3/klines", q)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch klines for %s: %w", symbol, err)
	}

	// Each bar is a heterogeneous array: [openTime, open, high, low, close, ...]
	var raw [][]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal klines for %s: %w", symbol, err)
	}

	klines := make([]Kline, 0, len(raw))
	for _, bar := range raw {
		if len(bar) < 5 {
			return nil, fmt.Errorf("malformed kline for %s: %d fields", symbol, len(bar))
		}
		openTime, ok := bar[0].(float64)
		if !ok {
			return nil, fmt.Errorf("malformed kline open time for %s", symbol)
		}
		closeStr, ok := bar[4].(string)
		if !ok {
			return nil, fmt.Errorf("malformed kline close price for %s", symbol)
		}
		closePrice, err := strconv.ParseFloat(closeStr, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse close price for %s: %w", symbol, err)
		}
		klines = append(klines, Kline{OpenTime: int64(openTime), Close: closePrice})
	}

	return klines, nil
}

type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// LastPrice fetches the latest traded price for a symbol.
func (c *Client) LastPrice(ctx context.Context, symbol string) (float64, error) {
	body, err := c.get(ctx, "/api/v3/ticker/price", url.Values{"symbol": {symbol}})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch ticker for %s: %w", symbol, err)
	}

	var ticker tickerResponse
	if err := json.Unmarshal(body, &ticker); err != nil {
		return 0, fmt.Errorf("failed to unmarshal ticker for %s: %w", symbol, err)
	}
	if ticker.Price == "" {
		return 0, fmt.Errorf("empty ticker price for %s", symbol)
	}

	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse ticker price for %s: %w", symbol, err)
	}
	return price, nil
}

type accountResponse struct {
	Balances []struct {
		Asset string `json:"asset"`
		Free  string `json:"free"`
	} `json:"balances"`
}

// Balances fetches the free balance of every asset in the account.
func (c *Client) Balances(ctx context.Context, creds Credentials) (map[string]float64, error) {
	query := signedQuery([]param{
		{"timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10)},
	}, creds)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v3/account?"+query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-MBX-APIKEY", creds.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: %s", ErrAuthSignature, body)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("account query failed with status %d: %s", resp.StatusCode, body)
	}

	var account accountResponse
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}

	balances := make(map[string]float64, len(account.Balances))
	for _, bal := range account.Balances {
		free, err := strconv.ParseFloat(bal.Free, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse balance for %s: %w", bal.Asset, err)
		}
		balances[bal.Asset] = free
	}
	return balances, nil
}

// MarketBuyQuote places a market buy for a quote-currency notional
// amount. The amount is truncated to a whole quote unit before
// submission. No quantity normalization applies to notional buys.
func (c *Client) MarketBuyQuote(ctx context.Context, creds Credentials, symbol string, quoteAmount float64) (*OrderResponse, error) {
	params := []param{
		{"symbol", symbol},
		{"quoteOrderQty", strconv.Itoa(int(quoteAmount))},
		{"type", "MARKET"},
		{"side", "BUY"},
		{"timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10)},
	}

	c.log.Info().Str("symbol", symbol).Float64("quote_amount", quoteAmount).Msg("Placing market buy")
	return c.postOrder(ctx, creds, params)
}

// MarketSellBase places a market sell for a base-asset quantity. The
// quantity is normalized against the symbol's lot-size constraints.
func (c *Client) MarketSellBase(ctx context.Context, creds Credentials, symbol string, quantity float64) (*OrderResponse, error) {
	lot, ok := c.lots[symbol]
	if !ok {
		return nil, fmt.Errorf("no lot-size constraints loaded for %s", symbol)
	}
	quantity = NormalizeQty(quantity, lot)

	params := []param{
		{"symbol", symbol},
		{"quantity", strconv.FormatFloat(quantity, 'f', 8, 64)},
		{"type", "MARKET"},
		{"side", "SELL"},
		{"timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10)},
	}

	c.log.Info().Str("symbol", symbol).Float64("quantity", quantity).Msg("Placing market sell")
	return c.postOrder(ctx, creds, params)
}

// postOrder submits a signed order and returns the raw outcome. The
// caller decides success or failure from the status code.
func (c *Client) postOrder(ctx context.Context, creds Credentials, params []param) (*OrderResponse, error) {
	query := signedQuery(params, creds)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v3/order?"+query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-MBX-APIKEY", creds.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &OrderResponse{StatusCode: resp.StatusCode, Body: body}, nil
}

// get performs an unauthenticated GET against a public endpoint.
func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request to %s failed with status %d: %s", path, resp.StatusCode, body)
	}
	return body, nil
}
