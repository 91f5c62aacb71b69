package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, zerolog.Nop())
}

func TestLoadExchangeInfo(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/exchangeInfo", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{
			"symbols": [{
				"symbol": "BTCUSDT",
				"filters": [
					{"filterType": "PRICE_FILTER", "minPrice": "0.01"},
					{"filterType": "LOT_SIZE", "minQty": "0.00001", "maxQty": "9000", "stepSize": "0.00001"}
				]
			}]
		}`))
	})

	err := client.LoadExchangeInfo(context.Background(), []string{"BTCUSDT"})
	require.NoError(t, err)

	lot, ok := client.LotSize("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 0.00001, lot.MinQty)
	assert.Equal(t, 9000.0, lot.MaxQty)
	assert.Equal(t, 0.00001, lot.StepSize)
}

func TestLoadExchangeInfoMissingLotSize(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbols": [{"symbol": "BTCUSDT", "filters": []}]}`))
	})

	err := client.LoadExchangeInfo(context.Background(), []string{"BTCUSDT"})
	assert.ErrorContains(t, err, "no LOT_SIZE filter")
}

func TestKlines(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "1m", r.URL.Query().Get("interval"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		assert.Equal(t, "1700000060000", r.URL.Query().Get("endTime"))
		w.Write([]byte(`[
			[1700000000000, "100.0", "101.0", "99.0", "100.5", "12.3", 1700000059999, "0", 10, "0", "0", "0"],
			[1700000060000, "100.5", "102.0", "100.0", "101.2", "9.8", 1700000119999, "0", 8, "0", "0", "0"]
		]`))
	})

	klines, err := client.Klines(context.Background(), "BTCUSDT", "1m", 1700000060000, 2)
	require.NoError(t, err)
	require.Len(t, klines, 2)
	assert.Equal(t, int64(1700000000000), klines[0].OpenTime)
	assert.Equal(t, 100.5, klines[0].Close)
	assert.Equal(t, int64(1700000060000), klines[1].OpenTime)
	assert.Equal(t, 101.2, klines[1].Close)
}

func TestLastPrice(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		w.Write([]byte(`{"symbol": "ETHUSDT", "price": "2012.34"}`))
	})

	price, err := client.LastPrice(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, 2012.34, price)
}

func TestBalancesSignsRequest(t *testing.T) {
	creds := Credentials{APIKey: "test-api-key", PrivateKey: "test-private-key"}

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/account", r.URL.Path)
		assert.Equal(t, "test-api-key", r.Header.Get("X-MBX-APIKEY"))

		// The signature must cover the query string exactly as sent.
		raw := r.URL.RawQuery
		idx := strings.Index(raw, "&signature=")
		require.GreaterOrEqual(t, idx, 0, "missing signature parameter")
		payload, sig := raw[:idx], raw[idx+len("&signature="):]
		assert.Equal(t, Sign(creds.PrivateKey, payload), sig)

		w.Write([]byte(`{"balances": [
			{"asset": "USDT", "free": "120.5", "locked": "0"},
			{"asset": "BTC", "free": "0.002", "locked": "0"}
		]}`))
	})

	balances, err := client.Balances(context.Background(), creds)
	require.NoError(t, err)
	assert.Equal(t, 120.5, balances["USDT"])
	assert.Equal(t, 0.002, balances["BTC"])
}

func TestBalancesAuthFailure(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code": -1022, "msg": "Signature for this request is not valid."}`))
	})

	_, err := client.Balances(context.Background(), Credentials{APIKey: "k", PrivateKey: "s"})
	assert.ErrorIs(t, err, ErrAuthSignature)
}

func TestMarketBuyQuoteTruncatesNotional(t *testing.T) {
	var query string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v3/order", r.URL.Path)
		query = r.URL.RawQuery
		w.Write([]byte(`{"orderId": 42}`))
	})

	resp, err := client.MarketBuyQuote(context.Background(), Credentials{APIKey: "k", PrivateKey: "s"}, "BTCUSDT", 120.7)
	require.NoError(t, err)
	assert.True(t, resp.Ok())

	assert.Contains(t, query, "symbol=BTCUSDT")
	assert.Contains(t, query, "quoteOrderQty=120")
	assert.Contains(t, query, "side=BUY")
	assert.Contains(t, query, "type=MARKET")
}

func TestMarketSellBaseNormalizesQuantity(t *testing.T) {
	var query string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Write([]byte(`{"orderId": 43}`))
	})
	client.lots["ETHUSDT"] = LotSize{MinQty: 0.001, MaxQty: 9000, StepSize: 0.001}

	resp, err := client.MarketSellBase(context.Background(), Credentials{APIKey: "k", PrivateKey: "s"}, "ETHUSDT", 0.12349)
	require.NoError(t, err)
	assert.True(t, resp.Ok())

	assert.Contains(t, query, "quantity=0.12300000")
	assert.Contains(t, query, "side=SELL")
}

func TestMarketSellBaseUnknownSymbol(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := client.MarketSellBase(context.Background(), Credentials{}, "DOGEUSDT", 5)
	assert.ErrorContains(t, err, "no lot-size constraints")
}

func TestOrderRejectionIsNotAnError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code": -2010, "msg": "Account has insufficient balance"}`))
	})

	resp, err := client.MarketBuyQuote(context.Background(), Credentials{APIKey: "k", PrivateKey: "s"}, "BTCUSDT", 50)
	require.NoError(t, err, "a rejected order is a response, not a transport error")
	assert.False(t, resp.Ok())
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "insufficient balance")
}
