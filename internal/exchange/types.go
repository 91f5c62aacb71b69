package exchange

import "net/http"

// Credentials are the exchange API credentials. They are injected
// per call because the secret store may rotate them between cycles.
type Credentials struct {
	APIKey     string
	PrivateKey string
}

// LotSize holds the exchange-imposed quantity constraints for a symbol.
type LotSize struct {
	MinQty   float64
	MaxQty   float64
	StepSize float64
}

// Kline is one fixed-interval bar. Only the fields the bot consumes
// are kept; the exchange returns open/high/low/volume too.
type Kline struct {
	OpenTime int64 // milliseconds since epoch
	Close    float64
}

// OrderResponse is the raw outcome of an order submission. The client
// does not interpret it; callers decide success from the status code.
type OrderResponse struct {
	StatusCode int
	Body       []byte
}

// Ok reports whether the exchange accepted the order.
func (r *OrderResponse) Ok() bool {
	return r.StatusCode == http.StatusOK
}
