package models

import (
	"fmt"
	"math"
	"time"
)

// MarketSnapshot holds one fetched quote used as input to the LTV derivation.
// Build it with NewMarketSnapshot; a zero value is not a valid snapshot.
type MarketSnapshot struct {
	Price            float64 `json:"price"`
	PercentChange24h float64 `json:"percent_change_24h"`
	Volume24h        float64 `json:"volume_24h"`
}

// NewMarketSnapshot validates the raw quote values and returns a snapshot.
// Price must be positive, volume non-negative, and every value finite.
func NewMarketSnapshot(price, percentChange24h, volume24h float64) (*MarketSnapshot, error) {
	if !isFinite(price) || !isFinite(percentChange24h) || !isFinite(volume24h) {
		return nil, fmt.Errorf("%w: non-finite value (price=%v change=%v volume=%v)",
			ErrInvalidSnapshot, price, percentChange24h, volume24h)
	}
	if price <= 0 {
		return nil, fmt.Errorf("%w: price must be positive, got %v", ErrInvalidSnapshot, price)
	}
	if volume24h < 0 {
		return nil, fmt.Errorf("%w: volume must not be negative, got %v", ErrInvalidSnapshot, volume24h)
	}

	return &MarketSnapshot{
		Price:            price,
		PercentChange24h: percentChange24h,
		Volume24h:        volume24h,
	}, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// LtvComponents are the per-factor contributions in whole percent, truncated
type LtvComponents struct {
	Base       int `json:"base"`
	Volume     int `json:"volume"`
	Volatility int `json:"volatility"`
	Trend      int `json:"trend"`
}

// LtvResult is the outcome of one derivation
type LtvResult struct {
	FinalLTV   int           `json:"final_ltv"`   // percent, always within [MinLTV, MaxLTV]
	DynamicLTV float64       `json:"dynamic_ltv"` // unrounded rate before scaling and clamping
	Components LtvComponents `json:"components"`
}

// LTV bounds applied after rounding
const (
	MinLTV = 50
	MaxLTV = 80
)

// QuotesLatestResponse represents the quotes/latest payload from CoinMarketCap
type QuotesLatestResponse struct {
	Status struct {
		Timestamp    string `json:"timestamp"`
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
	Data map[string]QuoteAsset `json:"data"`
}

// QuoteAsset is one asset entry under "data"
type QuoteAsset struct {
	Symbol string                `json:"symbol"`
	Quote  map[string]QuoteEntry `json:"quote"`
}

// QuoteEntry holds the values quoted in one currency.
// Pointers distinguish a missing field from a zero value.
type QuoteEntry struct {
	Price            *float64 `json:"price"`
	PercentChange24h *float64 `json:"percent_change_24h"`
	Volume24h        *float64 `json:"volume_24h"`
}

// Reveal is a single execution outcome as seen by the tally phase
type Reveal struct {
	ExitCode    int    `json:"exit_code"`
	GasUsed     uint64 `json:"gas_used"`
	InConsensus bool   `json:"in_consensus"`
	Result      []byte `json:"result"`
}

// AuditRecord is what gets written to the audit store for every reported outcome
type AuditRecord struct {
	ID            string
	Phase         string
	Symbol        string
	Convert       string
	ExitCode      int
	FinalLTV      *int
	DynamicLTV    *float64
	Components    *LtvComponents
	PayloadDigest string
	ErrorMessage  string
	CreatedAt     time.Time
}
