package risk

import (
	"math"

	"github.com/oblik/seda-project/models"
)

// Weights holds the fixed rates of the LTV model, as fractions (0.05 == 5%)
type Weights struct {
	Base float64

	VolumeScale     float64 // volume is divided by price * VolumeScale
	MaxVolumeImpact float64

	DownsideDivisor   float64
	MaxDownsideImpact float64
	UpsideDivisor     float64
	MaxUpsideImpact   float64

	TrendDivisor   float64
	MaxTrendImpact float64
}

// DefaultWeights are the production weights.
// Base 70%, volume up to +5%, volatility down to -10% (falls) or -5% (rises), trend up to +3%.
var DefaultWeights = Weights{
	Base:              0.70,
	VolumeScale:       1_000_000,
	MaxVolumeImpact:   0.05,
	DownsideDivisor:   50,
	MaxDownsideImpact: 0.10,
	UpsideDivisor:     100,
	MaxUpsideImpact:   0.05,
	TrendDivisor:      100,
	MaxTrendImpact:    0.03,
}

// Engine derives a bounded LTV from a market snapshot
type Engine struct {
	weights Weights
}

// NewEngine creates an engine with the given weights
func NewEngine(w Weights) *Engine {
	return &Engine{weights: w}
}

// CalculateLTV derives the LTV using DefaultWeights
func CalculateLTV(s models.MarketSnapshot) models.LtvResult {
	return NewEngine(DefaultWeights).Calculate(s)
}

// Calculate derives the LTV of a snapshot. It is pure: the same snapshot always
// gives the same result. The snapshot must come from models.NewMarketSnapshot.
func (e *Engine) Calculate(s models.MarketSnapshot) models.LtvResult {
	base := e.weights.Base
	volume := e.VolumeImpact(s)
	volatility := e.VolatilityImpact(s)
	trend := e.TrendImpact(s)

	dynamic := base + volume - volatility + trend

	return models.LtvResult{
		FinalLTV:   clampLTV(math.Round(dynamic * 100)),
		DynamicLTV: dynamic,
		Components: models.LtvComponents{
			Base:       toPercent(base),
			Volume:     toPercent(volume),
			Volatility: toPercent(volatility),
			Trend:      toPercent(trend),
		},
	}
}

// VolumeImpact is the liquidity bonus: traded value relative to the price scale
func (e *Engine) VolumeImpact(s models.MarketSnapshot) float64 {
	return math.Min(s.Volume24h/(s.Price*e.weights.VolumeScale), e.weights.MaxVolumeImpact)
}

// VolatilityImpact is the penalty for a 24h move. Falls count twice as much as rises.
func (e *Engine) VolatilityImpact(s models.MarketSnapshot) float64 {
	if s.PercentChange24h < 0 {
		return math.Min(math.Abs(s.PercentChange24h)/e.weights.DownsideDivisor, e.weights.MaxDownsideImpact)
	}
	return math.Min(s.PercentChange24h/e.weights.UpsideDivisor, e.weights.MaxUpsideImpact)
}

// TrendImpact is the momentum bonus, only for positive moves.
// It is applied on top of VolatilityImpact, not merged with it.
func (e *Engine) TrendImpact(s models.MarketSnapshot) float64 {
	if s.PercentChange24h > 0 {
		return math.Min(s.PercentChange24h/e.weights.TrendDivisor, e.weights.MaxTrendImpact)
	}
	return 0
}

// clampLTV bounds an already rounded percentage to [MinLTV, MaxLTV].
// NaN maps to MinLTV, the most conservative value.
func clampLTV(pct float64) int {
	if math.IsNaN(pct) || pct < models.MinLTV {
		return models.MinLTV
	}
	if pct > models.MaxLTV {
		return models.MaxLTV
	}
	return int(pct)
}

// toPercent truncates toward zero, matching the audit display values
func toPercent(rate float64) int {
	if math.IsNaN(rate) {
		return 0
	}
	return int(rate * 100)
}
