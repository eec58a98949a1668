package risk

import (
	"math"
	"testing"

	"github.com/oblik/seda-project/models"
)

func snapshot(t *testing.T, price, change, volume float64) models.MarketSnapshot {
	t.Helper()
	s, err := models.NewMarketSnapshot(price, change, volume)
	if err != nil {
		t.Fatalf("NewMarketSnapshot(%v, %v, %v): %v", price, change, volume, err)
	}
	return *s
}

func TestCalculateLTV_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		price      float64
		change     float64
		volume     float64
		expected   int
		components models.LtvComponents
	}{
		{
			name:       "falling market with moderate volume",
			price:      60000,
			change:     -5,
			volume:     1_200_000_000,
			expected:   62,
			components: models.LtvComponents{Base: 70, Volume: 2, Volatility: 10, Trend: 0},
		},
		{
			name:       "rising market, volatility and trend both apply",
			price:      50000,
			change:     8,
			volume:     500_000_000,
			expected:   69,
			components: models.LtvComponents{Base: 70, Volume: 1, Volatility: 5, Trend: 3},
		},
		{
			name:       "crash with no volume hits the volatility cap",
			price:      50000,
			change:     -90,
			volume:     0,
			expected:   60,
			components: models.LtvComponents{Base: 70, Volume: 0, Volatility: 10, Trend: 0},
		},
		{
			name:     "mild rise",
			price:    50000,
			change:   2.5,
			volume:   100_000_000,
			expected: 70,
		},
		{
			name:     "high negative volatility with high volume",
			price:    50000,
			change:   -15,
			volume:   200_000_000,
			expected: 60,
		},
		{
			name:     "extremely low volume",
			price:    50000,
			change:   1,
			volume:   1_000_000,
			expected: 70,
		},
		{
			name:     "flat market with deep liquidity",
			price:    100,
			change:   0,
			volume:   1e12,
			expected: 75,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateLTV(snapshot(t, tt.price, tt.change, tt.volume))
			if result.FinalLTV != tt.expected {
				t.Errorf("FinalLTV = %d, want %d (dynamic %v)", result.FinalLTV, tt.expected, result.DynamicLTV)
			}
			if tt.components != (models.LtvComponents{}) && result.Components != tt.components {
				t.Errorf("Components = %+v, want %+v", result.Components, tt.components)
			}
		})
	}
}

func TestCalculate_ClampsToBounds(t *testing.T) {
	tests := []struct {
		name     string
		base     float64
		change   float64
		expected int
	}{
		{"far above ceiling", 0.95, 0, models.MaxLTV},
		{"just above ceiling", 0.81, 0, models.MaxLTV},
		{"far below floor", 0.20, 0, models.MinLTV},
		{"below floor after penalty", 0.55, -50, models.MinLTV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := DefaultWeights
			w.Base = tt.base

			result := NewEngine(w).Calculate(snapshot(t, 50000, tt.change, 0))
			if result.FinalLTV != tt.expected {
				t.Errorf("FinalLTV = %d, want %d (dynamic %v)", result.FinalLTV, tt.expected, result.DynamicLTV)
			}
		})
	}
}

func TestCalculate_RoundsHalfAwayFromZero(t *testing.T) {
	tests := []struct {
		base     float64
		expected int
	}{
		{0.625, 63},  // 62.5
		{0.5625, 56}, // 56.25
		{0.6875, 69}, // 68.75
		{0.765625, 77},
	}

	for _, tt := range tests {
		w := DefaultWeights
		w.Base = tt.base

		result := NewEngine(w).Calculate(snapshot(t, 1, 0, 0))
		if result.FinalLTV != tt.expected {
			t.Errorf("base %v: FinalLTV = %d, want %d", tt.base, result.FinalLTV, tt.expected)
		}
	}
}

func TestClampLTV(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{-10, 50},
		{49, 50},
		{50, 50},
		{65, 65},
		{80, 80},
		{81, 80},
		{1000, 80},
		{math.NaN(), 50},
		{math.Inf(1), 80},
		{math.Inf(-1), 50},
	}

	for _, tt := range tests {
		if got := clampLTV(tt.in); got != tt.want {
			t.Errorf("clampLTV(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCalculateLTV_ZeroSnapshotStaysInBounds(t *testing.T) {
	// bypasses NewMarketSnapshot, so price is zero and volume/price is NaN
	result := CalculateLTV(models.MarketSnapshot{})
	if result.FinalLTV != models.MinLTV {
		t.Errorf("FinalLTV = %d, want %d", result.FinalLTV, models.MinLTV)
	}
	if result.Components.Volume != 0 {
		t.Errorf("Volume component = %d, want 0", result.Components.Volume)
	}
}

func TestCalculate_ImpactBounds(t *testing.T) {
	e := NewEngine(DefaultWeights)
	prices := []float64{0.0001, 1, 100, 60000, 1e9}
	changes := []float64{-100, -90, -20, -5, -0.01, 0, 0.01, 2.5, 8, 50, 1000}
	volumes := []float64{0, 1, 1e6, 1.2e9, 1e15}

	for _, p := range prices {
		for _, c := range changes {
			for _, v := range volumes {
				s := snapshot(t, p, c, v)

				if vi := e.VolumeImpact(s); vi < 0 || vi > 0.05 {
					t.Errorf("VolumeImpact(%+v) = %v, outside [0, 0.05]", s, vi)
				}
				if vol := e.VolatilityImpact(s); vol < 0 || vol > 0.10 {
					t.Errorf("VolatilityImpact(%+v) = %v, outside [0, 0.10]", s, vol)
				}
				if tr := e.TrendImpact(s); tr < 0 || tr > 0.03 {
					t.Errorf("TrendImpact(%+v) = %v, outside [0, 0.03]", s, tr)
				}
				if r := e.Calculate(s); r.FinalLTV < models.MinLTV || r.FinalLTV > models.MaxLTV {
					t.Errorf("Calculate(%+v).FinalLTV = %d, outside [%d, %d]", s, r.FinalLTV, models.MinLTV, models.MaxLTV)
				}
			}
		}
	}
}

func TestCalculate_MonotonicInVolume(t *testing.T) {
	prev := 0
	for v := 0.0; v <= 5e9; v += 1e8 {
		ltv := CalculateLTV(snapshot(t, 50000, -3, v)).FinalLTV
		if ltv < prev {
			t.Fatalf("FinalLTV dropped from %d to %d when volume rose to %v", prev, ltv, v)
		}
		prev = ltv
	}
}

func TestCalculate_MonotonicInDownside(t *testing.T) {
	prev := models.MaxLTV + 1
	for c := 0.0; c >= -100; c -= 0.5 {
		ltv := CalculateLTV(snapshot(t, 50000, c, 1e9)).FinalLTV
		if ltv > prev {
			t.Fatalf("FinalLTV rose from %d to %d when change fell to %v", prev, ltv, c)
		}
		prev = ltv
	}
}

func TestCalculate_IsDeterministic(t *testing.T) {
	s := snapshot(t, 61234.56, -3.21, 987_654_321)

	first := CalculateLTV(s)
	for i := 0; i < 10; i++ {
		if got := CalculateLTV(s); got != first {
			t.Fatalf("run %d: got %+v, want %+v", i, got, first)
		}
	}
}
