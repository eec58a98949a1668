package oracle

import (
	"context"
	"errors"

	"github.com/oblik/seda-project/internal/risk"
	"github.com/oblik/seda-project/models"
	"github.com/rs/zerolog/log"
)

// Request names the collateral pair to price
type Request struct {
	Symbol  string
	Convert string
}

// Execute fetches one snapshot and derives its LTV. Fetch and decode errors are
// returned as they are, so callers can tell *models.FetchRejectedError apart
// from *models.DecodeError. The engine never runs when the fetch fails.
func Execute(ctx context.Context, fetcher models.SnapshotFetcher, req Request) (*models.LtvResult, error) {
	logger := log.With().Str("component", "oracle").Str("symbol", req.Symbol).Str("convert", req.Convert).Logger()

	snapshot, err := fetcher.FetchSnapshot(ctx, req.Symbol, req.Convert)
	if err != nil {
		// the fetcher has already logged the failure
		var rejected *models.FetchRejectedError
		if errors.As(err, &rejected) {
			logger.Warn().Int("status", rejected.Status).Msg("Quote fetch rejected, skipping derivation")
		}
		return nil, err
	}

	result := risk.CalculateLTV(*snapshot)

	logger.Info().Int("final_ltv", result.FinalLTV).Float64("dynamic_ltv", result.DynamicLTV).
		Msgf("Calculated dynamic LTV: %d%%", result.FinalLTV)
	logger.Info().
		Int("base", result.Components.Base).
		Int("volume", result.Components.Volume).
		Int("volatility", result.Components.Volatility).
		Int("trend", result.Components.Trend).
		Msgf("Components: Base=%d%%, Volume=%d%%, Volatility=%d%%, Trend=%d%%",
			result.Components.Base, result.Components.Volume, result.Components.Volatility, result.Components.Trend)

	return &result, nil
}
