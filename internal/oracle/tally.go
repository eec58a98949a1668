package oracle

import (
	"errors"
	"fmt"
	"sort"

	"github.com/oblik/seda-project/internal/report"
	"github.com/oblik/seda-project/models"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoReveals     = errors.New("no successful in-consensus reveals")
	ErrInvalidReveal = errors.New("invalid reveal payload")
)

// Tally reduces the reveals of several executions to one LTV: the median of the
// reveals that exited cleanly and are in consensus. With an even count the two
// middle values are averaged, rounding down.
func Tally(reveals []models.Reveal) (uint64, error) {
	logger := log.With().Str("component", "tally").Logger()

	values := make([]uint64, 0, len(reveals))
	for i, r := range reveals {
		if r.ExitCode != 0 || !r.InConsensus {
			logger.Debug().Int("index", i).Int("exit_code", r.ExitCode).Bool("in_consensus", r.InConsensus).
				Msg("Skipping reveal")
			continue
		}

		v, err := report.DecodeLTV(r.Result)
		if err != nil {
			return 0, fmt.Errorf("%w: reveal %d: %v", ErrInvalidReveal, i, err)
		}
		values = append(values, v)
	}

	if len(values) == 0 {
		return 0, ErrNoReveals
	}

	m := median(values)
	logger.Info().Int("reveals", len(reveals)).Int("used", len(values)).Uint64("median", m).Msg("Tallied reveals")
	return m, nil
}

func median(values []uint64) uint64 {
	sorted := make([]uint64, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}

	lo, hi := sorted[mid-1], sorted[mid]
	return lo + (hi-lo)/2
}
