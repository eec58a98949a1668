package oracle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/oblik/seda-project/internal/api/coinmarketcap"
	"github.com/oblik/seda-project/internal/report"
	"github.com/oblik/seda-project/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) FetchSnapshot(ctx context.Context, symbol, convert string) (*models.MarketSnapshot, error) {
	args := m.Called(ctx, symbol, convert)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MarketSnapshot), args.Error(1)
}

var wbtcUSDC = Request{Symbol: "WBTC", Convert: "USDC"}

func TestExecute_DerivesFromSnapshot(t *testing.T) {
	snap, err := models.NewMarketSnapshot(60000, -5, 1_200_000_000)
	require.NoError(t, err)

	fetcher := new(MockFetcher)
	fetcher.On("FetchSnapshot", mock.Anything, "WBTC", "USDC").Return(snap, nil).Once()

	result, err := Execute(context.Background(), fetcher, wbtcUSDC)
	require.NoError(t, err)
	assert.Equal(t, 62, result.FinalLTV)
	assert.Equal(t, models.LtvComponents{Base: 70, Volume: 2, Volatility: 10, Trend: 0}, result.Components)
	fetcher.AssertExpectations(t)
}

func TestExecute_PropagatesFetchErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"rejected", &models.FetchRejectedError{Status: 401, Body: "unauthorized"}},
		{"decode failed", &models.DecodeError{Cause: errors.New("missing field(s): volume_24h")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := new(MockFetcher)
			fetcher.On("FetchSnapshot", mock.Anything, "WBTC", "USDC").Return(nil, tt.err)

			result, err := Execute(context.Background(), fetcher, wbtcUSDC)
			assert.Nil(t, result)
			assert.Same(t, tt.err, err)
		})
	}
}

func TestExecute_DoesNotRelogDecodeFailures(t *testing.T) {
	defer func(l zerolog.Logger) { log.Logger = l }(log.Logger)
	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf)

	fetcher := new(MockFetcher)
	fetcher.On("FetchSnapshot", mock.Anything, "WBTC", "USDC").
		Return(nil, &models.DecodeError{Cause: errors.New("missing field(s): price")})

	_, err := Execute(context.Background(), fetcher, wbtcUSDC)
	require.Error(t, err)
	assert.NotContains(t, buf.String(), `"level":"error"`)
}

// End to end against a fake provider, through the reporting adapter
func TestExecute_ReportsOutcome(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantExit    int
		wantLTV     uint64
		wantContain []string
	}{
		{
			name:     "mild rise",
			status:   http.StatusOK,
			body:     quoteBody(50000, 2.5, 100_000_000),
			wantExit: report.ExitSuccess,
			wantLTV:  70,
		},
		{
			name:     "high negative volatility",
			status:   http.StatusOK,
			body:     quoteBody(50000, -15, 200_000_000),
			wantExit: report.ExitSuccess,
			wantLTV:  60,
		},
		{
			name:        "unauthorized",
			status:      http.StatusUnauthorized,
			body:        "unauthorized",
			wantExit:    report.ExitFailure,
			wantContain: []string{"401", "unauthorized"},
		},
		{
			name:        "rate limited",
			status:      http.StatusTooManyRequests,
			body:        "Rate limit exceeded",
			wantExit:    report.ExitFailure,
			wantContain: []string{"429"},
		},
		{
			name:        "malformed response",
			status:      http.StatusOK,
			body:        `{"data":{"WBTC":{"quote":{"USDC":{"price":50000.0}}}}}`,
			wantExit:    report.ExitFailure,
			wantContain: []string{"percent_change_24h"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			client := coinmarketcap.NewClient(coinmarketcap.ClientOptions{
				APIKey:         "test-key",
				BaseURL:        srv.URL,
				RequestTimeout: 2 * time.Second,
				RequestsPerSec: 100,
			})

			result, err := Execute(context.Background(), client, wbtcUSDC)
			outcome := report.FromResult(result, err)
			assert.Equal(t, tt.wantExit, outcome.ExitCode)

			if tt.wantExit == report.ExitSuccess {
				v, err := report.DecodeLTV(outcome.Payload)
				require.NoError(t, err)
				assert.Equal(t, tt.wantLTV, v)
				return
			}
			for _, s := range tt.wantContain {
				assert.Contains(t, string(outcome.Payload), s)
			}
		})
	}
}

func quoteBody(price, change, volume float64) string {
	return fmt.Sprintf(`{"data":{"WBTC":{"quote":{"USDC":{"price":%v,"percent_change_24h":%v,"volume_24h":%v}}}}}`,
		price, change, volume)
}

func reveal(v uint64, inConsensus bool) models.Reveal {
	return models.Reveal{ExitCode: 0, InConsensus: inConsensus, Result: report.EncodeLTV(v)}
}

func TestTally(t *testing.T) {
	tests := []struct {
		name    string
		reveals []models.Reveal
		want    uint64
		wantErr error
	}{
		{
			name:    "median of three",
			reveals: []models.Reveal{reveal(72, true), reveal(71, true), reveal(73, true)},
			want:    72,
		},
		{
			name:    "extreme outlier",
			reveals: []models.Reveal{reveal(72, true), reveal(90, true), reveal(73, true)},
			want:    73,
		},
		{
			name:    "mixed consensus",
			reveals: []models.Reveal{reveal(72, true), reveal(90, false), reveal(73, true)},
			want:    72,
		},
		{
			name:    "single reveal",
			reveals: []models.Reveal{reveal(65, true)},
			want:    65,
		},
		{
			name: "failed executions are ignored",
			reveals: []models.Reveal{
				reveal(60, true),
				{ExitCode: 1, InConsensus: true, Result: []byte("HTTP Response was rejected")},
				reveal(62, true),
				reveal(64, true),
			},
			want: 62,
		},
		{
			name:    "even count averages down",
			reveals: []models.Reveal{reveal(70, true), reveal(75, true), reveal(60, true), reveal(80, true)},
			want:    72,
		},
		{
			name:    "empty",
			reveals: nil,
			wantErr: ErrNoReveals,
		},
		{
			name:    "nothing in consensus",
			reveals: []models.Reveal{reveal(72, false)},
			wantErr: ErrNoReveals,
		},
		{
			name:    "invalid payload",
			reveals: []models.Reveal{{ExitCode: 0, InConsensus: true, Result: []byte{1, 2, 3}}},
			wantErr: ErrInvalidReveal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Tally(tt.reveals)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMedian_DoesNotReorderInput(t *testing.T) {
	in := []uint64{3, 1, 2}
	assert.Equal(t, uint64(2), median(in))
	assert.Equal(t, []uint64{3, 1, 2}, in)
}

func TestMedian_LargeValuesDoNotOverflow(t *testing.T) {
	top := ^uint64(0)
	assert.Equal(t, top-1, median([]uint64{top, top - 1, top - 2, top}))
}
