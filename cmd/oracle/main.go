package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/oblik/seda-project/internal/api/coinmarketcap"
	"github.com/oblik/seda-project/internal/app"
	"github.com/oblik/seda-project/internal/config"
	"github.com/oblik/seda-project/internal/oracle"
	"github.com/oblik/seda-project/internal/report"
	"github.com/oblik/seda-project/models"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(report.ExitFailure)
	}
	app.SetupLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reporter := report.NewStreamReporter(os.Stdout)
	app.Finish(ctx, reporter, run(ctx, cfg), cfg)

	code := reporter.ExitCode()
	stop()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config) report.Outcome {
	var outcome report.Outcome

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		outcome = report.Failure(fmt.Errorf("invalid configuration: %w", err))
	} else {
		client := coinmarketcap.NewClient(coinmarketcap.ClientOptions{
			APIKey:         cfg.CMCAPIKey,
			KeyHeader:      cfg.CMCKeyHeader,
			BaseURL:        cfg.CMCBaseURL,
			RequestTimeout: cfg.Timeout(),
			RequestsPerSec: cfg.RequestsPerSec,
			MaxRetries:     cfg.MaxRetries,
			RetryInterval:  cfg.RetryInterval(),
		})

		result, err := oracle.Execute(ctx, client, oracle.Request{Symbol: cfg.Symbol, Convert: cfg.Convert})
		outcome = report.FromResult(result, err)

		var decodeErr *models.DecodeError
		if errors.As(err, &decodeErr) {
			// A 2xx with the wrong shape means the provider contract changed
			log.Error().Err(err).Msg("Provider response did not match the quote schema")
		}
	}

	outcome.Phase = report.PhaseExecution
	outcome.Symbol = cfg.Symbol
	outcome.Convert = cfg.Convert
	return outcome
}
