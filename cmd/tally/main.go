package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/oblik/seda-project/internal/app"
	"github.com/oblik/seda-project/internal/config"
	"github.com/oblik/seda-project/internal/oracle"
	"github.com/oblik/seda-project/internal/report"
	"github.com/oblik/seda-project/models"
)

// Usage: tally [reveals.json]
// Reads a JSON array of reveals from the file, or from stdin when no file is given.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(report.ExitFailure)
	}
	app.SetupLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := ""
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	reporter := report.NewStreamReporter(os.Stdout)
	app.Finish(ctx, reporter, run(path), cfg)

	code := reporter.ExitCode()
	stop()
	os.Exit(code)
}

func run(path string) report.Outcome {
	var outcome report.Outcome

	reveals, err := readReveals(path)
	if err != nil {
		log.Error().Err(err).Msg("Error parsing reveals")
		outcome = report.Failure(err)
	} else if median, err := oracle.Tally(reveals); err != nil {
		log.Error().Err(err).Msg("Tally failed")
		outcome = report.Failure(err)
	} else {
		outcome = report.Success(median)
	}

	outcome.Phase = report.PhaseTally
	return outcome
}

func readReveals(path string) ([]models.Reveal, error) {
	in := io.Reader(os.Stdin)
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening reveals: %w", err)
		}
		defer f.Close()
		in = f
	}

	var reveals []models.Reveal
	if err := json.NewDecoder(in).Decode(&reveals); err != nil {
		return nil, fmt.Errorf("parsing reveals: %w", err)
	}
	return reveals, nil
}
