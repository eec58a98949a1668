package app

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/oblik/seda-project/internal/config"
	"github.com/oblik/seda-project/internal/database"
	"github.com/oblik/seda-project/internal/notify"
	"github.com/oblik/seda-project/internal/report"
)

// SetupLogger sends logs to stderr; stdout is reserved for the reported outcome
func SetupLogger(level string) {
	setupLogger(os.Stderr, level)
}

func setupLogger(out io.Writer, level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).Level(lvl).With().Timestamp().Logger()
}

// BuildSinks connects the optional outcome sinks. A sink that cannot be set up
// within cfg.SinkSetupTimeout is logged and skipped. The returned func releases them.
func BuildSinks(ctx context.Context, cfg *config.Config) ([]report.Sink, func()) {
	ctx, cancel := context.WithTimeout(ctx, cfg.SinkSetupTimeout())
	defer cancel()

	var sinks []report.Sink
	closers := []func(){}

	if cfg.Database.Enabled() {
		db, err := database.New(ctx, database.ConnectionParams{
			Host:           cfg.Database.Host,
			Port:           cfg.Database.Port,
			User:           cfg.Database.User,
			Password:       cfg.Database.Password,
			DBName:         cfg.Database.DBName,
			SSLMode:        cfg.Database.SSLMode,
			ConnectTimeout: cfg.SinkSetupTimeout(),
		})
		if err != nil {
			log.Error().Err(err).Msg("Audit store unavailable")
		} else {
			sinks = append(sinks, db)
			closers = append(closers, func() { db.Close() })
		}
	}

	if cfg.Telegram.Enabled() {
		n, err := notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.SinkSetupTimeout())
		if err != nil {
			log.Error().Err(err).Msg("Telegram notifications unavailable")
		} else {
			sinks = append(sinks, n)
		}
	}

	return sinks, func() {
		for _, c := range closers {
			c()
		}
	}
}

// Finish reports the outcome to the host, then connects the configured sinks
// and copies the outcome to each of them
func Finish(ctx context.Context, reporter report.Reporter, o report.Outcome, cfg *config.Config) {
	finish(ctx, reporter, o, func(ctx context.Context) ([]report.Sink, func()) {
		return BuildSinks(ctx, cfg)
	})
}

type sinkBuilder func(ctx context.Context) ([]report.Sink, func())

func finish(ctx context.Context, reporter report.Reporter, o report.Outcome, build sinkBuilder) {
	if err := report.Deliver(reporter, o); err != nil {
		log.Error().Err(err).Msg("Failed to report outcome")
	}

	sinks, closeSinks := build(ctx)
	defer closeSinks()
	report.Fanout(ctx, o, sinks...)
}
