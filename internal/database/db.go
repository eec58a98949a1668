package database

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"

	"github.com/oblik/seda-project/internal/report"
	"github.com/oblik/seda-project/models"
)

// DB represents a database connection used as a write-only audit trail
type DB struct {
	*sql.DB
}

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	// ConnectTimeout bounds the dial and startup handshake; zero waits indefinitely
	ConnectTimeout time.Duration
}

// DSN builds the lib/pq connection string
func (p ConnectionParams) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode,
	)
	if p.ConnectTimeout > 0 {
		// lib/pq takes whole seconds
		secs := int(math.Ceil(p.ConnectTimeout.Seconds()))
		dsn += fmt.Sprintf(" connect_timeout=%d", secs)
	}
	return dsn
}

// New creates a new database connection
func New(ctx context.Context, params ConnectionParams) (*DB, error) {
	db, err := sql.Open("postgres", params.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Check connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Create tables if they don't exist
	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &DB{db}, nil
}

// createTables creates the necessary tables if they don't exist
func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ltv_outcomes (
			id UUID PRIMARY KEY,
			phase TEXT NOT NULL,
			symbol TEXT,
			quote_currency TEXT,
			exit_code INT NOT NULL,
			final_ltv BIGINT,
			dynamic_ltv NUMERIC(20, 10),
			base_pct INT,
			volume_pct INT,
			volatility_pct INT,
			trend_pct INT,
			payload_digest TEXT NOT NULL,
			error_message TEXT,
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	return err
}

// Record stores one reported outcome. It implements report.Sink.
func (db *DB) Record(ctx context.Context, o report.Outcome) error {
	rec := NewAuditRecord(o, time.Now().UTC())

	var finalLTV sql.NullInt64
	if rec.FinalLTV != nil {
		finalLTV = sql.NullInt64{Int64: int64(*rec.FinalLTV), Valid: true}
	}

	var dynamicLTV decimal.NullDecimal
	if rec.DynamicLTV != nil {
		dynamicLTV = decimal.NullDecimal{Decimal: decimal.NewFromFloat(*rec.DynamicLTV).Round(10), Valid: true}
	}

	var base, volume, volatility, trend sql.NullInt64
	if rec.Components != nil {
		base = sql.NullInt64{Int64: int64(rec.Components.Base), Valid: true}
		volume = sql.NullInt64{Int64: int64(rec.Components.Volume), Valid: true}
		volatility = sql.NullInt64{Int64: int64(rec.Components.Volatility), Valid: true}
		trend = sql.NullInt64{Int64: int64(rec.Components.Trend), Valid: true}
	}

	var errMsg sql.NullString
	if rec.ErrorMessage != "" {
		errMsg = sql.NullString{String: rec.ErrorMessage, Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO ltv_outcomes (
			id, phase, symbol, quote_currency, exit_code, final_ltv, dynamic_ltv,
			base_pct, volume_pct, volatility_pct, trend_pct, payload_digest, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		rec.ID, rec.Phase, rec.Symbol, rec.Convert, rec.ExitCode, finalLTV, dynamicLTV,
		base, volume, volatility, trend, rec.PayloadDigest, errMsg, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting audit record: %w", err)
	}

	return nil
}

// NewAuditRecord flattens an outcome into the row that gets stored
func NewAuditRecord(o report.Outcome, now time.Time) models.AuditRecord {
	rec := models.AuditRecord{
		ID:            uuid.NewString(),
		Phase:         o.Phase,
		Symbol:        o.Symbol,
		Convert:       o.Convert,
		ExitCode:      o.ExitCode,
		PayloadDigest: PayloadDigest(o.Payload),
		CreatedAt:     now,
	}

	if o.ExitCode == report.ExitSuccess {
		if v, err := report.DecodeLTV(o.Payload); err == nil {
			ltv := int(v)
			rec.FinalLTV = &ltv
		}
	}
	if o.Result != nil {
		dynamic := o.Result.DynamicLTV
		components := o.Result.Components
		rec.DynamicLTV = &dynamic
		rec.Components = &components
	}
	if o.Err != nil {
		rec.ErrorMessage = o.Err.Error()
	}

	return rec
}

// PayloadDigest is the Keccak-256 of the reported payload, hex encoded
func PayloadDigest(payload []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
