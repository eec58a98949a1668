package report

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/oblik/seda-project/models"
	"github.com/rs/zerolog/log"
)

// PayloadSize is the width of a success payload: one little-endian uint64
const PayloadSize = 8

// Exit codes reported to the host
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// Phases an outcome can come from
const (
	PhaseExecution = "execution"
	PhaseTally     = "tally"
)

var ErrAlreadyReported = errors.New("outcome already reported")

// EncodeLTV encodes a value as a fixed-width little-endian uint64
func EncodeLTV(v uint64) []byte {
	buf := make([]byte, PayloadSize)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}

// DecodeLTV is the inverse of EncodeLTV and rejects any other width
func DecodeLTV(payload []byte) (uint64, error) {
	if len(payload) != PayloadSize {
		return 0, fmt.Errorf("payload is %d bytes, want %d", len(payload), PayloadSize)
	}
	return binary.LittleEndian.Uint64(payload), nil
}

// Outcome is the single result of one invocation
type Outcome struct {
	Phase    string
	Symbol   string
	Convert  string
	ExitCode int
	Payload  []byte
	Result   *models.LtvResult // execution phase only
	Err      error
}

// Success builds a successful outcome carrying value
func Success(value uint64) Outcome {
	return Outcome{ExitCode: ExitSuccess, Payload: EncodeLTV(value)}
}

// Failure builds an error outcome whose payload is the diagnostic text
func Failure(err error) Outcome {
	return Outcome{ExitCode: ExitFailure, Payload: []byte(err.Error()), Err: err}
}

// FromResult converts what oracle.Execute returned into an outcome
func FromResult(result *models.LtvResult, err error) Outcome {
	if err != nil {
		return Failure(err)
	}
	if result == nil {
		return Failure(errors.New("no result produced"))
	}
	o := Success(uint64(result.FinalLTV))
	o.Result = result
	return o
}

// Reporter is the host's one-shot success/error primitive
type Reporter interface {
	ReportSuccess(payload []byte) error
	ReportError(payload []byte) error
}

// Deliver hands the outcome to the reporter
func Deliver(r Reporter, o Outcome) error {
	if o.ExitCode == ExitSuccess {
		return r.ReportSuccess(o.Payload)
	}
	return r.ReportError(o.Payload)
}

// StreamReporter writes the outcome to a stream: a success payload as hex,
// an error payload as text. Only the first report is accepted.
type StreamReporter struct {
	out io.Writer

	mu       sync.Mutex
	reported bool
	exitCode int
}

// NewStreamReporter creates a reporter that writes to out
func NewStreamReporter(out io.Writer) *StreamReporter {
	return &StreamReporter{out: out}
}

func (r *StreamReporter) ReportSuccess(payload []byte) error {
	return r.report(ExitSuccess, hex.EncodeToString(payload))
}

func (r *StreamReporter) ReportError(payload []byte) error {
	return r.report(ExitFailure, string(payload))
}

// ExitCode is the code the process should exit with
func (r *StreamReporter) ExitCode() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exitCode
}

func (r *StreamReporter) report(code int, line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.reported {
		return ErrAlreadyReported
	}
	r.reported = true
	r.exitCode = code

	if _, err := fmt.Fprintln(r.out, line); err != nil {
		return fmt.Errorf("writing outcome: %w", err)
	}
	return nil
}

// Sink receives a copy of every reported outcome (audit store, notifications)
type Sink interface {
	Record(ctx context.Context, o Outcome) error
}

// Fanout sends the outcome to every sink. Failures are logged and never change
// what was reported.
func Fanout(ctx context.Context, o Outcome, sinks ...Sink) {
	logger := log.With().Str("component", "report").Logger()
	for _, s := range sinks {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, o); err != nil {
			logger.Error().Err(err).Str("sink", fmt.Sprintf("%T", s)).Msg("Failed to record outcome")
		}
	}
}
