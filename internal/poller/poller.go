// Package poller drives a confirmed document to a terminal extraction state.
//
// A run sleeps, fetches the document status, and repeats until the backend
// reports extracted or extract-failed, or until a wall-clock deadline fixed at
// the start of the run passes. Failed fetches are transient: they back off and
// retry within the same deadline without ending the run.
package poller

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/JaimeStill/intake/internal/backend"
)

// DefaultExtractErrorCode labels extract-failed responses that omit an error.
const DefaultExtractErrorCode = "EXTRACT_FAILED"

// Outcome is the terminal result of a polling run.
type Outcome string

const (
	Extracted     Outcome = "extracted"
	ExtractFailed Outcome = "extract-failed"
	TimedOut      Outcome = "timed-out"
)

// Fetcher retrieves the current status of a document.
type Fetcher interface {
	GetDocumentStatus(ctx context.Context, documentID string) (*backend.StatusResponse, error)
}

// Result is the terminal state of a run. Variables is set only for Extracted,
// Error only for ExtractFailed.
type Result struct {
	Outcome   Outcome
	Variables json.RawMessage
	Error     *backend.ExtractError
	Attempts  int
	Failures  int
	Elapsed   time.Duration
}

// Poller runs polling loops against a Fetcher.
type Poller struct {
	fetcher Fetcher
	clock   clockwork.Clock
	logger  *slog.Logger
}

// New creates a Poller. A nil clock uses the real clock.
func New(fetcher Fetcher, clock clockwork.Clock, logger *slog.Logger) *Poller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Poller{
		fetcher: fetcher,
		clock:   clock,
		logger:  logger.With("system", "poller"),
	}
}

// Clock returns the clock the poller measures deadlines against.
func (p *Poller) Clock() clockwork.Clock {
	return p.clock
}

// Poll blocks until the document reaches a terminal outcome or ctx is done.
// Cancellation returns ctx.Err() and no Result; no fetch happens afterwards.
func (p *Poller) Poll(ctx context.Context, documentID string, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	start := opts.Start
	if start.IsZero() {
		start = p.clock.Now()
	}
	deadline := start.Add(opts.Deadline)

	logger := p.logger.With("document_id", documentID)
	result := &Result{}
	delay := opts.Interval
	failures := 0

	for {
		remaining := deadline.Sub(p.clock.Now())
		if err := p.sleep(ctx, min(delay, max(remaining, 0))); err != nil {
			logger.Info("polling canceled", "attempts", result.Attempts)
			return nil, err
		}

		result.Attempts++
		status, err := p.fetcher.GetDocumentStatus(ctx, documentID)
		now := p.clock.Now()
		result.Elapsed = now.Sub(start)

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			result.Failures++
			delay = opts.errorDelay(failures)
			logger.Warn(
				"status fetch failed",
				"attempt", result.Attempts,
				"consecutive_failures", failures,
				"next_delay", delay,
				"error", err,
			)
			if opts.OnTick != nil {
				opts.OnTick(Tick{Attempt: result.Attempts, Err: err})
			}

		case status.Status == backend.StatusExtracted:
			result.Outcome = Extracted
			if status.Meta != nil {
				result.Variables = status.Meta.Variables
			}
			logger.Info("extraction complete", "attempts", result.Attempts, "elapsed", result.Elapsed)
			return result, nil

		case status.Status == backend.StatusExtractFailed:
			result.Outcome = ExtractFailed
			result.Error = extractError(status)
			logger.Info(
				"extraction failed",
				"attempts", result.Attempts,
				"code", result.Error.Code,
				"elapsed", result.Elapsed,
			)
			return result, nil

		default:
			failures = 0
			delay = opts.Interval
			if opts.OnTick != nil {
				tick := Tick{Attempt: result.Attempts, Status: string(status.Status)}
				if status.Meta != nil {
					tick.Partial = status.Meta.Partial
				}
				opts.OnTick(tick)
			}
		}

		if !now.Before(deadline) {
			result.Outcome = TimedOut
			logger.Info("polling deadline reached", "attempts", result.Attempts, "elapsed", result.Elapsed)
			return result, nil
		}
	}
}

func (p *Poller) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-p.clock.After(d):
	}
	return ctx.Err()
}

func extractError(status *backend.StatusResponse) *backend.ExtractError {
	if status.Meta != nil && status.Meta.ExtractError != nil {
		e := *status.Meta.ExtractError
		if e.Code == "" {
			e.Code = DefaultExtractErrorCode
		}
		return &e
	}
	return &backend.ExtractError{
		Code:    DefaultExtractErrorCode,
		Message: "extraction failed without detail",
	}
}
