package poller_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/JaimeStill/intake/internal/backend"
	"github.com/JaimeStill/intake/internal/poller"
)

// steppingClock advances a fake clock by the full duration of every wait, so a
// polling run completes instantly while observing realistic timestamps.
type steppingClock struct {
	clockwork.Clock
	advance func(time.Duration)
}

func newSteppingClock() *steppingClock {
	fc := clockwork.NewFakeClock()
	return &steppingClock{Clock: fc, advance: fc.Advance}
}

func (c *steppingClock) After(d time.Duration) <-chan time.Time {
	c.advance(d)
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

type response struct {
	status *backend.StatusResponse
	err    error
}

// scriptedFetcher replays responses in order and repeats the last one.
type scriptedFetcher struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	start     time.Time
	responses []response
	calls     int
	at        []time.Duration
	onCall    func(n int)
}

func (f *scriptedFetcher) GetDocumentStatus(_ context.Context, _ string) (*backend.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.at = append(f.at, f.clock.Now().Sub(f.start))
	if f.onCall != nil {
		f.onCall(f.calls)
	}

	r := f.responses[min(f.calls, len(f.responses))-1]
	return r.status, r.err
}

func pending() response {
	return response{status: &backend.StatusResponse{Status: backend.StatusPending}}
}

func setup(responses ...response) (*poller.Poller, *scriptedFetcher) {
	clock := newSteppingClock()
	f := &scriptedFetcher{clock: clock, start: clock.Now(), responses: responses}
	p := poller.New(f, clock, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return p, f
}

func TestPollExtractedAfterPending(t *testing.T) {
	p, f := setup(
		pending(),
		pending(),
		response{status: &backend.StatusResponse{
			Status: backend.StatusExtracted,
			Meta:   &backend.StatusMeta{Variables: []byte(`{"a":1}`)},
		}},
	)

	result, err := p.Poll(context.Background(), "doc-1", poller.Options{
		Interval: 2 * time.Second,
		Deadline: time.Minute,
	})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}

	if result.Outcome != poller.Extracted {
		t.Errorf("outcome = %s, want extracted", result.Outcome)
	}
	if string(result.Variables) != `{"a":1}` {
		t.Errorf("variables = %s", result.Variables)
	}
	if result.Attempts != 3 || f.calls != 3 {
		t.Errorf("attempts = %d, calls = %d, want 3", result.Attempts, f.calls)
	}
	if result.Elapsed != 6*time.Second {
		t.Errorf("elapsed = %s, want 6s", result.Elapsed)
	}
}

func TestPollExtractFailed(t *testing.T) {
	p, _ := setup(response{status: &backend.StatusResponse{
		Status: backend.StatusExtractFailed,
		Meta: &backend.StatusMeta{
			ExtractError: &backend.ExtractError{Code: "E_PARSE", Message: "unreadable"},
		},
	}})

	result, err := p.Poll(context.Background(), "doc-1", poller.Options{Interval: time.Second})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if result.Outcome != poller.ExtractFailed {
		t.Fatalf("outcome = %s, want extract-failed", result.Outcome)
	}
	if result.Error.Code != "E_PARSE" || result.Error.Message != "unreadable" {
		t.Errorf("error = %+v", result.Error)
	}
	if result.Variables != nil {
		t.Errorf("variables set on failure: %s", result.Variables)
	}
}

func TestPollExtractFailedWithoutDetail(t *testing.T) {
	p, _ := setup(response{status: &backend.StatusResponse{Status: backend.StatusExtractFailed}})

	result, err := p.Poll(context.Background(), "doc-1", poller.Options{Interval: time.Second})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if result.Error == nil || result.Error.Code != poller.DefaultExtractErrorCode {
		t.Errorf("error = %+v, want default code", result.Error)
	}
}

func TestPollTimesOutAtDeadline(t *testing.T) {
	p, f := setup(pending())

	result, err := p.Poll(context.Background(), "doc-1", poller.Options{
		Interval: 2 * time.Second,
		Deadline: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}

	if result.Outcome != poller.TimedOut {
		t.Errorf("outcome = %s, want timed-out", result.Outcome)
	}
	if result.Attempts != 5 {
		t.Errorf("attempts = %d, want 5", result.Attempts)
	}
	if result.Error != nil || result.Variables != nil {
		t.Errorf("timed-out result carries payload: %+v", result)
	}

	want := []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second, 8 * time.Second, 10 * time.Second}
	for i, at := range f.at {
		if at != want[i] {
			t.Errorf("fetch %d at %s, want %s", i+1, at, want[i])
		}
	}
}

func TestPollCapsFinalSleepToDeadline(t *testing.T) {
	p, f := setup(pending())

	result, err := p.Poll(context.Background(), "doc-1", poller.Options{
		Interval: 3 * time.Second,
		Deadline: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}

	if result.Outcome != poller.TimedOut || result.Attempts != 4 {
		t.Fatalf("outcome = %s attempts = %d, want timed-out after 4", result.Outcome, result.Attempts)
	}
	if last := f.at[len(f.at)-1]; last != 10*time.Second {
		t.Errorf("final fetch at %s, want exactly at the deadline", last)
	}
}

func TestPollTransportErrorsBackOff(t *testing.T) {
	blip := response{err: errors.New("connection reset")}
	p, f := setup(
		blip,
		blip,
		response{status: &backend.StatusResponse{Status: backend.StatusExtracted}},
	)

	result, err := p.Poll(context.Background(), "doc-1", poller.Options{
		Interval: 2 * time.Second,
		Deadline: time.Minute,
	})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}

	if result.Outcome != poller.Extracted {
		t.Errorf("outcome = %s, want extracted", result.Outcome)
	}
	if result.Failures != 2 {
		t.Errorf("failures = %d, want 2", result.Failures)
	}

	want := []time.Duration{2 * time.Second, 6 * time.Second, 14 * time.Second}
	for i, at := range f.at {
		if at != want[i] {
			t.Errorf("fetch %d at %s, want %s", i+1, at, want[i])
		}
	}
}

func TestPollFailedFetchesReachOnTick(t *testing.T) {
	p, _ := setup(
		response{err: errors.New("connection reset")},
		pending(),
		response{status: &backend.StatusResponse{Status: backend.StatusExtracted}},
	)

	var ticks []poller.Tick
	result, err := p.Poll(context.Background(), "doc-1", poller.Options{
		Interval: time.Second,
		Deadline: time.Minute,
		OnTick:   func(t poller.Tick) { ticks = append(ticks, t) },
	})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}

	if len(ticks) != 2 {
		t.Fatalf("ticks = %d, want 2", len(ticks))
	}
	if ticks[0].Attempt != 1 || ticks[0].Err == nil || ticks[0].Status != "" {
		t.Errorf("failed fetch tick = %+v", ticks[0])
	}
	if ticks[1].Attempt != 2 || ticks[1].Err != nil || ticks[1].Status != string(backend.StatusPending) {
		t.Errorf("pending tick = %+v", ticks[1])
	}
	if result.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", result.Attempts)
	}
}

func TestPollTransportErrorsNeverExtractFailed(t *testing.T) {
	p, _ := setup(response{err: errors.New("dial tcp: refused")})

	result, err := p.Poll(context.Background(), "doc-1", poller.Options{
		Interval: 2 * time.Second,
		Deadline: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}

	if result.Outcome != poller.TimedOut {
		t.Errorf("outcome = %s, want timed-out", result.Outcome)
	}
	if result.Attempts != 3 || result.Failures != 3 {
		t.Errorf("attempts = %d failures = %d, want 3 and 3", result.Attempts, result.Failures)
	}
}

func TestPollBackoffCap(t *testing.T) {
	p, f := setup(response{err: errors.New("timeout")})

	_, err := p.Poll(context.Background(), "doc-1", poller.Options{
		Interval:        time.Second,
		Deadline:        30 * time.Second,
		ErrorBackoff:    3 * time.Second,
		MaxErrorBackoff: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}

	want := []time.Duration{1, 4, 9, 14, 19, 24, 29, 30}
	for i, at := range f.at {
		if at != want[i]*time.Second {
			t.Errorf("fetch %d at %s, want %s", i+1, at, want[i]*time.Second)
		}
	}
}

func TestPollPartialPayloadOnlyOnTick(t *testing.T) {
	p, _ := setup(
		response{status: &backend.StatusResponse{
			Status: backend.StatusPending,
			Meta:   &backend.StatusMeta{Partial: []byte(`{"rut":"76.123.456-7"}`)},
		}},
		response{status: &backend.StatusResponse{Status: "queued"}},
		response{status: &backend.StatusResponse{
			Status: backend.StatusExtracted,
			Meta:   &backend.StatusMeta{Variables: []byte(`{"rut":"76.123.456-7","ventas":10}`)},
		}},
	)

	var ticks []poller.Tick
	result, err := p.Poll(context.Background(), "doc-1", poller.Options{
		Interval: time.Second,
		OnTick:   func(t poller.Tick) { ticks = append(ticks, t) },
	})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}

	if len(ticks) != 2 {
		t.Fatalf("ticks = %d, want 2", len(ticks))
	}
	if string(ticks[0].Partial) != `{"rut":"76.123.456-7"}` || ticks[0].Attempt != 1 {
		t.Errorf("first tick = %+v", ticks[0])
	}
	if ticks[1].Status != "queued" || ticks[1].Partial != nil {
		t.Errorf("unknown status should be treated as pending: %+v", ticks[1])
	}
	if result.Outcome != poller.Extracted {
		t.Errorf("outcome = %s", result.Outcome)
	}
}

func TestPollCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p, f := setup(pending())
	f.onCall = func(n int) {
		if n == 2 {
			cancel()
		}
	}

	result, err := p.Poll(ctx, "doc-1", poller.Options{Interval: time.Second, Deadline: time.Minute})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if result != nil {
		t.Errorf("canceled poll returned result %+v", result)
	}
	if f.calls != 2 {
		t.Errorf("calls = %d, want no fetch after cancellation", f.calls)
	}
}

func TestPollAlreadyCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, f := setup(pending())
	if _, err := p.Poll(ctx, "doc-1", poller.Options{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if f.calls != 0 {
		t.Errorf("calls = %d, want 0", f.calls)
	}
}

func TestPollStartAnchorsDeadline(t *testing.T) {
	p, f := setup(pending())

	start := p.Clock().Now().Add(-8 * time.Second)
	result, err := p.Poll(context.Background(), "doc-1", poller.Options{
		Interval: 2 * time.Second,
		Deadline: 10 * time.Second,
		Start:    start,
	})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}

	if result.Outcome != poller.TimedOut || f.calls != 1 {
		t.Errorf("outcome = %s calls = %d, want timed-out after 1", result.Outcome, f.calls)
	}
	if result.Elapsed != 10*time.Second {
		t.Errorf("elapsed = %s, want measured from Start", result.Elapsed)
	}
}
