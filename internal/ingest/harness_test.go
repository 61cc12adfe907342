package ingest_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/JaimeStill/intake/internal/backend"
	"github.com/JaimeStill/intake/internal/classifier"
	"github.com/JaimeStill/intake/internal/ingest"
	"github.com/JaimeStill/intake/internal/poller"
	"github.com/JaimeStill/intake/internal/transfer"
	"github.com/JaimeStill/intake/internal/trigger"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

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

// fakeBackend serves the remote operations the protocol consumes and counts
// every call.
type fakeBackend struct {
	mu sync.Mutex

	slotFail     bool
	transferFail bool
	confirmFail  bool
	classifyBody string
	statuses     []string

	lastSlot    backend.SlotRequest
	slots       int
	uploads     int
	confirms    int
	statusCalls int
	evaluations int
}

const (
	pendingBody   = `{"status":"pending"}`
	extractedBody = `{"status":"extracted","meta":{"variables":{"a":1}}}`
	parseFailBody = `{"status":"extract-failed","meta":{"extractError":{"code":"E_PARSE","message":"unreadable scan"}}}`
	// unavailable makes the status fetch answer 502.
	unavailable = "unavailable"
)

func (f *fakeBackend) setStatuses(bodies ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = bodies
	f.statusCalls = 0
}

func (f *fakeBackend) counts() (slots, uploads, confirms, statusCalls, evaluations int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slots, f.uploads, f.confirms, f.statusCalls, f.evaluations
}

func (f *fakeBackend) slotRequest() backend.SlotRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSlot
}

func (f *fakeBackend) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/documents/upload-slot", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.slots++
		json.NewDecoder(r.Body).Decode(&f.lastSlot)
		if f.slotFail {
			http.Error(w, "slot store unavailable", http.StatusInternalServerError)
			return
		}
		id := fmt.Sprintf("doc-%d", f.slots)
		fmt.Fprintf(w, `{"documentId":%q,"destination":{"address":"/api/uploads/%s","method":"PUT"}}`, id, id)
	})

	mux.HandleFunc("POST /api/uploads/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.uploads++
		if f.transferFail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	mux.HandleFunc("POST /api/documents/{id}/confirm", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.confirms++
		if f.confirmFail {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"acknowledged":true}`))
	})

	mux.HandleFunc("GET /api/documents/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.statusCalls++
		body := pendingBody
		if n := len(f.statuses); n > 0 {
			body = f.statuses[min(f.statusCalls, n)-1]
		}
		if body == unavailable {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(body))
	})

	mux.HandleFunc("POST /api/documents/classify", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.classifyBody == "" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(f.classifyBody))
	})

	mux.HandleFunc("POST /api/evaluations", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.evaluations++
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"evaluationId":"eval-%d"}`, f.evaluations)
	})

	return mux
}

// recorder captures the transitions and trigger results of every session.
type recorder struct {
	mu       sync.Mutex
	statuses map[string][]ingest.Status
	triggers []ingest.TriggerResult
	onTick   func(ingest.Event)
}

func (r *recorder) Observe(_ context.Context, ev ingest.Event) {
	r.mu.Lock()
	switch ev.Kind {
	case ingest.EventTransition:
		if r.statuses == nil {
			r.statuses = make(map[string][]ingest.Status)
		}
		id := ev.Snapshot.SessionID.String()
		r.statuses[id] = append(r.statuses[id], ev.Snapshot.Status)
	case ingest.EventTrigger:
		r.triggers = append(r.triggers, ev.Trigger)
	}
	onTick := r.onTick
	r.mu.Unlock()

	if ev.Kind == ingest.EventTick && onTick != nil {
		onTick(ev)
	}
}

func (r *recorder) transitions(s *ingest.Session) []ingest.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statuses[s.ID().String()]
}

type harness struct {
	backend  *fakeBackend
	runner   *ingest.Runner
	recorder *recorder
	client   *backend.Client
}

type harnessOption func(*ingest.Dependencies)

func withTransfer(t ingest.Transferer) harnessOption {
	return func(d *ingest.Dependencies) { d.Transfer = t }
}

func withoutClassifier() harnessOption {
	return func(d *ingest.Dependencies) { d.Classifier = nil }
}

func newHarness(t *testing.T, fb *fakeBackend, opts ...harnessOption) *harness {
	t.Helper()

	srv := httptest.NewServer(fb.routes())
	t.Cleanup(srv.Close)

	logger := discardLogger()
	cfg := backend.Config{BaseURL: srv.URL + "/api"}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	client, err := backend.New(&cfg, logger)
	if err != nil {
		t.Fatalf("backend: %v", err)
	}

	resolver, err := transfer.NewResolver(cfg.RelayPattern, nil)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}

	rec := &recorder{}
	deps := ingest.Dependencies{
		Classifier: classifier.New(client, 0, logger),
		Initiator:  ingest.NewInitiator(client, logger),
		Transfer:   transfer.New(resolver, client, logger),
		Confirmer:  ingest.NewConfirmer(client, logger),
		Poller:     poller.New(client, newSteppingClock(), logger),
		Trigger:    trigger.New(client, trigger.NewMemoryLatch(), logger),
		Polling:    poller.Options{Interval: 2 * time.Second, Deadline: 10 * time.Second},
		Observers:  []ingest.Observer{rec},
		Logger:     logger,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &harness{
		backend:  fb,
		runner:   ingest.NewRunner(deps),
		recorder: rec,
		client:   client,
	}
}

func pdfFile(key string) ingest.File {
	return ingest.File{
		Key: key,
		File: transfer.File{
			Name:        "carpeta-tributaria.pdf",
			ContentType: "application/pdf",
			Data:        []byte("%PDF-1.7 not a real pdf"),
		},
	}
}

var owner = ingest.Input{OwnerEntityID: "company-9", DeclaredType: classifier.TypeTaxFolder}
