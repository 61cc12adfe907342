package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/JaimeStill/intake/internal/events"
	"github.com/JaimeStill/intake/internal/ingest"
)

type published struct {
	subject string
	data    []byte
}

type mockPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (m *mockPublisher) Publish(subject string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, published{subject, data})
	return m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func snapshot(status ingest.Status) ingest.Snapshot {
	return ingest.Snapshot{
		SessionID:     uuid.New(),
		DocumentID:    "doc-1",
		OwnerEntityID: "company-9",
		Status:        status,
	}
}

func TestSubjects(t *testing.T) {
	e := events.New(&mockPublisher{}, "intake", discardLogger())

	tests := []struct {
		ev   ingest.Event
		want string
	}{
		{ingest.Event{Kind: ingest.EventTransition, Snapshot: snapshot(ingest.StatusTimedOut)}, "intake.session.timed-out"},
		{ingest.Event{Kind: ingest.EventTrigger, Trigger: ingest.TriggerCreated, Snapshot: snapshot(ingest.StatusExtracted)}, "intake.trigger.created"},
		{ingest.Event{Kind: ingest.EventTick, Snapshot: snapshot(ingest.StatusPolling)}, "intake.tick"},
		{ingest.Event{Kind: ingest.EventAbandon, Snapshot: snapshot(ingest.StatusPolling)}, "intake.abandon"},
	}

	for _, tt := range tests {
		if got := e.Subject(tt.ev); got != tt.want {
			t.Errorf("subject = %q, want %q", got, tt.want)
		}
	}
}

func TestObservePublishesSnapshot(t *testing.T) {
	pub := &mockPublisher{}
	e := events.New(pub, "risk.intake", discardLogger())

	snap := snapshot(ingest.StatusExtracted)
	snap.Result = json.RawMessage(`{"a":1}`)
	e.Observe(context.Background(), ingest.Event{Kind: ingest.EventTransition, Snapshot: snap, At: time.Now()})

	if len(pub.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.msgs))
	}
	if pub.msgs[0].subject != "risk.intake.session.extracted" {
		t.Errorf("subject = %s", pub.msgs[0].subject)
	}

	var msg struct {
		Kind    string `json:"kind"`
		Session struct {
			SessionID  string          `json:"session_id"`
			DocumentID string          `json:"document_id"`
			Result     json.RawMessage `json:"result"`
		} `json:"session"`
	}
	if err := json.Unmarshal(pub.msgs[0].data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Kind != "transition" || msg.Session.SessionID != snap.SessionID.String() || string(msg.Session.Result) != `{"a":1}` {
		t.Errorf("message = %+v", msg)
	}
}

func TestObserveSwallowsPublishErrors(t *testing.T) {
	pub := &mockPublisher{err: errors.New("nats: connection closed")}
	e := events.New(pub, "intake", discardLogger())

	e.Observe(context.Background(), ingest.Event{Kind: ingest.EventTransition, Snapshot: snapshot(ingest.StatusPolling)})

	if len(pub.msgs) != 1 {
		t.Errorf("publish attempts = %d, want 1", len(pub.msgs))
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg events.Config
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if cfg.Enabled() {
		t.Error("events enabled without a url")
	}
	if cfg.SubjectPrefix != "intake" {
		t.Errorf("subject prefix = %q", cfg.SubjectPrefix)
	}

	bad := events.Config{SubjectPrefix: "intake.*"}
	if err := bad.Finalize(nil); err == nil {
		t.Error("expected wildcard prefix to be rejected")
	}
}

func TestPublishOverNATS(t *testing.T) {
	url := os.Getenv("INTAKE_TEST_NATS_URL")
	if url == "" {
		t.Skip("INTAKE_TEST_NATS_URL not set")
	}

	cfg := events.Config{URL: url}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	conn, err := events.Connect(&cfg, discardLogger())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	sub, err := conn.SubscribeSync("intake.session.>")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	conn.Flush()

	e := events.New(conn, cfg.SubjectPrefix, discardLogger())
	e.Observe(context.Background(), ingest.Event{Kind: ingest.EventTransition, Snapshot: snapshot(ingest.StatusPolling)})

	msg, err := sub.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("next msg: %v", err)
	}
	if msg.Subject != "intake.session.polling" {
		t.Errorf("subject = %s", msg.Subject)
	}

	var _ events.Publisher = (*nats.Conn)(nil)
}
