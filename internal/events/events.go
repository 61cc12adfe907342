// Package events publishes session changes to NATS so other services can
// follow ingestion without polling the backend themselves.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bytedance/sonic"
	"github.com/nats-io/nats.go"

	"github.com/JaimeStill/intake/internal/ingest"
)

// Publisher sends a message on a subject. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Message is the payload published for each event.
type Message struct {
	Kind    ingest.EventKind     `json:"kind"`
	At      time.Time            `json:"at"`
	Trigger ingest.TriggerResult `json:"trigger,omitempty"`
	Session ingest.Snapshot      `json:"session"`
}

// Emitter publishes session events under a subject prefix:
//
//	<prefix>.session.<status>   every transition
//	<prefix>.tick               every pending poll observation
//	<prefix>.trigger.<result>   every trigger attempt
//	<prefix>.abandon            every canceled session
type Emitter struct {
	pub    Publisher
	prefix string
	logger *slog.Logger
}

// New creates an Emitter.
func New(pub Publisher, prefix string, logger *slog.Logger) *Emitter {
	return &Emitter{
		pub:    pub,
		prefix: prefix,
		logger: logger.With("system", "events"),
	}
}

// Connect opens a NATS connection that reconnects indefinitely.
func Connect(cfg *Config, logger *slog.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(
		cfg.URL,
		nats.Name(cfg.ClientName),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return conn, nil
}

// Subject returns the subject an event is published on.
func (e *Emitter) Subject(ev ingest.Event) string {
	switch ev.Kind {
	case ingest.EventTransition:
		return fmt.Sprintf("%s.session.%s", e.prefix, ev.Snapshot.Status)
	case ingest.EventTrigger:
		return fmt.Sprintf("%s.trigger.%s", e.prefix, ev.Trigger)
	default:
		return fmt.Sprintf("%s.%s", e.prefix, ev.Kind)
	}
}

// Observe publishes ev. Failures are logged and dropped.
func (e *Emitter) Observe(_ context.Context, ev ingest.Event) {
	data, err := sonic.Marshal(Message{
		Kind:    ev.Kind,
		At:      ev.At,
		Trigger: ev.Trigger,
		Session: ev.Snapshot,
	})
	if err != nil {
		e.logger.Error("encode event failed", "error", err)
		return
	}

	subject := e.Subject(ev)
	if err := e.pub.Publish(subject, data); err != nil {
		e.logger.Warn("publish event failed", "subject", subject, "error", err)
	}
}
