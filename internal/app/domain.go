// Package app assembles the ingestion pipeline from configuration and
// infrastructure.
package app

import (
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/JaimeStill/intake/internal/classifier"
	"github.com/JaimeStill/intake/internal/events"
	"github.com/JaimeStill/intake/internal/ingest"
	"github.com/JaimeStill/intake/internal/journal"
	"github.com/JaimeStill/intake/internal/poller"
	"github.com/JaimeStill/intake/internal/transfer"
	"github.com/JaimeStill/intake/internal/trigger"
)

// Domain holds the pipeline systems. Optional systems are nil when disabled.
type Domain struct {
	Classifier *classifier.Client
	Transfer   *transfer.Executor
	Poller     *poller.Poller
	Trigger    *trigger.Trigger
	Journal    *journal.Journal
	Events     *events.Emitter
	Runner     *ingest.Runner
}

// NewDomain creates the pipeline systems from the runtime. Extra observers
// receive session events after the journal, events and metrics observers.
func NewDomain(rt *Runtime, clock clockwork.Clock, extra ...ingest.Observer) (*Domain, error) {
	cfg := rt.Config
	logger := rt.Logger
	client := rt.Backend

	resolver, err := transfer.NewResolver(cfg.Backend.RelayPattern, cfg.Transfer.BlobSuffixes)
	if err != nil {
		return nil, fmt.Errorf("transfer resolver: %w", err)
	}

	d := &Domain{
		Transfer: transfer.New(resolver, client, logger),
		Poller:   poller.New(client, clock, logger),
	}

	if cfg.Classifier.Enabled() {
		d.Classifier = classifier.New(client, cfg.Classifier.TimeoutDuration(), logger)
	}

	if cfg.Trigger.Enabled() {
		latch, err := NewLatch(rt)
		if err != nil {
			return nil, err
		}
		d.Trigger = trigger.New(client, latch, logger)
	}

	if rt.Database != nil {
		d.Journal = journal.New(rt.Database.Connection(), logger)
	}

	if rt.NATS != nil {
		d.Events = events.New(rt.NATS, cfg.Events.SubjectPrefix, logger)
	}

	deps := ingest.Dependencies{
		Initiator: ingest.NewInitiator(client, logger),
		Transfer:  d.Transfer,
		Confirmer: ingest.NewConfirmer(client, logger),
		Poller:    d.Poller,
		Polling:   cfg.Polling.Options(),
		Observers: d.observers(rt, extra),
		Logger:    logger,
	}
	if d.Classifier != nil {
		deps.Classifier = d.Classifier
	}
	if d.Trigger != nil {
		deps.Trigger = d.Trigger
	}

	d.Runner = ingest.NewRunner(deps)
	return d, nil
}

// NewLatch builds the trigger latch selected by configuration.
func NewLatch(rt *Runtime) (trigger.Latch, error) {
	switch rt.Config.Trigger.Latch {
	case trigger.LatchPostgres:
		if rt.Database == nil {
			return nil, fmt.Errorf("postgres latch requires a database")
		}
		return trigger.NewPostgresLatch(rt.Database.Connection()), nil
	case trigger.LatchRedis:
		if rt.Redis == nil {
			return nil, fmt.Errorf("redis latch requires redis")
		}
		return trigger.NewRedisLatch(rt.Redis.Client(), rt.Config.Trigger.RedisPrefix), nil
	default:
		return trigger.NewMemoryLatch(), nil
	}
}

func (d *Domain) observers(rt *Runtime, extra []ingest.Observer) []ingest.Observer {
	var obs []ingest.Observer
	if d.Journal != nil {
		obs = append(obs, d.Journal)
	}
	if d.Events != nil {
		obs = append(obs, d.Events)
	}
	if rt.Recorder != nil {
		obs = append(obs, rt.Recorder)
	}
	return append(obs, extra...)
}
