package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/JaimeStill/intake/internal/ingest"
)

// reporter prints one line per session transition and a final line per
// terminal session.
type reporter struct {
	mu  sync.Mutex
	out io.Writer
}

func newReporter(out io.Writer) *reporter {
	return &reporter{out: out}
}

func (r *reporter) Observe(_ context.Context, ev ingest.Event) {
	snap := ev.Snapshot

	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Kind {
	case ingest.EventTransition:
		if snap.Status.Terminal() {
			fmt.Fprintln(r.out, summarize(snap))
			return
		}
		fmt.Fprintf(r.out, "%s\t%s\n", label(snap), snap.Status)
	case ingest.EventTrigger:
		switch ev.Trigger {
		case ingest.TriggerCreated:
			fmt.Fprintf(r.out, "%s\tevaluation %s created\n", label(snap), snap.EvaluationID)
		case ingest.TriggerFailed:
			fmt.Fprintf(r.out, "%s\tevaluation not created; retry with: intake trigger --document-id %s --owner %s\n",
				label(snap), snap.DocumentID, snap.OwnerEntityID)
		}
	case ingest.EventAbandon:
		fmt.Fprintf(r.out, "%s\tcanceled while %s\n", label(snap), snap.Status)
	}
}

// summarize renders the single user-facing message for a terminal snapshot.
func summarize(snap ingest.Snapshot) string {
	class, ok := snap.Message()
	if !ok {
		return fmt.Sprintf("%s\t%s", label(snap), snap.Status)
	}

	switch class {
	case ingest.MessageSuccess:
		return fmt.Sprintf("%s\textracted as %s (document %s)", label(snap), snap.DeclaredType, snap.DocumentID)
	case ingest.MessagePendingCheckBack:
		return fmt.Sprintf("%s\tstill processing; check back with: intake poll --document-id %s --owner %s",
			label(snap), snap.DocumentID, snap.OwnerEntityID)
	default:
		if err := snap.Err(); err != nil {
			return fmt.Sprintf("%s\tfailed: %v", label(snap), err)
		}
		return fmt.Sprintf("%s\tfailed", label(snap))
	}
}

func label(snap ingest.Snapshot) string {
	if snap.Filename != "" {
		return snap.Filename
	}
	if snap.DocumentID != "" {
		return snap.DocumentID
	}
	return snap.SessionID.String()
}

// outcome counts terminal snapshots by message class. Files whose session
// never started or ended early count as not extracted.
type outcome struct {
	mu        sync.Mutex
	out       io.Writer
	total     int
	succeeded int
}

func (o *outcome) add(snap ingest.Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.total++
	if class, _ := snap.Message(); class == ingest.MessageSuccess {
		o.succeeded++
	}
}

func (o *outcome) fail(name string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.total++
	if o.out != nil {
		fmt.Fprintf(o.out, "%s\tnot extracted: %v\n", name, err)
	}
}

func (o *outcome) err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.succeeded < o.total {
		return fmt.Errorf("%d of %d documents were not extracted", o.total-o.succeeded, o.total)
	}
	return nil
}
