package main

import (
	"errors"
	"fmt"

	"github.com/JaimeStill/intake/internal/journal"
	"github.com/JaimeStill/intake/internal/trigger"
)

// TriggerCmd implements the 'trigger' command.
type TriggerCmd struct {
	DocumentID string `name:"document-id" required:"" help:"Extracted document whose evaluation failed"`
	Owner      string `required:"" help:"Owning entity id"`
}

func (c *TriggerCmd) Run(cli *CLI) error {
	e, err := open(cli)
	if err != nil {
		return err
	}
	defer e.close()

	if e.domain.Trigger == nil {
		return trigger.ErrDisabled
	}
	if e.cfg.Trigger.Latch == trigger.LatchMemory {
		return fmt.Errorf("retry needs a shared latch: set [trigger] latch to postgres or redis")
	}

	out, err := e.domain.Trigger.Retry(e.ctx, c.DocumentID, c.Owner)
	if err != nil {
		return err
	}
	fmt.Printf("%s\tevaluation %s created\n", c.DocumentID, out.EvaluationID)

	if e.domain.Journal != nil {
		if err := recordEvaluation(e, c.DocumentID, out.EvaluationID); err != nil {
			e.infra.Logger.Warn("journal update failed", "document_id", c.DocumentID, "error", err)
		}
	}
	return nil
}

func recordEvaluation(e *env, documentID, evaluationID string) error {
	snap, err := e.domain.Journal.Latest(e.ctx, documentID)
	if errors.Is(err, journal.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	snap.EvaluationID = evaluationID
	snap.UpdatedAt = e.domain.Poller.Clock().Now()
	return e.domain.Journal.Record(e.ctx, *snap)
}
