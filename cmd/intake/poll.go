package main

import (
	"fmt"
	"os"

	"github.com/JaimeStill/intake/internal/ingest"
)

// PollCmd implements the 'poll' command.
type PollCmd struct {
	DocumentID string `name:"document-id" required:"" help:"Document id returned when the upload slot was allocated"`
	Owner      string `help:"Owning entity id; looked up in the journal when omitted"`
}

func (c *PollCmd) Run(cli *CLI) error {
	e, err := open(cli, newReporter(os.Stdout))
	if err != nil {
		return err
	}
	defer e.close()

	input := ingest.Input{OwnerEntityID: c.Owner}
	if input.OwnerEntityID == "" {
		if e.domain.Journal == nil {
			return fmt.Errorf("--owner is required without a configured database")
		}
		prev, err := e.domain.Journal.Latest(e.ctx, c.DocumentID)
		if err != nil {
			return fmt.Errorf("look up document %s: %w", c.DocumentID, err)
		}
		input.OwnerEntityID = prev.OwnerEntityID
		input.DeclaredType = prev.DeclaredType
	}

	s, err := e.domain.Runner.Resume(e.ctx, c.DocumentID, input)
	if err != nil {
		return err
	}

	var result outcome
	result.add(s.Snapshot())
	return result.err()
}
