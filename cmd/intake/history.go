package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Owner string `required:"" help:"Owning entity id"`
	Limit int    `short:"n" help:"Maximum sessions listed, newest first" default:"20"`
}

func (c *HistoryCmd) Run(cli *CLI) error {
	e, err := open(cli)
	if err != nil {
		return err
	}
	defer e.close()

	if e.domain.Journal == nil {
		return fmt.Errorf("history requires a configured database")
	}

	snaps, err := e.domain.Journal.List(e.ctx, c.Owner, c.Limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "UPDATED\tFILE\tDOCUMENT\tTYPE\tSTATUS\tATTEMPTS\tDETAIL")
	for _, s := range snaps {
		detail := s.EvaluationID
		if err := s.Err(); err != nil {
			detail = err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			s.UpdatedAt.Local().Format(time.DateTime),
			s.Filename, s.DocumentID, s.DeclaredType, s.Status, s.Attempts, detail,
		)
	}
	return w.Flush()
}
