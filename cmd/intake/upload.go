package main

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/intake/internal/classifier"
	"github.com/JaimeStill/intake/internal/ingest"
)

// SessionFlags are the per-document inputs shared by upload and watch.
type SessionFlags struct {
	Owner string            `required:"" help:"Owning entity id every document is attached to"`
	Type  string            `help:"Declared document type (tax-folder, financial-statement, bank-statement, generic); classified when omitted"`
	Hint  map[string]string `help:"Identity hint forwarded with the slot request, as key=value"`
}

func (f *SessionFlags) input() (ingest.Input, error) {
	in := ingest.Input{
		OwnerEntityID: f.Owner,
		IdentityHints: f.Hint,
	}
	if f.Type != "" {
		t := classifier.ParseDocumentType(f.Type)
		if t == classifier.TypeGeneric && f.Type != string(classifier.TypeGeneric) {
			return in, fmt.Errorf("unknown document type %q", f.Type)
		}
		in.DeclaredType = t
	}
	return in, nil
}

// UploadCmd implements the 'upload' command.
type UploadCmd struct {
	SessionFlags `embed:""`

	Concurrency int      `short:"j" help:"Sessions run at the same time" default:"4"`
	Files       []string `arg:"" type:"existingfile" help:"Files to upload"`
}

func (c *UploadCmd) Run(cli *CLI) error {
	input, err := c.input()
	if err != nil {
		return err
	}

	e, err := open(cli, newReporter(os.Stdout))
	if err != nil {
		return err
	}
	defer e.close()

	limit := e.cfg.Transfer.MaxFileSizeBytes()
	result := &outcome{out: os.Stdout}

	var g errgroup.Group
	g.SetLimit(max(c.Concurrency, 1))

	for _, path := range c.Files {
		g.Go(func() error {
			file, err := ingest.ReadFile(path, limit)
			if err != nil {
				result.fail(filepath.Base(path), err)
				return nil
			}

			s := ingest.NewSession(file, input)
			if err := e.domain.Runner.Run(e.ctx, s, file); err != nil {
				result.fail(file.Name, err)
				return nil
			}
			result.add(s.Snapshot())
			return nil
		})
	}

	g.Wait()
	return result.err()
}
