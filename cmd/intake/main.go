package main

import (
	"github.com/alecthomas/kong"
)

var version = "dev"

// CLI is the root command line.
type CLI struct {
	ConfigDir string           `name:"config-dir" short:"C" help:"Directory holding config.toml, overlays and .env" type:"existingdir" default:"."`
	Verbose   bool             `short:"v" help:"Enable debug logging"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Upload  UploadCmd  `cmd:"" help:"Upload files and follow each one until extraction finishes"`
	Watch   WatchCmd   `cmd:"" help:"Upload every document that appears in a directory"`
	Poll    PollCmd    `cmd:"" help:"Resume polling a document that timed out or was confirmed elsewhere"`
	Trigger TriggerCmd `cmd:"" help:"Retry a failed downstream evaluation for an extracted document"`
	History HistoryCmd `cmd:"" help:"List journaled sessions for an owner"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("intake"),
		kong.Description("Upload documents to the risk backend and follow their extraction."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}
