package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"github.com/fieldsite/fieldsite/cmd/fieldsite/commands"
	"github.com/fieldsite/fieldsite/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("fieldsite"),
		kong.Description("Build, check, and publish a research site, and collect the post archive behind it."),
		kong.UsageOnError(),
		kong.Vars{"version": version.Full()},
	)
	ctx.FatalIfErrorf(ctx.Run(&commands.Global{Logger: slog.Default()}))
}
