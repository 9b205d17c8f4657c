package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Serve   ServeCmd         `cmd:"" help:"Run the dealer server"`
	Verify  VerifyCmd        `cmd:"" help:"Replay a round transcript and check the dealer's honesty"`
	Demo    DemoCmd          `cmd:"" help:"Play a full round against an in-process dealer"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("fairjack"),
		kong.Description("Provably-fair blackjack dealer with commit-then-reveal deck derivation"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
