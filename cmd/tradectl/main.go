// Command tradectl is a terminal client for a tradebook server.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"tradebook/internal/cli"
)

func main() {
	cli.Completion().Complete("tradectl")

	app := &cli.App{}
	addr := flag.String("addr", envOr("TRADEBOOK_ADDR", "http://localhost:8000"), "tradebook server address")
	flag.StringVar(&app.Currency, "currency", "USD", "currency used to format amounts")
	flag.BoolVar(&app.JSON, "json", false, "print the raw JSON response")
	flag.StringVar(&app.Path, "path", "", "print the part of the response selected by a JSONPath expression, e.g. $.pnl[*].symbol")
	flag.BoolVar(&app.Plain, "plain", false, "print markdown without terminal styling")
	flag.IntVar(&app.Width, "width", 100, "wrap rendered output at this width")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	cli.Register(commander, app)

	flag.Parse()
	app.Client = cli.NewClient(*addr, nil)
	os.Exit(int(commander.Execute(context.Background())))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
