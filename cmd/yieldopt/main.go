// Command yieldopt browses the instrument universe and runs optimizations
// from the terminal.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/aristath/yieldopt/internal/cli"
	"github.com/aristath/yieldopt/pkg/logger"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
)

var (
	dataDir = flag.String("data-dir", "", "Directory holding universe.db and cache.db (overrides YIELDOPT_DATA_DIR)")
	plain   = flag.Bool("plain", false, "Print raw markdown instead of rendering it")
	verbose = flag.Bool("v", false, "Log to stderr")
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	app := cli.NewApp(zerolog.Nop())
	cli.Register(commander, app)

	flag.Parse()

	if *dataDir != "" {
		os.Setenv("YIELDOPT_DATA_DIR", *dataDir)
	}
	if *verbose {
		app.Log = logger.New(logger.Config{Level: "debug", Pretty: true, Output: os.Stderr})
	}
	app.Plain = *plain

	os.Exit(int(commander.Execute(context.Background())))
}
