// Package cli implements the yieldopt command line: browsing the instrument
// universe, importing instruments and running optimizations against the
// same databases the server uses.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aristath/yieldopt/internal/config"
	"github.com/aristath/yieldopt/internal/di"
	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
)

// wordWrap is the column width glamour wraps rendered markdown at
const wordWrap = 120

// App is the state shared by every subcommand.
type App struct {
	Out        io.Writer
	Err        io.Writer
	Plain      bool // print raw markdown instead of rendering it
	Log        zerolog.Logger
	LoadConfig func() (*config.Config, error)
}

// NewApp returns an App writing to stdout and reading configuration from the environment.
func NewApp(log zerolog.Logger) *App {
	return &App{
		Out:        os.Stdout,
		Err:        os.Stderr,
		Log:        log,
		LoadConfig: config.Load,
	}
}

// Register adds the subcommands to c.
func Register(c *subcommands.Commander, app *App) {
	c.Register(&optionsCmd{app: app}, "universe")
	c.Register(&tableCmd{app: app}, "universe")
	c.Register(&summaryCmd{app: app}, "universe")
	c.Register(&importCmd{app: app}, "universe")

	c.Register(&optimizeCmd{app: app}, "optimizer")
}

// open wires databases, repositories and services. Jobs are not registered:
// a CLI invocation is too short-lived to schedule anything.
func (a *App) open(ctx context.Context) (*di.Container, error) {
	cfg, err := a.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	container, err := di.InitializeDatabases(cfg, a.Log)
	if err != nil {
		return nil, err
	}
	if err := di.InitializeRepositories(container, a.Log); err != nil {
		container.Close()
		return nil, err
	}
	if err := di.InitializeServices(ctx, container, cfg, a.Log); err != nil {
		container.Close()
		return nil, err
	}
	return container, nil
}

func (a *App) printMarkdown(md string) error {
	if a.Plain {
		_, err := io.WriteString(a.Out, md)
		return err
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wordWrap),
	)
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}
	_, err = io.WriteString(a.Out, out)
	return err
}

func (a *App) errorf(format string, args ...interface{}) {
	fmt.Fprintf(a.Err, "Error: "+format+"\n", args...)
}

// run opens the container, runs fn and closes it again, mapping errors to a failure exit.
func (a *App) run(ctx context.Context, fn func(*di.Container) error) subcommands.ExitStatus {
	container, err := a.open(ctx)
	if err != nil {
		a.errorf("%v", err)
		return subcommands.ExitFailure
	}
	defer container.Close()

	if err := fn(container); err != nil {
		a.errorf("%v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
