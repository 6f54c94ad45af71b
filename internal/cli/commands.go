package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/aristath/yieldopt/internal/di"
	"github.com/aristath/yieldopt/internal/modules/optimization"
	"github.com/aristath/yieldopt/internal/modules/universe"
	"github.com/google/subcommands"
)

type optionsCmd struct {
	app *App
}

func (*optionsCmd) Name() string     { return "options" }
func (*optionsCmd) Synopsis() string { return "list the choices available for every filter" }
func (*optionsCmd) Usage() string {
	return `yieldopt options

  Lists the distinct values of every filter column and the upper bound choices.
`
}

func (*optionsCmd) SetFlags(*flag.FlagSet) {}

func (c *optionsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.run(ctx, func(container *di.Container) error {
		opts, err := container.InstrumentRepo.Options(ctx)
		if err != nil {
			return err
		}
		return c.app.printMarkdown(OptionsMarkdown(opts))
	})
}

type tableCmd struct {
	app     *App
	filters filterFlags
}

func (*tableCmd) Name() string     { return "table" }
func (*tableCmd) Synopsis() string { return "display the instruments matching the filters" }
func (*tableCmd) Usage() string {
	return `yieldopt table [-class_1 <v>] [-class_2 <v>] [-rating <v>] [-duration <v>] [-date <v>] ...

  Displays the instruments selected by the filters. No filter selects the whole universe.
`
}

func (c *tableCmd) SetFlags(f *flag.FlagSet) {
	c.filters.register(f)
}

func (c *tableCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.run(ctx, func(container *di.Container) error {
		instruments, err := container.InstrumentRepo.List(ctx, c.filters.filters())
		if err != nil {
			return err
		}
		return c.app.printMarkdown(InstrumentsMarkdown(instruments))
	})
}

type summaryCmd struct {
	app     *App
	filters filterFlags
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "display yield statistics for the selected instruments" }
func (*summaryCmd) Usage() string {
	return `yieldopt summary [filters]

  Displays count, market value and YTM / OAS statistics of the selection.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	c.filters.register(f)
}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	filters := c.filters.filters()
	return c.app.run(ctx, func(container *di.Container) error {
		summary, err := container.InstrumentRepo.Summary(ctx, filters)
		if err != nil {
			return err
		}
		return c.app.printMarkdown(SummaryMarkdown(summary, filters))
	})
}

type optimizeCmd struct {
	app        *App
	filters    filterFlags
	objective  string
	upperBound string
	duration   string
	sectorCap  string
}

func (*optimizeCmd) Name() string     { return "optimize" }
func (*optimizeCmd) Synopsis() string { return "compute the yield-maximizing allocation" }
func (*optimizeCmd) Usage() string {
	return `yieldopt optimize -wad <years> -cap <fraction> [-objective YTM|OAS] [-ub <fraction>] [filters]

  Maximizes the portfolio YTM or OAS over the selected instruments, subject to
  the per-instrument upper bound, the weighted-average duration and the
  sector cap, and prints the non-zero weights.
`
}

func (c *optimizeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.objective, "objective", "YTM", "Metric to maximize: YTM or OAS")
	f.StringVar(&c.upperBound, "ub", "0.03", "Maximum weight of a single instrument")
	f.StringVar(&c.duration, "wad", "", "Target weighted-average duration in years (3 to 7)")
	f.StringVar(&c.sectorCap, "cap", "", "Maximum weight of a capped sector (0.2 to 0.5)")
	c.filters.register(f)
}

func (c *optimizeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	req, err := optimization.ParseRequest(c.objective, c.upperBound, c.duration, c.sectorCap)
	if err != nil {
		c.app.errorf("%v", err)
		return subcommands.ExitUsageError
	}

	filters := c.filters.filters()
	return c.app.run(ctx, func(container *di.Container) error {
		instruments, err := container.InstrumentRepo.List(ctx, filters)
		if err != nil {
			return err
		}

		result := container.OptimizerService.Optimize(ctx, req, universe.Rows(instruments, req.Objective), optimization.WithFilters(filters.Map()))
		if !result.OK() {
			return fmt.Errorf("no allocation for run %s: %w", result.RunID, result.Err())
		}
		return c.app.printMarkdown(AllocationMarkdown(result, instruments, filters))
	})
}

type importCmd struct {
	app     *App
	replace bool
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "load instruments from a CSV file" }
func (*importCmd) Usage() string {
	return `yieldopt import [-replace] <file.csv>

  Loads instruments from a CSV file with a header row naming the instrument
  columns (class_2, effdur, ytm and oas are required).
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.replace, "replace", false, "Clear the universe before importing")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		c.app.errorf("import takes exactly one CSV file")
		return subcommands.ExitUsageError
	}

	file, err := os.Open(f.Arg(0))
	if err != nil {
		c.app.errorf("failed to open %q: %v", f.Arg(0), err)
		return subcommands.ExitFailure
	}
	defer file.Close()

	instruments, err := universe.ParseCSV(file)
	if err != nil {
		c.app.errorf("%v", err)
		return subcommands.ExitFailure
	}

	return c.app.run(ctx, func(container *di.Container) error {
		n, err := container.InstrumentRepo.Insert(ctx, instruments, c.replace)
		if err != nil {
			return err
		}
		total, err := container.InstrumentRepo.Count(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(c.app.Out, "Imported %d instruments from %s (%d in universe)\n", n, f.Arg(0), total)
		return err
	})
}
