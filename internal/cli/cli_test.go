package cli

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/yieldopt/internal/config"
	testingpkg "github.com/aristath/yieldopt/internal/testing"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	*App
	out *bytes.Buffer
	err *bytes.Buffer
}

func setupApp(t *testing.T, seed bool) *testApp {
	t.Helper()
	tmpDir := t.TempDir()
	cfg := &config.Config{
		DataDir: tmpDir,
		Port:    8001,
		Optimizer: config.OptimizerConfig{
			SolveTimeout:  5 * time.Second,
			ZeroTolerance: 1e-9,
		},
		Backup: config.BackupConfig{
			Keep: 1,
			Dir:  filepath.Join(tmpDir, "backups"),
		},
	}

	ta := &testApp{out: &bytes.Buffer{}, err: &bytes.Buffer{}}
	ta.App = &App{
		Out:        ta.out,
		Err:        ta.err,
		Plain:      true,
		Log:        zerolog.Nop(),
		LoadConfig: func() (*config.Config, error) { return cfg, nil },
	}

	if seed {
		container, err := ta.open(context.Background())
		require.NoError(t, err)
		testingpkg.Seed(t, container.UniverseDB, testingpkg.BondUniverseFixture)
		require.NoError(t, container.Close())
	}
	return ta
}

func execute(t *testing.T, cmd subcommands.Command, args ...string) subcommands.ExitStatus {
	t.Helper()
	f := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.SetFlags(f)
	require.NoError(t, f.Parse(args))
	return cmd.Execute(context.Background(), f)
}

func TestOptionsCmd(t *testing.T) {
	app := setupApp(t, true)

	status := execute(t, &optionsCmd{app: app.App})
	require.Equal(t, subcommands.ExitSuccess, status, app.err.String())

	out := app.out.String()
	assert.Contains(t, out, "## class_1\n\n- _any_\n- CORP\n- GOVT\n")
	assert.Contains(t, out, "## duration\n\n- _any_\n- 1to3\n- 3to5\n")
	assert.Contains(t, out, "## upper_bound\n\n- 0.01\n- 0.02\n- 0.03\n")
}

func TestTableCmd(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		contains   []string
		notContain []string
	}{
		{
			name:       "sector filter",
			args:       []string{"-class_2", "FINANCIAL"},
			contains:   []string{"# Instruments (2)", "First Bank", "Second Bank", "| 0.0400 |"},
			notContain: []string{"Treasury"},
		},
		{
			name:     "whole universe",
			contains: []string{"# Instruments (6)", "Treasury", "Rail Holdings"},
		},
		{
			name:     "no match",
			args:     []string{"-rating", "CCC"},
			contains: []string{"# Instruments (0)", "_No instruments match the filters._"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupApp(t, true)

			status := execute(t, &tableCmd{app: app.App}, tt.args...)
			require.Equal(t, subcommands.ExitSuccess, status, app.err.String())

			for _, s := range tt.contains {
				assert.Contains(t, app.out.String(), s)
			}
			for _, s := range tt.notContain {
				assert.NotContains(t, app.out.String(), s)
			}
		})
	}
}

func TestSummaryCmd(t *testing.T) {
	app := setupApp(t, true)

	status := execute(t, &summaryCmd{app: app.App}, "-class_1", "CORP", "-date", "2024-01-31")
	require.Equal(t, subcommands.ExitSuccess, status, app.err.String())

	out := app.out.String()
	assert.Contains(t, out, "- class_1: CORP\n- date: 2024-01-31\n")
	assert.Contains(t, out, "- Instruments: 3\n")
	assert.Contains(t, out, "- Market value: 500\n")
	assert.Contains(t, out, "| YTM | 0.06 | 0.04 | 0.05 | 0.05 |")
}

func TestSummaryCmd_Empty(t *testing.T) {
	app := setupApp(t, true)

	status := execute(t, &summaryCmd{app: app.App}, "-rating", "CCC")
	assert.Equal(t, subcommands.ExitFailure, status)
	assert.Contains(t, app.err.String(), "no instruments match")
	assert.Empty(t, app.out.String())
}

func TestOptimizeCmd(t *testing.T) {
	app := setupApp(t, true)

	status := execute(t, &optimizeCmd{app: app.App},
		"-wad", "5", "-cap", "0.4", "-ub", "0.5",
		"-class_1", "CORP", "-date", "2024-01-31",
	)
	require.Equal(t, subcommands.ExitSuccess, status, app.err.String())

	out := app.out.String()
	assert.Contains(t, out, "# Optimal allocation")
	assert.Contains(t, out, "- Objective: YTM = 0.0500\n")
	assert.Contains(t, out, "of 3 instruments")
	assert.Contains(t, out, "| **Total** |")

	container, err := app.open(context.Background())
	require.NoError(t, err)
	defer container.Close()

	runs, err := container.RunRepo.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestOptimizeCmd_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		status subcommands.ExitStatus
		err    string
	}{
		{
			name:   "duration out of policy",
			args:   []string{"-wad", "8", "-cap", "0.4"},
			status: subcommands.ExitUsageError,
			err:    "invalid optimization parameters",
		},
		{
			name:   "missing cap",
			args:   []string{"-wad", "5"},
			status: subcommands.ExitUsageError,
			err:    "sector cap",
		},
		{
			name:   "empty selection",
			args:   []string{"-wad", "5", "-cap", "0.4", "-rating", "CCC"},
			status: subcommands.ExitFailure,
			err:    "no allocation",
		},
		{
			name:   "infeasible duration",
			args:   []string{"-wad", "5", "-cap", "0.4", "-ub", "0.5", "-class_2", "FINANCIAL", "-date", "2024-01-31"},
			status: subcommands.ExitFailure,
			err:    "Infeasible",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupApp(t, true)

			status := execute(t, &optimizeCmd{app: app.App}, tt.args...)
			assert.Equal(t, tt.status, status)
			assert.Contains(t, app.err.String(), tt.err)
			assert.Empty(t, app.out.String())
		})
	}
}

func TestImportCmd(t *testing.T) {
	app := setupApp(t, false)

	csvPath := filepath.Join(t.TempDir(), "universe.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"cusip,issuer,class_1,class_2,rating,dur_cell,effdate,ytm,oas,effdur,mv\n"+
			"000000BB1,North Utility,CORP,UTILITY,A,3to5,2024-03-29,0.051,0.012,4.2,120\n"+
			"000000BB2,South Bank,CORP,FINANCIAL,BBB,5to7,2024-03-29,0.058,0.019,6.1,90\n",
	), 0644))

	status := execute(t, &importCmd{app: app.App}, csvPath)
	require.Equal(t, subcommands.ExitSuccess, status, app.err.String())
	assert.Contains(t, app.out.String(), "Imported 2 instruments")
	assert.Contains(t, app.out.String(), "(2 in universe)")

	app.out.Reset()
	status = execute(t, &tableCmd{app: app.App}, "-class_2", "UTILITY")
	require.Equal(t, subcommands.ExitSuccess, status, app.err.String())
	assert.Contains(t, app.out.String(), "North Utility")
}

func TestImportCmd_Errors(t *testing.T) {
	app := setupApp(t, false)

	assert.Equal(t, subcommands.ExitUsageError, execute(t, &importCmd{app: app.App}))

	status := execute(t, &importCmd{app: app.App}, filepath.Join(t.TempDir(), "missing.csv"))
	assert.Equal(t, subcommands.ExitFailure, status)
	assert.Contains(t, app.err.String(), "failed to open")

	badPath := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(badPath, []byte("cusip,issuer\nX,Y\n"), 0644))
	status = execute(t, &importCmd{app: app.App}, badPath)
	assert.Equal(t, subcommands.ExitFailure, status)
	assert.Contains(t, app.err.String(), "missing column")
}

func TestPrintMarkdown_Rendered(t *testing.T) {
	app := setupApp(t, false)
	app.Plain = false

	require.NoError(t, app.printMarkdown("# Title\n\nSome *text*.\n"))
	assert.Contains(t, app.out.String(), "Title")
	assert.NotEqual(t, "# Title\n\nSome *text*.\n", app.out.String())
}
