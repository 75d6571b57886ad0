package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/rs/zerolog"

	"github.com/aristath/assetflow/internal/config"
	"github.com/aristath/assetflow/internal/di"
	"github.com/aristath/assetflow/internal/modules/reports"
	"github.com/aristath/assetflow/pkg/logger"
)

var commands = []subcommands.Command{
	&refreshCmd{},
	&fundamentalsCmd{},
	&snapshotCmd{},
	&backupCmd{},
	&exportCmd{},
}

// withContainer loads the configuration, wires the services and runs fn.
// The scheduler is never started.
func withContainer(ctx context.Context, fn func(*di.Container, *di.JobInstances, zerolog.Logger) error) subcommands.ExitStatus {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true, Output: os.Stderr})

	container, jobs, err := di.Wire(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer container.Close()

	if err := fn(container, jobs, log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type refreshCmd struct{}

func (*refreshCmd) Name() string             { return "refresh" }
func (*refreshCmd) Synopsis() string         { return "fetch fresh quotes for every holding" }
func (*refreshCmd) Usage() string            { return "refresh\n\n  Fetches quotes from Yahoo and updates market data.\n" }
func (*refreshCmd) SetFlags(_ *flag.FlagSet) {}

func (*refreshCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withContainer(ctx, func(c *di.Container, _ *di.JobInstances, _ zerolog.Logger) error {
		res, err := c.RefreshService.Refresh(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("updated %d, skipped %d, failed %d in %s\n", res.Updated, res.Skipped, res.Failed, res.Duration.Round(time.Millisecond))
		return nil
	})
}

type fundamentalsCmd struct{}

func (*fundamentalsCmd) Name() string     { return "fundamentals" }
func (*fundamentalsCmd) Synopsis() string { return "fill missing dividend yield, EPS and book value" }
func (*fundamentalsCmd) Usage() string {
	return "fundamentals\n\n  Fetches fundamentals for stocks and REITs. Only unset fields are written.\n"
}
func (*fundamentalsCmd) SetFlags(_ *flag.FlagSet) {}

func (*fundamentalsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withContainer(ctx, func(c *di.Container, _ *di.JobInstances, _ zerolog.Logger) error {
		res, err := c.RefreshService.RefreshFundamentals(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("checked %d, filled %d, failed %d\n", res.Checked, res.Filled, res.Failed)
		return nil
	})
}

type snapshotCmd struct {
	date string
}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "record the daily portfolio snapshot" }
func (*snapshotCmd) Usage() string {
	return "snapshot [-date YYYY-MM-DD]\n\n  Records total equity and invested capital. Defaults to today.\n"
}

func (c *snapshotCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "date", "", "Snapshot date (YYYY-MM-DD)")
}

func (c *snapshotCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	date := time.Now()
	if c.date != "" {
		parsed, err := time.Parse("2006-01-02", c.date)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing date '%s': %v\n", c.date, err)
			return subcommands.ExitUsageError
		}
		date = parsed
	}

	return withContainer(ctx, func(ct *di.Container, _ *di.JobInstances, _ zerolog.Logger) error {
		snap, err := ct.SnapshotService.TakeDailySnapshot(ctx, date)
		if err != nil {
			return err
		}
		fmt.Printf("%s equity %.2f invested %.2f profit %.2f\n",
			snap.Date.Format("2006-01-02"), snap.TotalEquity, snap.TotalInvested, snap.Profit)
		return nil
	})
}

type backupCmd struct{}

func (*backupCmd) Name() string     { return "backup" }
func (*backupCmd) Synopsis() string { return "back up the databases" }
func (*backupCmd) Usage() string {
	return "backup\n\n  Writes verified copies to the backup directory and uploads them when S3 is configured.\n"
}
func (*backupCmd) SetFlags(_ *flag.FlagSet) {}

func (*backupCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withContainer(ctx, func(_ *di.Container, jobs *di.JobInstances, _ zerolog.Logger) error {
		res, err := jobs.Backup.Backup(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("backup %s: %d databases, %d bytes in %s (remote: %t)\n",
			res.RunID, len(res.Databases), res.SizeBytes, res.Path, res.Remote)
		return nil
	})
}

type exportCmd struct {
	output string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export the dashboard to an xlsx workbook" }
func (*exportCmd) Usage() string {
	return "export [-o file.xlsx]\n\n  Writes the summary and per-asset sheets. Defaults to assetflow_YYYY-MM-DD.xlsx.\n"
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "", "Output file")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withContainer(ctx, func(ct *di.Container, _ *di.JobInstances, _ zerolog.Logger) error {
		data, err := ct.ReportsService.DashboardXLSX(ctx)
		if err != nil {
			return err
		}

		out := c.output
		if out == "" {
			out = reports.FileName(time.Now())
		}
		if err := os.WriteFile(out, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		fmt.Printf("wrote %s (%d bytes)\n", out, len(data))
		return nil
	})
}
