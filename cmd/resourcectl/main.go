// Command resourcectl runs one-shot maintenance procedures against the
// configured database.
//
// Usage:
//
//	resourcectl [-config config.toml] [-archive] <procedure> [<procedure> ...]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"resourcehive/internal/app"
	"resourcehive/internal/config"
	"resourcehive/internal/models"
	"resourcehive/internal/services"
	"resourcehive/pkg/logger"
)

type procedure func(ctx context.Context) (*models.RunReport, error)

func procedures(a *app.App) map[string]procedure {
	return map[string]procedure{
		services.ProcedureInitializePermissions: a.Maintenance.InitializePermissions,
		services.ProcedurePopulateSampleData:    a.Maintenance.PopulateSampleData,
		services.ProcedureCheckExpiringSupplies: a.Maintenance.CheckExpiringSupplies,
		services.ProcedureCheckOverdue:          a.Maintenance.CheckOverdue,
		services.ProcedureUpdateReservations:    a.Maintenance.UpdateReservationStatus,
		services.ProcedureAutoReactivateUsers:   a.Maintenance.AutoReactivateUsers,
		services.ProcedureSweep:                 a.Scheduler.Tick,
	}
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: resourcectl [flags] <procedure> [<procedure> ...]\n\nprocedures:\n")
	names := []string{
		services.ProcedureInitializePermissions,
		services.ProcedurePopulateSampleData,
		services.ProcedureCheckExpiringSupplies,
		services.ProcedureCheckOverdue,
		services.ProcedureUpdateReservations,
		services.ProcedureAutoReactivateUsers,
		services.ProcedureSweep,
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(flag.CommandLine.Output(), "  %s\n", name)
	}
	fmt.Fprintf(flag.CommandLine.Output(), "\nflags:\n")
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", config.Path(), "path to the TOML configuration file")
	archive := flag.Bool("archive", false, "store run reports in the report bucket")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "resourcectl: %v\n", err)
		os.Exit(1)
	}
	logger.Init("resourcectl", cfg.IsDevelopment())
	logger.SetLevel(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, cfg, flag.Args(), *archive))
}

func run(ctx context.Context, cfg *config.Config, names []string, archive bool) int {
	application, err := app.Build(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "resourcectl: %v\n", err)
		return 1
	}
	defer application.Close()

	available := procedures(application)
	for _, name := range names {
		if _, ok := available[name]; !ok {
			fmt.Fprintf(os.Stderr, "resourcectl: unknown procedure %q\n", name)
			return 2
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, name := range names {
		report, err := available[name](ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "resourcectl: %s failed: %v\n", name, err)
			return 1
		}
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(os.Stderr, "resourcectl: %v\n", err)
			return 1
		}
		if archive && application.Archive != nil {
			key, err := application.Archive.Save(ctx, report)
			if err != nil {
				logger.Warn(ctx).Err(err).Str("procedure", name).Msg("failed to archive run report")
			} else {
				logger.Info(ctx).Str("procedure", name).Str("key", key).Msg("run report archived")
			}
		}
		if len(report.Errors) > 0 {
			fmt.Fprintf(os.Stderr, "resourcectl: %s finished with %d errors\n", name, len(report.Errors))
			return 1
		}
	}
	return 0
}
