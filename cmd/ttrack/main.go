package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"timetracker/internal/backend"
	"timetracker/internal/cli"
	"timetracker/internal/config"
	"timetracker/internal/core"
	applog "timetracker/internal/log"
	"timetracker/internal/services"
	"timetracker/internal/timer"
)

func main() {
	cli.LoadEnvFile()
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the services one command runs against. The caller must defer Close.
type app struct {
	cfg     *config.Config
	res     *backend.BackendResult
	timer   *timer.Engine
	catalog *services.Catalog
	entries *services.Entries
	reports *services.Reports
	logger  *applog.Logger
	out     io.Writer
}

type rootOptions struct {
	configPath string
	verbose    bool
}

// newApp reads the configuration, opens the gateway and loads the running entry.
func newApp(ctx context.Context, opts *rootOptions, out io.Writer) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logCfg := applog.DefaultConfig()
	logCfg.Output = os.Stderr
	logCfg.Component = applog.ComponentCLI
	logCfg.Level = applog.ParseLevel("warn")
	if opts.verbose {
		logCfg.Level = applog.ParseLevel("debug")
	}
	logger := applog.New(logCfg)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger, core.RealClock{}, core.UUIDGenerator{}).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s backend: %w", cfg.DataBackend, err)
	}

	clock := core.RealClock{}
	ids := core.UUIDGenerator{}
	reports := services.NewReports(res.Store, cfg.Location(), services.WithReportsLogger(logger))
	engine := timer.NewEngine(res.Store, clock, ids,
		timer.WithPublisher(services.NewFanout(res.Publisher(), reports)),
		timer.WithLogger(logger))
	a := &app{
		cfg:   cfg,
		res:   res,
		timer: engine,
		catalog: services.NewCatalog(res.Store, clock, ids,
			services.WithCatalogInvalidator(reports),
			services.WithCatalogTimer(engine),
			services.WithCatalogLogger(logger)),
		entries: services.NewEntries(res.Store, clock,
			services.WithEntriesPublisher(res.Publisher()),
			services.WithEntriesInvalidator(reports),
			services.WithEntriesTimer(engine),
			services.WithEntriesLogger(logger)),
		reports: reports,
		logger:  logger,
		out:     out,
	}
	if err := engine.Resync(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("loading running entry: %w", err)
	}
	return a, nil
}

func (a *app) Close() {
	if a.res != nil && a.res.Cleanup != nil {
		if err := a.res.Cleanup(); err != nil {
			a.logger.Warn("Failed to close backend", applog.FieldError, err)
		}
	}
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// withApp adapts a command body that needs an app into a cobra RunE.
func withApp(opts *rootOptions, run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), opts, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, a, args)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "ttrack",
		Short:         "Personal time tracking from the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "TOML config file (overrides "+config.ConfigFileEnv+")")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output to stderr")

	root.AddCommand(
		newStartCmd(opts),
		newStopCmd(opts),
		newStatusCmd(opts),
		newReportCmd(opts),
		newExportCmd(opts),
		newMigrateCmd(opts),
		newConfigCmd(),
		newClientsCmd(opts),
		newProjectsCmd(opts),
		newTasksCmd(opts),
		newSheetsAuthCmd(),
	)
	return root
}
