package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"timetracker/internal/config"
	"timetracker/internal/storage"
	"timetracker/internal/storage/mysql"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations to the configured database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch cfg.DataBackend {
			case "sqlite":
				if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
					return err
				}
				v, dirty, err := storage.MigrationVersion(cfg.SQLiteDBPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s at schema version %d (dirty=%t)\n", cfg.SQLiteDBPath, v, dirty)
			case "mysql":
				dsn, err := mysql.NormalizeDSN(cfg.MySQLDSN)
				if err != nil {
					return err
				}
				if err := mysql.RunMigrations(dsn); err != nil {
					return err
				}
				fmt.Fprintln(out, "MySQL schema is up to date")
			default:
				fmt.Fprintf(out, "The %s backend has no schema\n", cfg.DataBackend)
			}
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write a TOML file with the default settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "timetracker.toml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.Defaults().WriteFile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration initialized at %s\nUse it with --config %s or %s=%s\n",
				path, path, config.ConfigFileEnv, path)
			return nil
		},
	})
	return cmd
}

// loadConfig reads the --config file (or TIMETRACKER_CONFIG) and the environment.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	if opts.configPath != "" {
		os.Setenv(config.ConfigFileEnv, opts.configPath)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
