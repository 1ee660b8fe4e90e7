// Command dittoquota runs the logical-quota engine over a metadata catalog.
//
// Catalog commands (mkdir, put, rm, mv, cp, ...) go through the storage
// layer, which checks and updates the quota ledger atomically with each
// change. Control commands (control, exec, status) manage the ledger and
// require an administrator. serve runs the metrics endpoint and the
// periodic reconciler until interrupted.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/marmos91/dittoquota/internal/logger"
	"github.com/marmos91/dittoquota/pkg/admin"
	"github.com/marmos91/dittoquota/pkg/config"
	"github.com/marmos91/dittoquota/pkg/policy"
	"github.com/marmos91/dittoquota/pkg/quota"
	"github.com/marmos91/dittoquota/pkg/storage"
	"github.com/marmos91/dittoquota/pkg/store/metadata"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
	userName string
)

// app holds the components shared by every command.
type app struct {
	cfg        *config.Config
	metrics    *config.MetricsResult
	store      metadata.Store
	ledger     *quota.Ledger
	namespace  *storage.Namespace
	controller *admin.Controller
	guard      *admin.Guard
}

// current is set by the root command before any subcommand runs.
var current *app

func main() {
	rootCmd := &cobra.Command{
		Use:   "dittoquota",
		Short: "Logical quota enforcement for hierarchical catalogs",
		Long: `dittoquota tracks the number of data objects and bytes stored beneath
monitored collections and rejects operations that would exceed a configured
maximum on any monitored ancestor.

Examples:
  # Write a default configuration file
  dittoquota init

  # Start monitoring a collection and cap it at 1000 objects
  dittoquota control start_monitoring_collection /tempZone/home/alice --user rods
  dittoquota control set_maximum_number_of_objects /tempZone/home/alice 1000 --user rods

  # Store a 4 KiB object as alice
  dittoquota put /tempZone/home/alice/report.pdf 4096 --user alice`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if current != nil && current.store != nil {
				_ = current.store.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: $XDG_CONFIG_HOME/dittoquota/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level override (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVarP(&userName, "user", "u", os.Getenv("USER"), "user performing the operation")

	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newControlCmd())
	rootCmd.AddCommand(newExecCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newMetaCmd())
	rootCmd.AddCommand(newNamespaceCmds()...)
	rootCmd.AddCommand(newReconcileCmd())
	rootCmd.AddCommand(newServeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration and builds the store, ledger and layers on
// top of it. The init command needs none of this.
func setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "init" {
		return nil
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		return fmt.Errorf("failed to configure logger: %w", err)
	}

	ledger, err := config.CreateLedger(&cfg.Quotas)
	if err != nil {
		return err
	}

	m := config.InitializeMetrics(cfg)

	store, err := config.CreateMetadataStore(context.Background(), &cfg.Metadata, m.Store)
	if err != nil {
		return err
	}

	engine := policy.NewEngine(ledger, m.Quota)
	current = &app{
		cfg:        cfg,
		metrics:    m,
		store:      store,
		ledger:     ledger,
		namespace:  storage.NewNamespace(store, engine, cfg.Storage.DefaultResource),
		controller: admin.NewController(store, ledger, m.Quota),
		guard:      admin.NewGuard(store, ledger.Attributes()),
	}

	logger.Debug("Using %s metadata store, ledger namespace %s", cfg.Metadata.Type, cfg.Quotas.Namespace)
	return nil
}

// caller returns the identity of the invoking user.
func (a *app) caller() admin.Caller {
	return admin.Caller{User: userName, Privileged: a.cfg.Admin.IsAdmin(userName)}
}

func newInitCmd() *cobra.Command {
	var force bool
	var path string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				written, err := config.InitConfig(force)
				if err != nil {
					return err
				}
				path = written
			} else if err := config.InitConfigToPath(path, force); err != nil {
				return err
			}
			fmt.Printf("Configuration written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	cmd.Flags().StringVarP(&path, "path", "p", "", "write to this path instead of the default location")
	return cmd
}
