package main

import (
	"github.com/Sternrassler/listing-sync/internal/config"
	"github.com/Sternrassler/listing-sync/pkg/logging"
	"github.com/Sternrassler/listing-sync/pkg/metrics"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "listing-sync",
		Short:        "Aggregate paginated EasyBroker listings into complete snapshots",
		Version:      version,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Path to a .env file (ignored when missing)")

	cmd.AddCommand(newServeCmd(opts), newFetchCmd(opts))
	return cmd
}

// load reads configuration and configures logging for a subcommand.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configFile, o.envFile)
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.LoggingConfig())
	metrics.SetBuildInfo(version)
	return cfg, nil
}
