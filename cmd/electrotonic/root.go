package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chrissnell/electrotonic/internal/constants"
	"github.com/chrissnell/electrotonic/internal/log"
	"github.com/chrissnell/electrotonic/pkg/config"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	cfgFile    string
	cfgBackend string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "electrotonic",
		Short: "Compute passive electrotonic properties of neuron skeleton segments",
		Long: `electrotonic splits a traced neuron skeleton into unbranched segments and
computes length, radius, surface area, cross-sectional area, intracellular
resistance, membrane resistance and membrane capacitance for each one.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return log.Init(opts.debug)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			log.Sync()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "Path to configuration source (YAML file or SQLite database); defaults apply when empty")
	cmd.PersistentFlags().StringVar(&opts.cfgBackend, "config-backend", "yaml", "Configuration backend type: 'yaml' or 'sqlite'")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Turn on debugging output")

	cmd.AddCommand(
		newComputeCmd(opts),
		newServeCmd(opts),
		newRunsCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)

	return cmd
}

func (o *rootOptions) loadConfig() (*config.ConfigData, error) {
	if o.cfgFile == "" {
		return config.Default(), nil
	}

	filename, _ := filepath.Abs(o.cfgFile)
	if _, err := os.Stat(filename); err != nil {
		return nil, fmt.Errorf("configuration file %s: %w", filename, err)
	}

	var provider config.ConfigProvider
	var err error

	switch o.cfgBackend {
	case "yaml":
		provider = config.NewYAMLProvider(filename)
	case "sqlite":
		provider, err = config.NewSQLiteProvider(filename)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", o.cfgBackend)
	}
	defer provider.Close()

	cfgData, err := provider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error reading configuration %s: %w", filename, err)
	}

	return cfgData, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "electrotonic %s\n", constants.Version)
		},
	}
}
