package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/backtester/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Write, check or print tqbt configuration",
	Long: `Work with tqbt configuration files.

A config file holds the defaults for data, backtest costs, metrics,
strategy parameters, sweep workers, journaling and logging. Command-line
flags and TQBT_* environment variables override it.

Examples:
  tqbt config init tqbt.yaml
  tqbt config check tqbt.yaml
  tqbt config show --config tqbt.yaml`,
	// Must work even when ./tqbt.yaml is broken.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration to path (default ./" + config.DefaultFile + ")",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

var configCheckCmd = &cobra.Command{
	Use:     "check [path]",
	Aliases: []string{"validate"},
	Short:   "Load and validate a configuration file",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runConfigCheck,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configForce bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configCheckCmd, configShowCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
}

func pathArg(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return config.DefaultFile
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := pathArg(args)
	if !configForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	if err := config.Default().SaveToFile(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}

func runConfigCheck(cmd *cobra.Command, args []string) error {
	path := pathArg(args)
	c, err := config.LoadFromFile(path)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s: ok\n", path)
	fmt.Fprintf(w, "  data      %s\n", orNone(c.Data.Path))
	fmt.Fprintf(w, "  strategy  %s %s\n", c.Strategy.Name, c.Strategy.Params)
	fmt.Fprintf(w, "  capital   %.2f  cost %.4f%%\n", c.Backtest.InitialCapital, c.Backtest.CostRate*100)
	fmt.Fprintf(w, "  journal   %s\n", c.Journal.Type)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	c, err := loadConfig(cfgFile)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
