package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oxsecrets/oxsecrets/cmd/oxsecrets/commands"
	"github.com/oxsecrets/oxsecrets/internal/config"
	"github.com/oxsecrets/oxsecrets/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		configFile    string
		noColor       bool
		debug         bool
		verboseErrors bool
	)

	// Config placeholder, filled once flags are parsed
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "oxsecrets",
		Short: "Layered secret resolution across files, env vars and cloud stores",
		Long: `oxsecrets resolves secrets through a layered protocol: an environment
variable override wins outright, then a process-wide cache, then one load
from the configured backend (local file, env vars, OS keyring, AWS, GCP or
Azure).`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger := logging.New(debug, noColor)

			cfg.Path = configFile
			cfg.Logger = logger
			cfg.VerboseErrors = verboseErrors
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Settings file path (default "+config.DefaultSettingsFile+")")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&verboseErrors, "verbose-errors", false, "Report backend errors in full instead of a generic failure")

	rootCmd.AddCommand(
		commands.NewGetCommand(cfg),
		commands.NewDumpCommand(cfg),
		commands.NewStoreCommand(cfg),
		commands.NewNamesCommand(cfg),
		commands.NewForgetCommand(cfg),
		commands.NewBackendsCommand(cfg),
		commands.NewCompletionCommand(cfg),
	)

	return rootCmd.Execute()
}
