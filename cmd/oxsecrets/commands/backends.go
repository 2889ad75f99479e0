package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oxsecrets/oxsecrets/internal/config"
)

func NewBackendsCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backends",
		Short: "List available backend modes",
		Long: `Print every registered backend mode, with the configured default marked.

The default comes from the settings file or the OX_SECRETS_MODE environment
variable; any mode can be selected per command with --mode.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := newRegistry(cfg)
			if err != nil {
				return err
			}
			defaultMode := cfg.Settings.Mode
			for _, mode := range registry.Modes() {
				if mode == defaultMode {
					fmt.Printf("%s (default)\n", mode)
				} else {
					fmt.Println(mode)
				}
			}
			return nil
		},
	}

	return cmd
}
