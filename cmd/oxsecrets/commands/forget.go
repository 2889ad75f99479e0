package commands

import (
	"github.com/spf13/cobra"

	"github.com/oxsecrets/oxsecrets/internal/config"
)

func NewForgetCommand(cfg *config.Config) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "forget",
		Short: "Clear the in-process secret cache for a backend",
		Long: `Drop every cached secret for a backend mode, forcing the next lookup to
reload from the medium.

The cache lives in the calling process, so this matters for long-running
embedders of the library and for shells that keep an oxsecrets session
alive; a one-shot invocation starts cold anyway.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := serverFor(cfg, mode)
			if err != nil {
				return err
			}
			server.ClearCache()
			cfg.Logger.Info("cleared cached secrets for %s backend", server.Mode())
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "Backend mode (file, env, keyring, aws, gcp, azure)")

	return cmd
}
