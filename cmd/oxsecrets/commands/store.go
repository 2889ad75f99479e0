package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oxsecrets/oxsecrets/internal/config"
)

func NewStoreCommand(cfg *config.Config) *cobra.Command {
	var (
		category     string
		mode         string
		serviceName  string
		loaderParams []string
	)

	cmd := &cobra.Command{
		Use:   "store NAME [VALUE]",
		Short: "Persist a secret through the backend",
		Long: `Write one secret to the backend's storage medium.

With a single argument the value is read from stdin, so secrets stay out of
shell history:

  openssl rand -hex 32 | oxsecrets store api_key --category prod

A trailing newline from stdin is stripped. Storing replaces any existing
value for the same name and category; other entries are untouched.

Examples:
  oxsecrets store example_pw hunter2
  oxsecrets store db_password --category prod --mode aws --loader region/eu-west-1`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			var value string
			if len(args) == 2 {
				value = args[1]
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read value from stdin: %w", err)
				}
				value = strings.TrimSuffix(string(data), "\n")
			}

			params, err := parseLoaderParams(loaderParams)
			if err != nil {
				return err
			}
			server, err := serverFor(cfg, mode)
			if err != nil {
				return err
			}

			err = server.StoreSecrets(context.Background(), map[string]string{name: value}, category,
				resolveOptions(category, false, serviceName, params)...)
			if err != nil {
				return describeFailure(cfg, fmt.Sprintf("store secret %q", name), err)
			}

			cfg.Logger.Info("stored %q in category %q via %s backend", name, category, server.Mode())
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "root", "Secret category")
	cmd.Flags().StringVar(&mode, "mode", "", "Backend mode (file, env, keyring, aws, gcp, azure)")
	cmd.Flags().StringVar(&serviceName, "service-name", "", "Backend sub-service (for aws: secretsmanager or ssm)")
	cmd.Flags().StringArrayVar(&loaderParams, "loader", nil, "Backend storage parameter as key/value (repeatable)")

	return cmd
}
