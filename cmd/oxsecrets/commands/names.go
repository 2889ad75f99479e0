package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oxsecrets/oxsecrets/internal/config"
)

func NewNamesCommand(cfg *config.Config) *cobra.Command {
	var (
		category     string
		mode         string
		serviceName  string
		loaderParams []string
	)

	cmd := &cobra.Command{
		Use:   "names",
		Short: "List the secret names in a category",
		Long: `Load a category and print its secret names, one per line, sorted.

Values are never printed, so the output is safe for logs and terminals.

Examples:
  oxsecrets names --category prod
  oxsecrets names --category prod/db --mode aws`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseLoaderParams(loaderParams)
			if err != nil {
				return err
			}
			server, err := serverFor(cfg, mode)
			if err != nil {
				return err
			}

			_, err = server.GetSecretDict(context.Background(), category,
				resolveOptions(category, false, serviceName, params)...)
			if err != nil {
				return describeFailure(cfg, fmt.Sprintf("list category %q", category), err)
			}
			for _, name := range server.ListSecretNames(category) {
				fmt.Println(name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "root", "Secret category")
	cmd.Flags().StringVar(&mode, "mode", "", "Backend mode (file, env, keyring, aws, gcp, azure)")
	cmd.Flags().StringVar(&serviceName, "service-name", "", "Backend sub-service (for aws: secretsmanager or ssm)")
	cmd.Flags().StringArrayVar(&loaderParams, "loader", nil, "Backend loader parameter as key/value (repeatable)")

	return cmd
}
