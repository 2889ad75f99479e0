package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oxsecrets/oxsecrets/internal/config"
)

func NewGetCommand(cfg *config.Config) *cobra.Command {
	var (
		category     string
		mode         string
		serviceName  string
		loaderParams []string
		noEnv        bool
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "get NAME",
		Short: "Resolve a single secret value",
		Long: `Resolve one secret through the layered protocol and print its value.

An environment variable of the form {PREFIX}_{CATEGORY}_{NAME} wins without
touching any backend, which makes local overrides trivial:

  OX_SECRETS_PROD_DB_PASSWORD=hunter2 oxsecrets get db_password --category prod

Examples:
  # From the default backend and category
  oxsecrets get example_pw

  # From AWS SSM Parameter Store
  oxsecrets get /prod/token --mode aws --service-name ssm

  # Backend-specific loader parameters (key/value, first slash separates)
  oxsecrets get db_password --category prod --mode aws --loader profile/ci --loader region/eu-west-1

  # Use in scripts
  export DB_PASSWORD=$(oxsecrets get db_password --category prod)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			params, err := parseLoaderParams(loaderParams)
			if err != nil {
				return err
			}
			server, err := serverFor(cfg, mode)
			if err != nil {
				return err
			}

			value, err := server.GetSecret(context.Background(), name,
				resolveOptions(category, noEnv, serviceName, params)...)
			if err != nil {
				return describeFailure(cfg, fmt.Sprintf("retrieve secret %q", name), err)
			}

			if jsonOutput {
				output := map[string]string{
					"name":     name,
					"category": category,
					"mode":     string(server.Mode()),
					"value":    value,
				}
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(output)
			}
			fmt.Print(value)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "root", "Secret category")
	cmd.Flags().StringVar(&mode, "mode", "", "Backend mode (file, env, keyring, aws, gcp, azure)")
	cmd.Flags().StringVar(&serviceName, "service-name", "", "Backend sub-service (for aws: secretsmanager or ssm)")
	cmd.Flags().StringArrayVar(&loaderParams, "loader", nil, "Backend loader parameter as key/value (repeatable)")
	cmd.Flags().BoolVar(&noEnv, "no-env", false, "Skip the environment variable override")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format with metadata")

	return cmd
}
