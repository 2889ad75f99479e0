package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/oxsecrets/oxsecrets/internal/config"
)

func NewDumpCommand(cfg *config.Config) *cobra.Command {
	var (
		category     string
		mode         string
		serviceName  string
		loaderParams []string
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print every secret in a category",
		Long: `Load a whole category and print its name/value pairs.

Environment variable overrides are not consulted: the output reflects what
the backend holds. The default format is one NAME=VALUE line per secret,
sorted by name; --json emits a flat JSON object instead.

Examples:
  oxsecrets dump --category prod
  oxsecrets dump --category prod/db --mode aws --json`,
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

			dict, err := server.GetSecretDict(context.Background(), category,
				resolveOptions(category, false, serviceName, params)...)
			if err != nil {
				return describeFailure(cfg, fmt.Sprintf("dump category %q", category), err)
			}

			if jsonOutput {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(dict)
			}
			names := make([]string, 0, len(dict))
			for name := range dict {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("%s=%s\n", name, dict[name])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "root", "Secret category")
	cmd.Flags().StringVar(&mode, "mode", "", "Backend mode (file, env, keyring, aws, gcp, azure)")
	cmd.Flags().StringVar(&serviceName, "service-name", "", "Backend sub-service (for aws: secretsmanager or ssm)")
	cmd.Flags().StringArrayVar(&loaderParams, "loader", nil, "Backend loader parameter as key/value (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as a flat JSON object")

	return cmd
}
