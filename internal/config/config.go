// Package config loads the oxsecrets settings: an optional YAML settings
// file overridden by OX_SECRETS_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	oxerrors "github.com/oxsecrets/oxsecrets/internal/errors"
	"github.com/oxsecrets/oxsecrets/internal/logging"
	"github.com/oxsecrets/oxsecrets/pkg/secrets"
)

// Environment variables recognized at load time. A direct secret override of
// the form OX_SECRETS_{CATEGORY}_{NAME} is handled by the resolution engine,
// not here.
const (
	EnvMode            = "OX_SECRETS_MODE"
	EnvFile            = "OX_SECRETS_FILE"
	EnvPrefix          = "OX_SECRETS_PREFIX"
	EnvCategoryRegexp  = "OX_SECRETS_CATEGORY_REGEXP"
	EnvCategoryReplace = "OX_SECRETS_CATEGORY_REPLACE"
	EnvAWSProfile      = "OX_SECRETS_AWS_PROFILE"
)

// DefaultSettingsFile is the settings file consulted when --config is not
// given. A missing file is not an error; every field has a default.
const DefaultSettingsFile = "~/.oxsecrets.yaml"

// Settings is the static configuration of the secret servers.
type Settings struct {
	// Mode selects the default backend: file/fss, env/evs, keyring, aws,
	// gcp, azure.
	Mode string `yaml:"mode"`

	// File is the file backend's default secrets path.
	File string `yaml:"file"`

	// Prefix is the environment-variable prefix for overrides and the env
	// backend scan.
	Prefix string `yaml:"prefix"`

	// CategoryRegexp and CategoryReplace define the optional category
	// rewrite rule.
	CategoryRegexp  string `yaml:"category_regexp"`
	CategoryReplace string `yaml:"category_replace"`

	// AWSProfile is the default shared-config profile for the aws backend.
	AWSProfile string `yaml:"aws_profile"`

	// Cloud holds static defaults for the cloud backends; loader params on
	// individual calls take precedence.
	Cloud CloudSettings `yaml:"cloud"`
}

// CloudSettings groups per-provider defaults.
type CloudSettings struct {
	GCPProject    string `yaml:"gcp_project"`
	AzureVaultURL string `yaml:"azure_vault_url"`
}

// Default returns the built-in settings: file mode, ~/.ox_secrets.csv,
// prefix OX_SECRETS, no rewrite rule.
func Default() Settings {
	return Settings{
		Mode:   string(secrets.ModeFile),
		File:   DefaultSecretsFile(),
		Prefix: secrets.DefaultPrefix,
	}
}

// DefaultSecretsFile is the file backend's fallback path, ~/.ox_secrets.csv.
func DefaultSecretsFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/"
	}
	return filepath.Join(home, ".ox_secrets.csv")
}

// Load builds Settings from the defaults, the YAML settings file at path
// (skipped silently when absent, unless explicitly requested), and finally
// the OX_SECRETS_* environment variables, which win.
func Load(path string) (Settings, error) {
	s := Default()

	explicit := path != "" && path != DefaultSettingsFile
	if path == "" {
		path = DefaultSettingsFile
	}
	path = expandHome(path)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, oxerrors.ConfigError{
				Field:      "settings file",
				Value:      path,
				Message:    "invalid YAML syntax",
				Suggestion: "Check for indentation errors and missing quotes",
			}
		}
	case os.IsNotExist(err) && !explicit:
		// Optional file; defaults apply.
	default:
		return Settings{}, oxerrors.UserError{
			Message:    fmt.Sprintf("Failed to read settings file %q", path),
			Suggestion: "Check the --config path and file permissions",
			Err:        err,
		}
	}

	applyEnv(&s)
	return s, nil
}

func applyEnv(s *Settings) {
	if v := os.Getenv(EnvMode); v != "" {
		s.Mode = v
	}
	if v := os.Getenv(EnvFile); v != "" {
		s.File = v
	}
	if v := os.Getenv(EnvPrefix); v != "" {
		s.Prefix = v
	}
	if v := os.Getenv(EnvCategoryRegexp); v != "" {
		s.CategoryRegexp = v
	}
	if v := os.Getenv(EnvCategoryReplace); v != "" {
		s.CategoryReplace = v
	}
	if v := os.Getenv(EnvAWSProfile); v != "" {
		s.AWSProfile = v
	}
}

// RewriteRule compiles the configured category rewrite, or nil when none is
// set.
func (s Settings) RewriteRule() (*secrets.RewriteRule, error) {
	if s.CategoryRegexp == "" {
		return nil, nil
	}
	rule, err := secrets.NewRewriteRule(s.CategoryRegexp, s.CategoryReplace)
	if err != nil {
		return nil, oxerrors.ConfigError{
			Field:      "category_regexp",
			Value:      s.CategoryRegexp,
			Message:    "invalid regular expression",
			Suggestion: "Fix " + EnvCategoryRegexp + " or the category_regexp setting",
		}
	}
	return rule, nil
}

func expandHome(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// Config is the runtime state threaded through the CLI commands.
type Config struct {
	Path          string
	Logger        *logging.Logger
	VerboseErrors bool
	Settings      Settings

	loaded bool
}

// Load resolves Settings once; later calls are no-ops so every command can
// call it defensively.
func (c *Config) Load() error {
	if c.loaded {
		return nil
	}
	s, err := Load(c.Path)
	if err != nil {
		return err
	}
	if c.Logger == nil {
		c.Logger = logging.New(false, false)
	}
	c.Settings = s
	c.loaded = true
	return nil
}
