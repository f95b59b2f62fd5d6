package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/haukened/linkvet/internal/vet/common/log"
	"github.com/haukened/linkvet/internal/vet/config"
)

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"env":        "env",
	"log-level":  "log_level",
	"log-file":   "log_file",
	"rules":      "rules_file",
	"source":     "source_file",
	"output":     "output_file",
	"delimiter":  "delimiter",
	"workers":    "workers",
	"timeout":    "timeout",
	"store":      "store_enabled",
	"store-path": "store_path",
	"inspect":    "inspect_mime_type",
	"user-agent": "user_agent",
}

// newRootCommand creates the root command that shows help by default.
func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           config.AppName,
		Short:         "Check links against domain, content type and mention rules",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "path to a YAML, JSON or TOML config file")
	flags.String("env", "", "runtime environment (dev or prod)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-file", "", "write logs to a rotating file")
	flags.StringP("rules", "r", "", "path to the rules document")
	flags.String("inspect", "", "content type whose pages are scanned for mentions")

	rootCmd.AddCommand(
		newRunCommand(),
		newValidateCommand(),
		newCheckCommand(),
	)
	return rootCmd
}

// flagOverrides collects the flags set on the command line, keyed by
// configuration key. Flags left at their default do not override the
// environment.
func flagOverrides(flags *pflag.FlagSet) map[string]any {
	out := make(map[string]any)
	flags.Visit(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			out[key] = f.Value.String()
		}
	})
	return out
}

// loadConfig loads the configuration for cmd and sets up logging.
func loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("config flag error: %w", err)
	}
	cfg, err := config.Load(configFile, flagOverrides(cmd.Flags()))
	if err != nil {
		return nil, err
	}
	if err := log.Configure(cfg.Env, cfg.LogLevel, cfg.LogFile); err != nil {
		return nil, fmt.Errorf("logging configuration error: %w", err)
	}
	return cfg, nil
}
