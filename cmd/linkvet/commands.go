package main

import (
	"errors"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/haukened/linkvet/internal/vet/common/log"
	"github.com/haukened/linkvet/internal/vet/services/runner"
)

// appFs is the filesystem the commands read and write; tests swap it.
var appFs = afero.NewOsFs()

// newRunCommand creates the run command.
func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Check every link of the source document and write the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer log.Sync()

			app, err := buildApplication(cfg, appFs)
			if err != nil {
				return err
			}
			var progress runner.ProgressFunc
			if quiet, _ := cmd.Flags().GetBool("no-progress"); !quiet {
				progress = newProgressPrinter(cmd.ErrOrStderr())
			}
			res, err := app.Run(cmd.Context(), progress)
			printRunSummary(cmd.ErrOrStderr(), cfg.OutputFile, res)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringP("source", "s", "", "path to the source document")
	flags.StringP("output", "o", "", "path of the report to write")
	flags.String("delimiter", "", "report field delimiter")
	flags.IntP("workers", "w", 0, "links evaluated at once")
	flags.Duration("timeout", 0, "timeout of each fetch")
	flags.String("user-agent", "", "User-Agent sent with every request")
	flags.Bool("store", false, "reuse verdicts across runs")
	flags.String("store-path", "", "verdict store location")
	flags.Bool("no-progress", false, "do not report progress while links are checked")
	return cmd
}

// newValidateCommand creates the validate command.
func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the rules document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer log.Sync()

			rules, err := loadRules(cfg, appFs)
			if err != nil {
				return err
			}
			printRules(cmd.OutOrStdout(), cfg.RulesFile, rules)
			return nil
		},
	}
}

// errInvalidLinks is returned by check when at least one URL is rejected.
var errInvalidLinks = errors.New("some links were rejected")

// newCheckCommand creates the check command.
func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check URL...",
		Short: "Evaluate the given URLs and print their verdicts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer log.Sync()

			app, err := buildApplication(cfg, appFs)
			if err != nil {
				return err
			}
			results, err := app.Check(cmd.Context(), args)
			if invalid := printCheckResults(cmd.OutOrStdout(), results); invalid > 0 && err == nil {
				err = errInvalidLinks
			}
			return err
		},
	}
	cmd.Flags().Duration("timeout", 0, "timeout of each fetch")
	return cmd
}
